package websocket

import "time"

// WebSocketConfig WebSocket Config
type WebSocketConfig struct {
	PingPeriod     time.Duration `json:"ping_period"`
	WriteWait      time.Duration `json:"write_wait"`
	MaxMessageSize int64         `json:"max_message_size"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	ReadChunk      int           `json:"read_chunk"`
}

// NewDefaultWebSocketConfig Create a default WebSocket configuration
func NewDefaultWebSocketConfig() *WebSocketConfig {
	return &WebSocketConfig{
		PingPeriod:     30 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4 * 1024,
		ReadTimeout:    60 * time.Second,
	}
}
