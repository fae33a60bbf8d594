package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/labring/devbox-console/pkg/host"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr      = ":9757"
	DefaultLogFormat = "text"
	DefaultLoginTTL  = time.Hour
)

// Config holds the host configuration
type Config struct {
	Addr           string
	LogLevel       slog.Level
	LogFormat      string
	ConfigFile     string
	MaxStreamBytes int
	ReadChunkBytes int
	LoginTTL       time.Duration

	// Loaded from ConfigFile
	Targets []host.Spec
	Users   map[string]string
}

// File is the YAML layout of the config file
type File struct {
	Targets []host.Spec       `yaml:"targets"`
	Users   map[string]string `yaml:"users"`
}

// ParseCfg reads flags with environment fallbacks. A flag given on the
// command line always wins over the environment.
func ParseCfg() *Config {
	addr := flag.String("addr", DefaultAddr, "Address to listen on")
	logLevel := flag.String("log_level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	logFormat := flag.String("log_format", DefaultLogFormat, "Log format (text, json)")
	configFile := flag.String("config", "", "Path to the YAML file with targets and users")
	maxStream := flag.String("max_stream_bytes", strconv.Itoa(host.DefaultMaxRetained), "Bytes of output retained per target")
	readChunk := flag.String("read_chunk_bytes", strconv.Itoa(host.DefaultReadChunk), "Maximum bytes returned by one read")
	loginTTL := flag.String("login_ttl", DefaultLoginTTL.String(), "Login token validity (duration or seconds)")
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	pick := func(name, env string, value *string) string {
		if set[name] {
			return *value
		}
		if v, ok := os.LookupEnv(env); ok && v != "" {
			return v
		}
		return *value
	}

	cfg := &Config{
		Addr:       pick("addr", "ADDR", addr),
		LogLevel:   getLogLevel(pick("log_level", "LOG_LEVEL", logLevel)),
		LogFormat:  getLogFormat(pick("log_format", "LOG_FORMAT", logFormat)),
		ConfigFile: pick("config", "CONFIG_FILE", configFile),
	}
	cfg.MaxStreamBytes = parseSize(pick("max_stream_bytes", "MAX_STREAM_BYTES", maxStream), host.DefaultMaxRetained)
	cfg.ReadChunkBytes = parseSize(pick("read_chunk_bytes", "READ_CHUNK_BYTES", readChunk), host.DefaultReadChunk)
	cfg.LoginTTL = parseTTL(pick("login_ttl", "LOGIN_TTL", loginTTL), DefaultLoginTTL)

	return cfg
}

// Load reads targets and users from ConfigFile, if one is set
func (c *Config) Load() error {
	if c.ConfigFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	file, err := ParseFile(data)
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", c.ConfigFile, err)
	}
	c.Targets = file.Targets
	c.Users = file.Users
	return nil
}

// ParseFile decodes and validates the YAML config
func ParseFile(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(file.Targets))
	for i, t := range file.Targets {
		if t.Name == "" {
			return nil, fmt.Errorf("target %d: name is required", i)
		}
		if t.Command == "" {
			return nil, fmt.Errorf("target %s: command is required", t.Name)
		}
		if _, dup := seen[t.Name]; dup {
			return nil, fmt.Errorf("target %s: duplicate name", t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	for user, hash := range file.Users {
		if !strings.HasPrefix(hash, "$argon2id$") {
			return nil, fmt.Errorf("user %s: password must be an argon2id hash", user)
		}
	}
	return &file, nil
}

func getLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getLogFormat(format string) string {
	if strings.ToLower(format) == "json" {
		return "json"
	}
	return DefaultLogFormat
}

func parseSize(value string, def int) int {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		slog.Warn("invalid size, using default", slog.String("value", value), slog.Int("default", def))
		return def
	}
	return n
}

func parseTTL(value string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("invalid login ttl, using default", slog.String("value", value))
	return def
}
