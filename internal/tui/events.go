package tui

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/labring/devbox-console/pkg/console"
)

// targetsMsg carries the result of a listing refresh
type targetsMsg struct {
	names []string
	err   error
}

// appendedMsg tells the model that the view's transcript grew
type appendedMsg struct {
	gen int
	src *viewEvents
}

type noticeMsg struct {
	gen int
	err error
}

// navigateMsg asks the model to leave the console view
type navigateMsg struct {
	gen     int
	toLogin bool
}

// submittedMsg is the outcome of one command submission
type submittedMsg struct {
	gen  int
	text string
	err  error
}

// viewEvents adapts one console view's callbacks to tea messages. Every
// message carries the view generation so that late events of a closed view
// are ignored. Sends happen off the caller's goroutine: the poller must
// never block on the UI loop, which may itself be waiting in View.Close.
type viewEvents struct {
	gen  int
	send func(tea.Msg)

	pending atomic.Bool
	scroll  atomic.Bool
}

var (
	_ console.Navigator = (*viewEvents)(nil)
	_ console.Notifier  = (*viewEvents)(nil)
)

func (e *viewEvents) post(msg tea.Msg) {
	go e.send(msg)
}

func (e *viewEvents) ToLogin() { e.post(navigateMsg{gen: e.gen, toLogin: true}) }

func (e *viewEvents) ToListing() { e.post(navigateMsg{gen: e.gen}) }

func (e *viewEvents) Notify(err error) { e.post(noticeMsg{gen: e.gen, err: err}) }

// appended coalesces bursts of appends into a single redraw
func (e *viewEvents) appended(res console.AppendResult) {
	if res.ScrollToBottom {
		e.scroll.Store(true)
	}
	if e.pending.CompareAndSwap(false, true) {
		e.post(appendedMsg{gen: e.gen, src: e})
	}
}

// take consumes the coalesced redraw and reports whether any of the
// appends asked to scroll to the bottom
func (e *viewEvents) take() bool {
	e.pending.Store(false)
	return e.scroll.Swap(false)
}
