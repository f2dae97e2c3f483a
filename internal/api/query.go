// Package api is the synchronous surface handed to the external HTTP
// routing layer: reads over the session and projection state, plus
// send and directory operations that require a live session. These are
// the only calls whose failures surface to a caller; everything inside
// the event stream is contained there.
package api

import (
	"errors"

	"github.com/heitorfr/wahook/internal/event"
	"github.com/heitorfr/wahook/internal/lifecycle"
	"github.com/heitorfr/wahook/internal/projection"
)

// ErrNotReady is returned by operations that need a live session while
// none is active. Callers fail gracefully; they never block waiting.
var ErrNotReady = errors.New("session not ready")

// Query exposes point-in-time reads. All methods are safe to call
// concurrently with lifecycle transitions.
type Query struct {
	ctrl     *lifecycle.Controller
	chats    *projection.Store
	messages *projection.Ring[event.Message]
	receipts *projection.Ring[event.Receipt]
}

// NewQuery creates the read surface.
func NewQuery(
	ctrl *lifecycle.Controller,
	chats *projection.Store,
	messages *projection.Ring[event.Message],
	receipts *projection.Ring[event.Receipt],
) *Query {
	return &Query{ctrl: ctrl, chats: chats, messages: messages, receipts: receipts}
}

// Phase returns the current connection phase.
func (q *Query) Phase() lifecycle.Phase {
	return q.ctrl.CurrentPhase()
}

// PendingQR returns the current pairing code, or nil once connected.
func (q *Query) PendingQR() *lifecycle.PendingQR {
	return q.ctrl.CurrentPendingQR()
}

// Identity returns the authenticated account, or nil.
func (q *Query) Identity() *event.Identity {
	return q.ctrl.CurrentIdentity()
}

// Chats lists all chat projections. Order is not significant.
func (q *Query) Chats() []projection.Chat {
	return q.chats.List()
}

// Chat returns the projection for one conversation.
func (q *Query) Chat(jid string) (projection.Chat, bool) {
	return q.chats.Get(jid)
}

// Messages returns the retained recent messages, oldest first.
func (q *Query) Messages() []event.Message {
	return q.messages.List()
}

// Receipts returns the retained recent receipts, oldest first.
func (q *Query) Receipts() []event.Receipt {
	return q.receipts.List()
}

// LastMessage returns the most recent retained message for a
// conversation.
func (q *Query) LastMessage(jid string) (event.Message, bool) {
	return q.messages.Newest(func(m event.Message) bool { return m.From == jid })
}
