// Package lifecycle supervises the single live transport session:
// connect and reconnect policy, credential resets on forced logout,
// pairing-code tracking, and the identity of the authenticated
// account. All other components read session state through the
// controller; only the controller mutates it.
package lifecycle

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/heitorfr/wahook/internal/bus"
	"github.com/heitorfr/wahook/internal/event"
)

// DefaultReconnectDelay is the fixed delay before a scheduled
// reconnect attempt.
const DefaultReconnectDelay = 3 * time.Second

// Transport is the session surface the controller supervises. The
// whatsmeow adapter implements it; tests substitute a fake.
type Transport interface {
	Connect() error
	Disconnect()
	IsLoggedIn() bool
	Identity() (event.Identity, bool)
	PurgeCredentials(ctx context.Context) error
	AddEventHandler(fn func(evt any))
}

// PendingQR is the current pairing code, raw and rendered as a PNG
// data URL for the sink's consumption.
type PendingQR struct {
	Code    string `json:"code"`
	DataURL string `json:"qr"`
}

// Controller owns the transport session and its recovery policy.
type Controller struct {
	machine        *Machine
	transport      Transport
	bus            *bus.Bus
	logger         *zap.Logger
	reconnectDelay time.Duration

	mu        sync.RWMutex
	identity  *event.Identity
	pendingQR *PendingQR
	timer     *time.Timer
}

// Option configures a Controller.
type Option func(*Controller)

// WithReconnectDelay overrides the fixed reconnect delay.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Controller) { c.reconnectDelay = d }
}

// NewController creates a controller for the given transport. The
// transport's events are routed through Handle once Start registers
// it.
func NewController(t Transport, b *bus.Bus, logger *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		machine:        NewMachine(),
		transport:      t,
		bus:            b,
		logger:         logger,
		reconnectDelay: DefaultReconnectDelay,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start registers the event handler and initiates the first connect.
// A transport that cannot reach the server yet is not an error: a
// reconnect is scheduled. The fatal case (unusable credential store)
// surfaces earlier, when the transport itself is constructed.
func (c *Controller) Start(_ context.Context) error {
	c.transport.AddEventHandler(c.Handle)

	if !c.transport.IsLoggedIn() {
		c.logger.Info("no credentials yet, waiting for pairing")
	}

	c.machine.BeginConnect()
	if err := c.transport.Connect(); err != nil {
		c.logger.Warn("initial connect failed", zap.Error(err))
		if c.machine.ConnectFailed() {
			c.schedule()
		}
	}
	return nil
}

// Stop cancels any pending reconnect and disconnects the session.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	c.transport.Disconnect()
}

// Handle is the transport event callback. Connection lifecycle events
// are consumed here; content events are republished on the bus for
// the pipeline. Nothing in this path may panic or return an error into
// the transport.
func (c *Controller) Handle(raw any) {
	switch evt := raw.(type) {
	case *events.Connected:
		c.handleConnected()
	case *events.QR:
		c.handleQR(evt)
	case *events.PairSuccess:
		c.logger.Info("device paired", zap.String("jid", evt.ID.String()))
	case *events.Disconnected:
		c.logger.Warn("connection closed")
		c.handleClose(false)
	case *events.ConnectFailure:
		c.logger.Warn("connect failure", zap.String("reason", evt.Reason.String()))
		c.handleClose(false)
	case *events.StreamReplaced:
		c.logger.Warn("stream replaced by another client")
		c.handleClose(false)
	case *events.LoggedOut:
		c.logger.Warn("logged out by server", zap.String("reason", evt.Reason.String()))
		c.handleClose(true)

	case *events.Message:
		c.bus.Publish(bus.Event{Kind: "wa.message", Payload: evt})
	case *events.Receipt:
		c.bus.Publish(bus.Event{Kind: "wa.receipt", Payload: evt})
	case *events.Presence:
		c.bus.Publish(bus.Event{Kind: "wa.presence", Payload: evt})
	case *events.HistorySync:
		c.bus.Publish(bus.Event{Kind: "wa.history", Payload: evt})
	}
}

func (c *Controller) handleConnected() {
	c.machine.Connected()

	c.mu.Lock()
	c.pendingQR = nil
	if id, ok := c.transport.Identity(); ok {
		c.identity = &id
	}
	c.mu.Unlock()

	c.logger.Info("session connected")
	c.bus.Publish(bus.Event{Kind: "session.connected"})
}

func (c *Controller) handleQR(evt *events.QR) {
	if c.machine.Phase() == PhaseConnected || len(evt.Codes) == 0 {
		return
	}
	code := evt.Codes[0]
	qr := &PendingQR{Code: code}
	if png, err := qrcode.Encode(code, qrcode.Medium, 256); err == nil {
		qr.DataURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	} else {
		c.logger.Warn("QR render failed", zap.Error(err))
	}

	c.mu.Lock()
	c.pendingQR = qr
	c.mu.Unlock()

	c.logger.Info("pairing code issued")
	c.bus.Publish(bus.Event{Kind: "session.qr"})
}

func (c *Controller) handleClose(loggedOut bool) {
	switch c.machine.CloseReceived(loggedOut) {
	case ActionNone:
		c.logger.Debug("close ignored, recovery already in progress")

	case ActionReset:
		c.mu.Lock()
		c.identity = nil
		c.pendingQR = nil
		c.mu.Unlock()

		if err := c.transport.PurgeCredentials(context.Background()); err != nil {
			c.logger.Error("credential purge failed", zap.Error(err))
		} else {
			c.logger.Info("credentials purged after forced logout")
		}
		c.bus.Publish(bus.Event{Kind: "session.logged_out"})
		c.schedule()

	case ActionReconnect:
		c.mu.Lock()
		c.identity = nil
		c.mu.Unlock()

		c.bus.Publish(bus.Event{Kind: "session.reconnecting"})
		c.schedule()
	}
}

// schedule arms the one-shot reconnect timer, retiring any timer from
// a superseded episode (a forced logout can land while a transient
// close already has one outstanding). Together with the machine's
// schedule guard this keeps at most one timer live.
func (c *Controller) schedule() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.reconnectDelay, c.reconnect)
}

func (c *Controller) reconnect() {
	if !c.machine.ReconnectDue() {
		c.logger.Debug("reconnect timer fired after session recovered, skipping")
		return
	}
	c.logger.Info("reconnecting")
	if err := c.transport.Connect(); err != nil {
		c.logger.Warn("reconnect failed", zap.Error(err))
		if c.machine.ConnectFailed() {
			c.schedule()
		}
	}
}

// CurrentPhase returns the connection phase.
func (c *Controller) CurrentPhase() Phase {
	return c.machine.Phase()
}

// CurrentIdentity returns a copy of the authenticated identity, or nil
// when disconnected or never connected.
func (c *Controller) CurrentIdentity() *event.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return nil
	}
	id := *c.identity
	return &id
}

// CurrentPendingQR returns a copy of the pending pairing code, or nil.
func (c *Controller) CurrentPendingQR() *PendingQR {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pendingQR == nil {
		return nil
	}
	qr := *c.pendingQR
	return &qr
}

// ActiveSession returns the transport handle when the session is
// connected, nil otherwise. Callers must treat nil as "not ready" and
// must not hold the handle across blocking boundaries.
func (c *Controller) ActiveSession() Transport {
	if c.machine.Phase() != PhaseConnected {
		return nil
	}
	return c.transport
}
