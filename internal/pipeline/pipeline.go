// Package pipeline drains the transport event stream and runs each
// event through normalization, projection update, history retention,
// and webhook dispatch — sequentially, on a single consumer loop, so
// ordering concerns never leak into the individual components.
package pipeline

import (
	"context"
	"time"

	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/heitorfr/wahook/internal/bus"
	"github.com/heitorfr/wahook/internal/event"
	"github.com/heitorfr/wahook/internal/media"
	"github.com/heitorfr/wahook/internal/norm"
	"github.com/heitorfr/wahook/internal/projection"
)

// Dispatcher delivers a canonical event to the sink, best-effort.
type Dispatcher interface {
	Dispatch(kind event.Kind, payload any)
}

// MediaSaver is the media collaborator: it downloads the payload of a
// media-bearing message and stores it locally.
type MediaSaver interface {
	Save(ctx context.Context, evt *events.Message) (*media.Saved, error)
}

// Pipeline consumes "wa." events from the bus.
type Pipeline struct {
	bus        *bus.Bus
	chats      *projection.Store
	messages   *projection.Ring[event.Message]
	receipts   *projection.Ring[event.Receipt]
	dispatcher Dispatcher
	media      MediaSaver
	logger     *zap.Logger
	cancel     context.CancelFunc
}

// New creates a pipeline over the given projection state and sink.
func New(
	b *bus.Bus,
	chats *projection.Store,
	messages *projection.Ring[event.Message],
	receipts *projection.Ring[event.Receipt],
	d Dispatcher,
	m MediaSaver,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		bus:        b,
		chats:      chats,
		messages:   messages,
		receipts:   receipts,
		dispatcher: d,
		media:      m,
		logger:     logger,
	}
}

// Start subscribes to transport events and begins the consumer loop.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	ch, unsub := p.bus.Subscribe("wa.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				p.handle(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the consumer loop.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Pipeline) handle(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case "wa.message":
		m, ok := evt.Payload.(*events.Message)
		if !ok {
			return
		}
		p.handleMessage(ctx, m)
	case "wa.receipt":
		r, ok := evt.Payload.(*events.Receipt)
		if !ok {
			return
		}
		p.handleReceipt(r)
	case "wa.presence":
		pr, ok := evt.Payload.(*events.Presence)
		if !ok {
			return
		}
		p.dispatcher.Dispatch(event.KindPresence, norm.Presence(pr))
	case "wa.history":
		h, ok := evt.Payload.(*events.HistorySync)
		if !ok {
			return
		}
		p.handleSnapshot(h)
	}
}

func (p *Pipeline) handleMessage(ctx context.Context, evt *events.Message) {
	// Echoes of our own traffic never enter the pipeline.
	if evt.Info.IsFromMe {
		return
	}

	if norm.IsStatusBroadcast(evt) {
		p.dispatcher.Dispatch(event.KindPresence, norm.StatusPresence(evt))
		return
	}

	if _, isMedia := norm.MediaKind(evt.Message); isMedia {
		// The download can take meaningful wall-clock time; it must
		// not stall the event stream.
		go p.handleMedia(ctx, evt)
		return
	}

	msg, ok := norm.Message(evt)
	if !ok {
		// Metadata-only payload. Common, not an error.
		return
	}

	p.chats.ApplyMessage(msg.From, msg.Body, msg.Timestamp)
	p.messages.Append(msg)
	p.dispatcher.Dispatch(event.KindMessage, msg)
}

func (p *Pipeline) handleMedia(ctx context.Context, evt *events.Message) {
	saved, err := p.media.Save(ctx, evt)
	if err != nil {
		p.logger.Warn("media download failed, event dropped",
			zap.String("chat", evt.Info.Chat.String()),
			zap.Error(err))
		return
	}
	p.dispatcher.Dispatch(event.KindMedia, event.NewMedia(
		evt.Info.Chat.String(),
		saved.FileName,
		saved.MimeType,
		saved.Caption,
		evt.Info.Timestamp.UnixMilli(),
	))
}

func (p *Pipeline) handleReceipt(evt *events.Receipt) {
	for _, r := range norm.Receipts(evt) {
		p.receipts.Append(r)
		p.dispatcher.Dispatch(event.KindReceipt, r)
	}
}

func (p *Pipeline) handleSnapshot(evt *events.HistorySync) {
	entries := norm.SnapshotEntries(evt.Data)
	if len(entries) == 0 {
		return
	}
	start := time.Now()
	p.chats.ApplySnapshot(entries)
	p.logger.Info("chat snapshot applied",
		zap.Int("chats", len(entries)),
		zap.Duration("took", time.Since(start)))
}
