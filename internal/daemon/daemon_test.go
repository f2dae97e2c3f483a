package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/heitorfr/wahook/internal/api"
	"github.com/heitorfr/wahook/internal/bus"
	"github.com/heitorfr/wahook/internal/event"
	"github.com/heitorfr/wahook/internal/lifecycle"
	"github.com/heitorfr/wahook/internal/media"
	"github.com/heitorfr/wahook/internal/pipeline"
	"github.com/heitorfr/wahook/internal/projection"
	"github.com/heitorfr/wahook/internal/webhook"
)

type stubTransport struct {
	mu      sync.Mutex
	handler func(any)
}

func (s *stubTransport) Connect() error { return nil }
func (s *stubTransport) Disconnect()    {}
func (s *stubTransport) IsLoggedIn() bool {
	return true
}

func (s *stubTransport) Identity() (event.Identity, bool) {
	return event.Identity{ID: "5511000@s.whatsapp.net", DisplayName: "Tester"}, true
}

func (s *stubTransport) PurgeCredentials(context.Context) error { return nil }

func (s *stubTransport) AddEventHandler(fn func(any)) {
	s.mu.Lock()
	s.handler = fn
	s.mu.Unlock()
}

func (s *stubTransport) emit(evt any) {
	s.mu.Lock()
	fn := s.handler
	s.mu.Unlock()
	fn(evt)
}

type stubMedia struct{}

func (stubMedia) Save(context.Context, *events.Message) (*media.Saved, error) {
	return &media.Saved{FileName: "x.bin", MimeType: "application/octet-stream"}, nil
}

type sinkCall struct {
	path string
	body map[string]any
}

// TestMessageReachesSink wires the controller, pipeline and dispatcher
// together and drives a transport message end to end into an HTTP sink.
func TestMessageReachesSink(t *testing.T) {
	calls := make(chan sinkCall, 8)
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(data, &body)
		calls <- sinkCall{path: r.URL.Path, body: body}
		w.WriteHeader(http.StatusOK)
	}))
	defer sink.Close()

	logger := zap.NewNop()
	b := bus.New()
	chats := projection.NewStore()
	messages := projection.NewRing[event.Message](projection.MessageHistorySize)
	receipts := projection.NewRing[event.Receipt](projection.ReceiptHistorySize)

	d := webhook.NewDispatcher(webhook.Endpoints{
		Message: sink.URL + "/webhook/message",
		Receipt: sink.URL + "/webhook/receipt",
	}, time.Second, logger)

	pipe := pipeline.New(b, chats, messages, receipts, d, stubMedia{}, logger)
	pipe.Start(context.Background())
	defer pipe.Stop()

	transport := &stubTransport{}
	ctrl := lifecycle.NewController(transport, b, logger)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ctrl.Stop()

	transport.emit(&events.Connected{})
	if got := ctrl.CurrentPhase(); got != lifecycle.PhaseConnected {
		t.Fatalf("phase = %v, want connected", got)
	}

	chat := types.JID{User: "5511999", Server: types.DefaultUserServer}
	transport.emit(&events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: chat, Sender: chat},
			ID:            "MSG1",
			Timestamp:     time.Now(),
		},
		Message: &waE2E.Message{Conversation: proto.String("hello")},
	})

	select {
	case call := <-calls:
		if call.path != "/webhook/message" {
			t.Errorf("sink path = %q, want /webhook/message", call.path)
		}
		if call.body["message"] != "hello" {
			t.Errorf("sink body message = %v, want hello", call.body["message"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for sink delivery")
	}

	// The same message must be visible through the read surface.
	q := api.NewQuery(ctrl, chats, messages, receipts)
	if got := len(q.Chats()); got != 1 {
		t.Errorf("chats = %d, want 1", got)
	}
	if q.Identity() == nil || q.Identity().DisplayName != "Tester" {
		t.Errorf("identity = %+v, want Tester", q.Identity())
	}
}

// TestLoggedOutPurgesAndSchedules drives a forced logout through the
// composed stack and checks credential purge plus bus notification.
func TestLoggedOutPurgesAndSchedules(t *testing.T) {
	logger := zap.NewNop()
	b := bus.New()
	notices, unsub := b.Subscribe("session.", 8)
	defer unsub()

	transport := &stubTransport{}
	purged := make(chan struct{}, 1)
	tr := &purgingTransport{stubTransport: transport, purged: purged}

	ctrl := lifecycle.NewController(tr, b, logger,
		lifecycle.WithReconnectDelay(10*time.Millisecond))
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ctrl.Stop()

	transport.emit(&events.Connected{})
	transport.emit(&events.LoggedOut{})

	select {
	case <-purged:
	case <-time.After(time.Second):
		t.Fatal("credentials not purged after logout")
	}
	// The subscription also sees session.connected; drain until the
	// logout notice arrives.
	deadline := time.After(time.Second)
	for {
		select {
		case evt := <-notices:
			if evt.Kind == "session.logged_out" {
				return
			}
		case <-deadline:
			t.Fatal("session.logged_out never published")
		}
	}
}

type purgingTransport struct {
	*stubTransport
	purged chan struct{}
}

func (p *purgingTransport) PurgeCredentials(context.Context) error {
	select {
	case p.purged <- struct{}{}:
	default:
	}
	return nil
}
