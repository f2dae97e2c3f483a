package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/heitorfr/wahook/internal/event"
)

func testEndpoints(base string) Endpoints {
	return Endpoints{
		Message:  base + "/webhook/message",
		Receipt:  base + "/webhook/receipt",
		Presence: base + "/webhook/presence",
		Media:    base + "/webhook/media",
	}
}

func TestRoutingByKind(t *testing.T) {
	tests := []struct {
		kind event.Kind
		want string
	}{
		{event.KindMessage, "/webhook/message"},
		{event.KindReceipt, "/webhook/receipt"},
		{event.KindPresence, "/webhook/presence"},
		{event.KindMedia, "/webhook/media"},
		{event.Kind("bogus"), "/webhook/message"},
	}
	e := testEndpoints("http://sink")
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := e.URLFor(tt.kind); got != "http://sink"+tt.want {
				t.Errorf("URLFor(%s) = %q, want suffix %q", tt.kind, got, tt.want)
			}
		})
	}
}

func TestPostDeliversJSONBody(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
	}))
	defer srv.Close()

	d := NewDispatcher(testEndpoints(srv.URL), time.Second, zap.NewNop())
	msg := event.NewMessage("5511999@s.whatsapp.net", nil, "hello", 1234)
	if err := d.post(context.Background(), event.KindMessage, msg); err != nil {
		t.Fatalf("post() error = %v", err)
	}

	if gotPath != "/webhook/message" {
		t.Errorf("path = %q", gotPath)
	}
	var decoded event.Message
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.Body != "hello" || decoded.From != "5511999@s.whatsapp.net" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestSinkErrorIsContained(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDispatcher(testEndpoints(srv.URL), time.Second, zap.NewNop())
	err := d.post(context.Background(), event.KindReceipt, event.NewReceipt("M1", "x", event.StatusRead, 1))
	if err == nil {
		t.Fatal("post() should report sink failure internally")
	}
	// Dispatch must swallow the same failure.
	d.Dispatch(event.KindReceipt, event.NewReceipt("M1", "x", event.StatusRead, 1))
}

func TestSinkUnreachableNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDispatcher(testEndpoints(srv.URL), time.Second, zap.NewNop())
	_ = d.post(context.Background(), event.KindMessage, event.NewMessage("a", nil, "b", 1))

	time.Sleep(50 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want exactly 1 (no retry)", calls.Load())
	}
}

func TestDispatchDoesNotBlockCaller(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	d := NewDispatcher(testEndpoints(srv.URL), 5*time.Second, zap.NewNop())

	done := make(chan struct{})
	go func() {
		d.Dispatch(event.KindMessage, event.NewMessage("a", nil, "b", 1))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a slow sink")
	}
}
