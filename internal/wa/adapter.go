// Package wa wraps the whatsmeow client: the transport collaborator
// owning protocol framing, session credentials, send primitives, and
// media streams. The lifecycle controller supervises it through the
// Transport interface; everything else reaches it via the api layer.
package wa

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"

	"github.com/heitorfr/wahook/internal/event"
	"github.com/heitorfr/wahook/internal/session"
)

// Adapter owns the whatsmeow client for one session. The client is
// replaced, never mutated, when a credential reset issues a fresh
// device; readers snapshot it under the lock.
type Adapter struct {
	mu        sync.RWMutex
	client    *whatsmeow.Client
	handlers  []func(any)
	container *sqlstore.Container
	logger    *zap.Logger
	session   string
}

// NewAdapter opens the session's credential store and builds a client
// around its device. An unusable credential store is the one fatal
// startup error; it is surfaced here and not retried.
func NewAdapter(ctx context.Context, sessionName string, logger *zap.Logger) (*Adapter, error) {
	// Device name shown in the phone's linked devices list.
	wastore.SetOSInfo("wahook", [3]uint32{0, 1, 0})

	dbPath := session.CredentialDBPath(sessionName)
	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device credentials: %w", err)
	}

	return &Adapter{
		client:    whatsmeow.NewClient(device, nil),
		container: container,
		logger:    logger,
		session:   sessionName,
	}, nil
}

func (a *Adapter) cli() *whatsmeow.Client {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client
}

// Connect opens the transport connection. An unpaired device emits
// pairing-code events through the registered handlers.
func (a *Adapter) Connect() error {
	a.logger.Info("connecting transport", zap.String("session", a.session))
	return a.cli().Connect()
}

// Disconnect closes the transport connection.
func (a *Adapter) Disconnect() {
	a.cli().Disconnect()
}

// IsLoggedIn reports whether the credential store holds a paired
// device.
func (a *Adapter) IsLoggedIn() bool {
	return a.cli().Store.ID != nil
}

// Identity returns the authenticated account, if paired.
func (a *Adapter) Identity() (event.Identity, bool) {
	st := a.cli().Store
	if st.ID == nil {
		return event.Identity{}, false
	}
	return event.Identity{ID: st.ID.User, DisplayName: st.PushName}, true
}

// AddEventHandler registers fn for all whatsmeow events. Handlers
// survive client replacement on credential reset.
func (a *Adapter) AddEventHandler(fn func(any)) {
	a.mu.Lock()
	a.handlers = append(a.handlers, fn)
	cli := a.client
	a.mu.Unlock()
	cli.AddEventHandler(func(evt any) { fn(evt) })
}

// PurgeCredentials deletes the revoked device record and replaces the
// client with one bound to a fresh device, ready for re-pairing.
func (a *Adapter) PurgeCredentials(ctx context.Context) error {
	old := a.cli()
	old.Disconnect()
	if err := old.Store.Delete(ctx); err != nil {
		return fmt.Errorf("delete device credentials: %w", err)
	}

	device := a.container.NewDevice()
	fresh := whatsmeow.NewClient(device, nil)

	a.mu.Lock()
	a.client = fresh
	handlers := append(([]func(any))(nil), a.handlers...)
	a.mu.Unlock()

	for _, h := range handlers {
		fn := h
		fresh.AddEventHandler(func(evt any) { fn(evt) })
	}
	a.logger.Info("credential store purged, fresh device issued")
	return nil
}

// Logout invalidates the session server-side and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.cli().Logout(ctx)
}

// SendText sends a text message. Returns the server message ID.
func (a *Adapter) SendText(ctx context.Context, jid, text string) (string, error) {
	to, err := ParseJID(jid)
	if err != nil {
		return "", err
	}
	resp, err := a.cli().SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.ID, nil
}

// OutgoingMedia is a media payload to send.
type OutgoingMedia struct {
	Data     []byte
	MimeType string
	FileName string
	Caption  string
}

// SendMedia uploads the payload and sends the matching media message
// kind for its mime type (image, video, audio, anything else as a
// document). Returns the server message ID.
func (a *Adapter) SendMedia(ctx context.Context, jid string, m OutgoingMedia) (string, error) {
	to, err := ParseJID(jid)
	if err != nil {
		return "", err
	}

	var mediaType whatsmeow.MediaType
	switch {
	case strings.HasPrefix(m.MimeType, "image/"):
		mediaType = whatsmeow.MediaImage
	case strings.HasPrefix(m.MimeType, "video/"):
		mediaType = whatsmeow.MediaVideo
	case strings.HasPrefix(m.MimeType, "audio/"):
		mediaType = whatsmeow.MediaAudio
	default:
		mediaType = whatsmeow.MediaDocument
	}

	cli := a.cli()
	up, err := cli.Upload(ctx, m.Data, mediaType)
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}

	var caption *string
	if m.Caption != "" {
		caption = proto.String(m.Caption)
	}

	msg := &waE2E.Message{}
	switch mediaType {
	case whatsmeow.MediaImage:
		msg.ImageMessage = &waE2E.ImageMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			Mimetype:      proto.String(m.MimeType),
			Caption:       caption,
		}
	case whatsmeow.MediaVideo:
		msg.VideoMessage = &waE2E.VideoMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			Mimetype:      proto.String(m.MimeType),
			Caption:       caption,
		}
	case whatsmeow.MediaAudio:
		msg.AudioMessage = &waE2E.AudioMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			Mimetype:      proto.String(m.MimeType),
		}
	default:
		msg.DocumentMessage = &waE2E.DocumentMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			Mimetype:      proto.String(m.MimeType),
			FileName:      proto.String(m.FileName),
			Caption:       caption,
		}
	}

	resp, err := cli.SendMessage(ctx, to, msg)
	if err != nil {
		return "", fmt.Errorf("send media: %w", err)
	}
	return resp.ID, nil
}

// DownloadMessage fetches the decrypted payload of a media message.
func (a *Adapter) DownloadMessage(ctx context.Context, msg *waE2E.Message) ([]byte, error) {
	return a.cli().DownloadAny(ctx, msg)
}

// ParseJID parses a recipient address: either a full JID or a bare
// phone number, which maps to the canonical user server.
func ParseJID(to string) (types.JID, error) {
	if to == "" {
		return types.JID{}, fmt.Errorf("empty recipient")
	}
	if !strings.ContainsRune(to, '@') {
		return types.JID{User: to, Server: types.DefaultUserServer}, nil
	}
	jid, err := types.ParseJID(to)
	if err != nil {
		return types.JID{}, fmt.Errorf("parse JID %q: %w", to, err)
	}
	return jid, nil
}
