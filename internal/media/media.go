// Package media stores the payload bytes of inbound media messages.
// Download failures suppress the media webhook for that event only;
// they never touch the session.
package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/heitorfr/wahook/internal/norm"
)

// Downloader fetches the decrypted payload of a media message. The
// whatsmeow adapter implements it.
type Downloader interface {
	DownloadMessage(ctx context.Context, msg *waE2E.Message) ([]byte, error)
}

// Saved describes a stored media payload.
type Saved struct {
	FileName string
	Path     string
	MimeType string
	Caption  *string
}

// Store writes incoming media under <base>/incoming.
type Store struct {
	dir    string
	dl     Downloader
	logger *zap.Logger
}

// NewStore creates the incoming media directory and returns a store.
func NewStore(baseDir string, dl Downloader, logger *zap.Logger) (*Store, error) {
	dir := filepath.Join(baseDir, "incoming")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{dir: dir, dl: dl, logger: logger}, nil
}

// Save downloads the media payload of evt and writes it to disk.
func (s *Store) Save(ctx context.Context, evt *events.Message) (*Saved, error) {
	kind, ok := norm.MediaKind(evt.Message)
	if !ok {
		return nil, fmt.Errorf("not a media message")
	}

	data, err := s.dl.DownloadMessage(ctx, evt.Message)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", kind, err)
	}

	mimeType, origName := mediaMeta(evt.Message, kind)
	name := fmt.Sprintf("%s_%s.%s", uuid.New().String(), kind, extension(origName, mimeType, kind))
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("write media file: %w", err)
	}

	s.logger.Info("media stored",
		zap.String("kind", kind),
		zap.String("file", name),
		zap.Int("bytes", len(data)))

	return &Saved{
		FileName: name,
		Path:     path,
		MimeType: mimeType,
		Caption:  norm.Caption(evt.Message),
	}, nil
}

func mediaMeta(msg *waE2E.Message, kind string) (mimeType, fileName string) {
	switch kind {
	case "image":
		return msg.GetImageMessage().GetMimetype(), ""
	case "video":
		return msg.GetVideoMessage().GetMimetype(), ""
	case "audio":
		return msg.GetAudioMessage().GetMimetype(), ""
	case "document":
		return msg.GetDocumentMessage().GetMimetype(), msg.GetDocumentMessage().GetFileName()
	case "sticker":
		return msg.GetStickerMessage().GetMimetype(), ""
	}
	return "", ""
}

// extension resolves a file extension: the original file name wins
// (documents), then the mime subtype, then a per-kind fallback.
func extension(fileName, mimeType, kind string) string {
	if ext := filepath.Ext(fileName); ext != "" {
		return strings.TrimPrefix(ext, ".")
	}
	if _, sub, ok := strings.Cut(mimeType, "/"); ok {
		if i := strings.IndexAny(sub, "; "); i > 0 {
			sub = sub[:i]
		}
		if sub != "" {
			return sub
		}
	}
	switch kind {
	case "audio":
		return "ogg"
	case "sticker":
		return "webp"
	case "video":
		return "mp4"
	case "image":
		return "jpg"
	}
	return "bin"
}
