package api

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/heitorfr/wahook/internal/lifecycle"
	"github.com/heitorfr/wahook/internal/wa"
)

// Gate reports whether a live session is available for an operation.
type Gate interface {
	ActiveSession() lifecycle.Transport
}

// SendOps are the transport send primitives.
type SendOps interface {
	SendText(ctx context.Context, jid, text string) (string, error)
	SendMedia(ctx context.Context, jid string, m wa.OutgoingMedia) (string, error)
}

// Sender sends outbound messages through the live session.
type Sender struct {
	gate   Gate
	ops    SendOps
	logger *zap.Logger
}

// NewSender creates the send surface.
func NewSender(gate Gate, ops SendOps, logger *zap.Logger) *Sender {
	return &Sender{gate: gate, ops: ops, logger: logger}
}

// SendText sends a text message to a phone number or full JID.
// Returns the server message ID, or ErrNotReady without a session.
func (s *Sender) SendText(ctx context.Context, to, text string) (string, error) {
	if s.gate.ActiveSession() == nil {
		return "", ErrNotReady
	}
	id, err := s.ops.SendText(ctx, to, text)
	if err != nil {
		return "", err
	}
	s.logger.Info("message sent", zap.String("to", to), zap.String("msg_id", id))
	return id, nil
}

// SendMediaFile sends a local file as media, choosing the message kind
// from the file's mime type: image and video carry the caption, audio
// drops it, everything else goes as a document.
func (s *Sender) SendMediaFile(ctx context.Context, to, filePath, caption string) (string, error) {
	if s.gate.ActiveSession() == nil {
		return "", ErrNotReady
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("read media file: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(filePath))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	id, err := s.ops.SendMedia(ctx, to, wa.OutgoingMedia{
		Data:     data,
		MimeType: mimeType,
		FileName: filepath.Base(filePath),
		Caption:  caption,
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("media sent",
		zap.String("to", to),
		zap.String("mime", mimeType),
		zap.String("msg_id", id))
	return id, nil
}
