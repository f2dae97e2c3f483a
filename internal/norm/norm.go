// Package norm converts raw whatsmeow events into canonical events.
// Each raw event yields at most one canonical event; payloads carrying
// only protocol metadata are dropped silently.
package norm

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waHistorySync"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/heitorfr/wahook/internal/event"
	"github.com/heitorfr/wahook/internal/projection"
)

// MediaKind reports the media family of a message, checked in fixed
// order before any text extraction is attempted.
func MediaKind(msg *waE2E.Message) (string, bool) {
	if msg == nil {
		return "", false
	}
	switch {
	case msg.GetImageMessage() != nil:
		return "image", true
	case msg.GetVideoMessage() != nil:
		return "video", true
	case msg.GetAudioMessage() != nil:
		return "audio", true
	case msg.GetDocumentMessage() != nil:
		return "document", true
	case msg.GetStickerMessage() != nil:
		return "sticker", true
	}
	return "", false
}

// TextBody extracts the plain text of a message, from either the
// simple or the extended/quoted form. Empty means no text content.
func TextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

// Caption returns the caption of a media message, or nil.
func Caption(msg *waE2E.Message) *string {
	if msg == nil {
		return nil
	}
	var c string
	switch {
	case msg.GetImageMessage() != nil:
		c = msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage() != nil:
		c = msg.GetVideoMessage().GetCaption()
	case msg.GetDocumentMessage() != nil:
		c = msg.GetDocumentMessage().GetCaption()
	}
	if c == "" {
		return nil
	}
	return &c
}

// Participant extracts the per-person identity of a message. In a
// group, that is the sender-within-group; in a direct chat, the
// counterparty named by the chat JID itself. Only the provider's
// canonical user-address form yields a bare phone value; anything else
// (hidden-user, broadcast) stays nil rather than guessing.
func Participant(chat, sender types.JID) *string {
	switch chat.Server {
	case types.GroupServer:
		if sender.Server == types.DefaultUserServer && sender.User != "" {
			u := sender.User
			return &u
		}
	case types.DefaultUserServer:
		if chat.User != "" {
			u := chat.User
			return &u
		}
	}
	return nil
}

// IsStatusBroadcast reports whether the event belongs to the dedicated
// status/broadcast conversation, which is classified as presence
// rather than as a message.
func IsStatusBroadcast(evt *events.Message) bool {
	return evt.Info.Chat == types.StatusBroadcastJID
}

// Message normalizes an inbound text message. Returns false when the
// event is not a text message: self-sent echoes, media (handled by the
// media path), status broadcasts, and metadata-only payloads.
func Message(evt *events.Message) (event.Message, bool) {
	if evt.Info.IsFromMe || IsStatusBroadcast(evt) {
		return event.Message{}, false
	}
	if _, isMedia := MediaKind(evt.Message); isMedia {
		return event.Message{}, false
	}
	body := TextBody(evt.Message)
	if body == "" {
		return event.Message{}, false
	}
	return event.NewMessage(
		evt.Info.Chat.String(),
		Participant(evt.Info.Chat, evt.Info.Sender),
		body,
		evt.Info.Timestamp.UnixMilli(),
	), true
}

// StatusPresence normalizes a status-broadcast entry into a presence
// event. Status posts always signal the author as online.
func StatusPresence(evt *events.Message) event.Presence {
	var phone *string
	if evt.Info.Sender.Server == types.DefaultUserServer && evt.Info.Sender.User != "" {
		u := evt.Info.Sender.User
		phone = &u
	}
	return event.NewPresence(phone, evt.Info.PushName, true, evt.Info.Timestamp.UnixMilli())
}

// Presence normalizes a live presence update.
func Presence(evt *events.Presence) event.Presence {
	var phone *string
	if evt.From.Server == types.DefaultUserServer && evt.From.User != "" {
		u := evt.From.User
		phone = &u
	}
	return event.NewPresence(phone, "", !evt.Unavailable, evt.LastSeen.UnixMilli())
}

// Receipts normalizes a receipt update into one canonical receipt per
// acknowledged message ID. Receipt types with no delivery semantic
// (retries, played markers) are skipped, not errors.
func Receipts(evt *events.Receipt) []event.Receipt {
	var status event.ReceiptStatus
	switch evt.Type {
	case types.ReceiptTypeRead, types.ReceiptTypeReadSelf:
		status = event.StatusRead
	case types.ReceiptTypeDelivered:
		status = event.StatusDelivered
	case types.ReceiptTypeSender:
		status = event.StatusSent
	default:
		return nil
	}

	out := make([]event.Receipt, 0, len(evt.MessageIDs))
	for _, id := range evt.MessageIDs {
		if id == "" {
			continue
		}
		out = append(out, event.NewReceipt(id, evt.Chat.String(), status, evt.Timestamp.UnixMilli()))
	}
	return out
}

// SnapshotEntries converts a history sync payload into projection
// snapshot entries. Message bodies inside the sync are ignored: the
// snapshot vocabulary covers chat metadata only.
func SnapshotEntries(data *waHistorySync.HistorySync) []projection.SnapshotEntry {
	if data == nil {
		return nil
	}
	var out []projection.SnapshotEntry
	for _, conv := range data.GetConversations() {
		jid := conv.GetID()
		if jid == "" {
			continue
		}
		var name *string
		if n := conv.GetName(); n != "" {
			name = &n
		}
		out = append(out, projection.SnapshotEntry{
			JID:         jid,
			Name:        name,
			UnreadCount: int(conv.GetUnreadCount()),
			Archived:    conv.GetArchived(),
			Muted:       conv.GetMuteEndTime() > 0,
		})
	}
	return out
}
