package norm

import (
	"testing"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waHistorySync"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/heitorfr/wahook/internal/event"
)

func userJID(u string) types.JID  { return types.JID{User: u, Server: types.DefaultUserServer} }
func groupJID(u string) types.JID { return types.JID{User: u, Server: types.GroupServer} }

func msgEvent(chat, sender types.JID, msg *waE2E.Message, fromMe bool) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Chat:     chat,
				Sender:   sender,
				IsFromMe: fromMe,
			},
			ID:        "MSG1",
			PushName:  "Alice",
			Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		Message: msg,
	}
}

func TestMediaKind(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
		ok   bool
	}{
		{"nil", nil, "", false},
		{"text", &waE2E.Message{Conversation: proto.String("hi")}, "", false},
		{"image", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, "image", true},
		{"video", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{}}, "video", true},
		{"audio", &waE2E.Message{AudioMessage: &waE2E.AudioMessage{}}, "audio", true},
		{"document", &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{}}, "document", true},
		{"sticker", &waE2E.Message{StickerMessage: &waE2E.StickerMessage{}}, "sticker", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MediaKind(tt.msg)
			if got != tt.want || ok != tt.ok {
				t.Errorf("MediaKind() = %q, %v, want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMediaBeatsText(t *testing.T) {
	// A media message carrying a caption must classify as media even
	// though text could be extracted from it.
	msg := &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{Caption: proto.String("look at this")},
	}
	if _, ok := MediaKind(msg); !ok {
		t.Fatal("image with caption not classified as media")
	}
	evt := msgEvent(userJID("5511999"), userJID("5511999"), msg, false)
	if _, ok := Message(evt); ok {
		t.Error("media message leaked into the text path")
	}
	if c := Caption(msg); c == nil || *c != "look at this" {
		t.Errorf("Caption() = %v, want look at this", c)
	}
}

func TestParticipant(t *testing.T) {
	lid := types.JID{User: "9987", Server: types.HiddenUserServer}
	tests := []struct {
		name   string
		chat   types.JID
		sender types.JID
		want   *string
	}{
		{"direct chat", userJID("5511999"), userJID("5511999"), proto.String("5511999")},
		{"group with user sender", groupJID("123-456"), userJID("5522888"), proto.String("5522888")},
		{"group with hidden sender", groupJID("123-456"), lid, nil},
		{"direct via lid", lid, lid, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Participant(tt.chat, tt.sender)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("Participant() = %q, want nil", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("Participant() = %v, want %q", got, *tt.want)
			}
		})
	}
}

func TestMessageNormalization(t *testing.T) {
	evt := msgEvent(userJID("5511999"), userJID("5511999"),
		&waE2E.Message{Conversation: proto.String("hello")}, false)

	got, ok := Message(evt)
	if !ok {
		t.Fatal("text message dropped")
	}
	if got.From != "5511999@s.whatsapp.net" {
		t.Errorf("From = %q", got.From)
	}
	if got.Phone == nil || *got.Phone != "5511999" {
		t.Errorf("Phone = %v, want 5511999", got.Phone)
	}
	if got.Body != "hello" {
		t.Errorf("Body = %q", got.Body)
	}
	if got.Timestamp != evt.Info.Timestamp.UnixMilli() {
		t.Errorf("Timestamp = %d", got.Timestamp)
	}
}

func TestMessageDropsSelfSent(t *testing.T) {
	evt := msgEvent(userJID("5511999"), userJID("5511999"),
		&waE2E.Message{Conversation: proto.String("echo")}, true)
	if _, ok := Message(evt); ok {
		t.Error("fromMe message normalized")
	}
}

func TestMessageDropsMetadataOnlyPayload(t *testing.T) {
	evt := msgEvent(userJID("5511999"), userJID("5511999"),
		&waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{}}, false)
	if _, ok := Message(evt); ok {
		t.Error("metadata-only payload normalized")
	}
}

func TestGroupMessageWithUnresolvableSender(t *testing.T) {
	lid := types.JID{User: "9987", Server: types.HiddenUserServer}
	evt := msgEvent(groupJID("123-456"), lid,
		&waE2E.Message{Conversation: proto.String("group hi")}, false)

	got, ok := Message(evt)
	if !ok {
		t.Fatal("group message with unresolvable sender dropped")
	}
	if got.Phone != nil {
		t.Errorf("Phone = %q, want nil", *got.Phone)
	}
	if got.Body != "group hi" {
		t.Errorf("Body = %q", got.Body)
	}
}

func TestStatusBroadcastClassifiedAsPresence(t *testing.T) {
	evt := msgEvent(types.StatusBroadcastJID, userJID("5511999"),
		&waE2E.Message{Conversation: proto.String("status text")}, false)

	if !IsStatusBroadcast(evt) {
		t.Fatal("status broadcast not detected")
	}
	if _, ok := Message(evt); ok {
		t.Error("status broadcast normalized as message")
	}
	p := StatusPresence(evt)
	if p.Phone == nil || *p.Phone != "5511999" {
		t.Errorf("Phone = %v, want 5511999", p.Phone)
	}
	if p.Name != "Alice" {
		t.Errorf("Name = %q, want Alice", p.Name)
	}
	if !p.Online {
		t.Error("status post must signal online")
	}
}

func TestReceipts(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mkReceipt := func(typ types.ReceiptType, ids ...string) *events.Receipt {
		return &events.Receipt{
			MessageSource: types.MessageSource{Chat: userJID("5511999")},
			MessageIDs:    ids,
			Timestamp:     ts,
			Type:          typ,
		}
	}

	tests := []struct {
		name    string
		evt     *events.Receipt
		wantLen int
		status  event.ReceiptStatus
	}{
		{"delivered", mkReceipt(types.ReceiptTypeDelivered, "A", "B"), 2, event.StatusDelivered},
		{"read", mkReceipt(types.ReceiptTypeRead, "A"), 1, event.StatusRead},
		{"read beats delivered semantics", mkReceipt(types.ReceiptTypeReadSelf, "A"), 1, event.StatusRead},
		{"sender ack", mkReceipt(types.ReceiptTypeSender, "A"), 1, event.StatusSent},
		{"retry skipped", mkReceipt(types.ReceiptTypeRetry, "A"), 0, ""},
		{"empty id skipped", mkReceipt(types.ReceiptTypeRead, ""), 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Receipts(tt.evt)
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			for _, r := range got {
				if r.Status != tt.status {
					t.Errorf("Status = %s, want %s", r.Status, tt.status)
				}
				if r.To != "5511999@s.whatsapp.net" {
					t.Errorf("To = %q", r.To)
				}
				if r.Timestamp != ts.UnixMilli() {
					t.Errorf("Timestamp = %d", r.Timestamp)
				}
			}
		})
	}
}

func TestSnapshotEntries(t *testing.T) {
	data := &waHistorySync.HistorySync{
		Conversations: []*waHistorySync.Conversation{
			{
				ID:          proto.String("5511999@s.whatsapp.net"),
				UnreadCount: proto.Uint32(3),
			},
			{
				ID:          proto.String("123-456@g.us"),
				Name:        proto.String("friends"),
				Archived:    proto.Bool(true),
				MuteEndTime: proto.Uint64(9999999999),
			},
			{}, // no ID, skipped
		},
	}

	got := SnapshotEntries(data)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].JID != "5511999@s.whatsapp.net" || got[0].UnreadCount != 3 || got[0].Name != nil {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if got[1].Name == nil || *got[1].Name != "friends" || !got[1].Archived || !got[1].Muted {
		t.Errorf("entry 1 = %+v", got[1])
	}
}
