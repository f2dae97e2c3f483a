// Package event defines the canonical outbound event model. Every raw
// transport occurrence is normalized into exactly one of these shapes
// before it reaches the projection, the history buffers, or the webhook
// sink. Values are immutable once constructed; the JSON tags are the
// wire format the sink consumes.
package event

// Kind identifies the canonical event family, and selects the sink
// endpoint a payload is routed to.
type Kind string

const (
	KindMessage  Kind = "message"
	KindReceipt  Kind = "receipt"
	KindPresence Kind = "presence"
	KindMedia    Kind = "media"
)

// ReceiptStatus is the normalized delivery state of a message.
type ReceiptStatus string

const (
	StatusSent      ReceiptStatus = "sent"
	StatusDelivered ReceiptStatus = "delivered"
	StatusRead      ReceiptStatus = "read"
)

// Message is an inbound text message. Phone is the extracted
// counterparty phone number when the sender address is in canonical
// user form, nil otherwise (the message is still valid without it).
type Message struct {
	From      string  `json:"from"`
	Phone     *string `json:"phone"`
	Body      string  `json:"message"`
	Timestamp int64   `json:"timestamp"`
}

// Receipt is a delivery or read acknowledgement for a previously sent
// message.
type Receipt struct {
	Type      Kind          `json:"type"`
	MessageID string        `json:"messageId"`
	To        string        `json:"to"`
	Status    ReceiptStatus `json:"status"`
	Timestamp int64         `json:"timestamp"`
}

// Media describes an inbound media message after the payload bytes
// have been stored by the media collaborator. Not retained in any
// history buffer.
type Media struct {
	Type      Kind    `json:"type"`
	From      string  `json:"from"`
	File      string  `json:"file"`
	MimeType  string  `json:"mimeType"`
	Caption   *string `json:"caption"`
	Timestamp int64   `json:"timestamp"`
}

// Presence is an online/offline signal for a contact, either from a
// status-broadcast entry or a live presence update. Transient.
type Presence struct {
	Type      Kind    `json:"type"`
	Phone     *string `json:"phone"`
	Name      string  `json:"name"`
	Online    bool    `json:"online"`
	Timestamp int64   `json:"timestamp"`
}

// Identity is the authenticated account, captured on a successful
// connect and cleared on disconnect.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// NewMessage builds a canonical message.
func NewMessage(from string, phone *string, body string, ts int64) Message {
	return Message{From: from, Phone: phone, Body: body, Timestamp: ts}
}

// NewReceipt builds a canonical receipt.
func NewReceipt(messageID, to string, status ReceiptStatus, ts int64) Receipt {
	return Receipt{Type: KindReceipt, MessageID: messageID, To: to, Status: status, Timestamp: ts}
}

// NewMedia builds a canonical media event.
func NewMedia(from, file, mimeType string, caption *string, ts int64) Media {
	return Media{Type: KindMedia, From: from, File: file, MimeType: mimeType, Caption: caption, Timestamp: ts}
}

// NewPresence builds a canonical presence event.
func NewPresence(phone *string, name string, online bool, ts int64) Presence {
	return Presence{Type: KindPresence, Phone: phone, Name: name, Online: online, Timestamp: ts}
}
