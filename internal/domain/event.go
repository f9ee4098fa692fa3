package domain

// SourceType identifies where a LINE event originated.
type SourceType string

const (
	SourceUser    SourceType = "user"
	SourceGroup   SourceType = "group"
	SourceRoom    SourceType = "room"
	SourceUnknown SourceType = "unknown"
)

// ParseSourceType normalizes the provider's source.type string.
func ParseSourceType(s string) SourceType {
	switch s {
	case "user":
		return SourceUser
	case "group":
		return SourceGroup
	case "room":
		return SourceRoom
	default:
		return SourceUnknown
	}
}

// MessageKind is the closed set of message types the bridge dispatches on.
// Unknown provider values normalize to KindOther so dispatch stays exhaustive.
type MessageKind string

const (
	KindText    MessageKind = "text"
	KindSticker MessageKind = "sticker"
	KindImage   MessageKind = "image"
	KindVideo   MessageKind = "video"
	KindOther   MessageKind = "other"
)

// ParseMessageKind normalizes the provider's message.type string.
func ParseMessageKind(s string) MessageKind {
	switch s {
	case "text":
		return KindText
	case "sticker":
		return KindSticker
	case "image":
		return KindImage
	case "video":
		return KindVideo
	default:
		return KindOther
	}
}

// CallbackRequest is the body of a LINE webhook delivery.
type CallbackRequest struct {
	Destination string  `json:"destination,omitempty"`
	Events      []Event `json:"events"`
}

// Event is one item of a webhook delivery. Transient; never persisted.
type Event struct {
	Type      string   `json:"type"`
	Timestamp int64    `json:"timestamp,omitempty"`
	Source    Source   `json:"source"`
	Message   *Message `json:"message,omitempty"`
}

// Source identifies the chat an event came from.
type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// SourceType returns the normalized source type.
func (s Source) SourceType() SourceType {
	return ParseSourceType(s.Type)
}

// ChatID returns the identifier matching the source type.
func (s Source) ChatID() string {
	switch s.SourceType() {
	case SourceGroup:
		return s.GroupID
	case SourceRoom:
		return s.RoomID
	case SourceUser:
		return s.UserID
	default:
		return ""
	}
}

// Message is the message portion of a webhook event.
type Message struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	StickerID string `json:"stickerId,omitempty"`
	PackageID string `json:"packageId,omitempty"`
}

// Kind returns the normalized message kind.
func (m *Message) Kind() MessageKind {
	if m == nil {
		return KindOther
	}
	return ParseMessageKind(m.Type)
}
