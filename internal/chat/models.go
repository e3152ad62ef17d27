package chat

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Message is one transcript entry. Role and content are the only fields the
// persistence layer interprets; everything else the UI attaches survives a
// round trip untouched in Extra.
type Message struct {
	ID      string
	Role    string
	Content string
	Extra   map[string]json.RawMessage
}

func (m Message) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.ID != "" {
		out["id"] = m.ID
	}
	out["role"] = m.Role
	out["content"] = m.Content
	return json.Marshal(out)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["id"]; ok {
		if err := json.Unmarshal(v, &m.ID); err != nil {
			return err
		}
		delete(raw, "id")
	}
	if v, ok := raw["role"]; ok {
		if err := json.Unmarshal(v, &m.Role); err != nil {
			return err
		}
		delete(raw, "role")
	}
	if v, ok := raw["content"]; ok {
		if err := json.Unmarshal(v, &m.Content); err != nil {
			return err
		}
		delete(raw, "content")
	}
	if len(raw) > 0 {
		m.Extra = raw
	} else {
		m.Extra = nil
	}
	return nil
}

// MessageList is stored as one JSON blob in the messages column.
type MessageList []Message

func (l MessageList) Value() (driver.Value, error) {
	if l == nil {
		l = MessageList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *MessageList) Scan(value any) error {
	return scanJSON(value, l, "messages")
}

// ChatMetadata carries the version-control remote and deploy target a chat is
// linked to. Stored as a nullable JSON text column.
type ChatMetadata struct {
	GitURL    string `json:"gitUrl,omitempty"`
	GitBranch string `json:"gitBranch,omitempty"`
	SiteID    string `json:"netlifySiteId,omitempty"`
}

func (m *ChatMetadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *ChatMetadata) Scan(value any) error {
	return scanJSON(value, m, "metadata")
}

// MetadataMap is the free-form string map attached to a file row.
type MetadataMap map[string]string

func (m MetadataMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *MetadataMap) Scan(value any) error {
	return scanJSON(value, m, "file metadata")
}

func scanJSON(value any, out any, what string) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("%w: unexpected %s column type %T", ErrEncoding, what, value)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEncoding, what, err)
	}
	return nil
}

// Chat is one transcript. ID is a decimal string minted by NextChatID and
// never changes; URLID is the human-shareable alias, unique when present.
type Chat struct {
	ID          string        `gorm:"primaryKey;size:64" json:"id"`
	URLID       *string       `gorm:"column:url_id;uniqueIndex;size:128" json:"urlId,omitempty"`
	Messages    MessageList   `gorm:"type:text;not null" json:"messages"`
	Description *string       `gorm:"type:text" json:"description,omitempty"`
	Timestamp   string        `gorm:"size:64;not null" json:"timestamp"`
	Metadata    *ChatMetadata `gorm:"type:text" json:"metadata,omitempty"`

	Snapshot *Snapshot      `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
	Files    []FileMetadata `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Chat) TableName() string { return "chats" }

// Snapshot is the serialized project state for a chat, at most one per chat.
type Snapshot struct {
	ChatID string `gorm:"primaryKey;size:64" json:"chatId"`
	Data   string `gorm:"type:text;not null" json:"data"`
}

func (Snapshot) TableName() string { return "snapshots" }

// FileMetadata is the relational half of a stored file; the blob lives in the
// object store under the same id.
type FileMetadata struct {
	ID          string      `gorm:"primaryKey;size:26" json:"id"` // ULID length
	ChatID      *string     `gorm:"column:chat_id;index;size:64" json:"chatId,omitempty"`
	Path        string      `gorm:"size:1024;not null;index" json:"path"`
	ContentType *string     `gorm:"size:255" json:"contentType,omitempty"`
	Size        int64       `gorm:"not null" json:"size"`
	Timestamp   string      `gorm:"size:64;not null;index" json:"timestamp"`
	Metadata    MetadataMap `gorm:"type:text" json:"metadata,omitempty"`
}

func (FileMetadata) TableName() string { return "files" }

// Extension tables carried in the bootstrap schema. Not exercised by the
// persistence surface itself; route layers above build on them.

type User struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement" json:"-"`
	Username  string     `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email     string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	Settings  string     `gorm:"type:text" json:"settings,omitempty"`

	APIKeys []APIKey `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string { return "users" }

type UserSession struct {
	ID      string `gorm:"primaryKey;size:64"`
	UserID  uint64 `gorm:"index"`
	Data    string `gorm:"type:text"`
	Expires int64  `gorm:"index"`
}

func (UserSession) TableName() string { return "sessions" }

type APIKey struct {
	UserID    uint64    `gorm:"primaryKey"`
	Provider  string    `gorm:"primaryKey;size:64"`
	APIKey    string    `gorm:"size:512;not null"`
	CreatedAt time.Time
}

func (APIKey) TableName() string { return "api_keys" }
