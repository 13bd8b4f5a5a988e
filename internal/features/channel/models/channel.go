package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// ForceChannel is a channel users must be subscribed to before joining.
type ForceChannel struct {
	ID       int64  `json:"id" bson:"id"`
	Title    string `json:"title" bson:"title"`
	Username string `json:"username" bson:"username"`

	// legacy marks entries decoded from an older stored shape
	legacy bool
}

// IsLegacy reports whether the entry was stored in an older shape and should
// be rewritten by the settings migration.
func (c ForceChannel) IsLegacy() bool {
	return c.legacy
}

// DisplayName prefers the title, then the @username, then the raw id.
func (c ForceChannel) DisplayName() string {
	switch {
	case c.Title != "":
		return c.Title
	case c.Username != "":
		return "@" + c.Username
	}
	return strconv.FormatInt(c.ID, 10)
}

// InviteLink returns the public t.me link, or "" for channels without a username.
func (c ForceChannel) InviteLink() string {
	if c.Username == "" {
		return ""
	}
	return "https://t.me/" + c.Username
}

// legacyForceChannel covers the {"id", "username"} shape written before titles
// were stored.
type legacyForceChannel struct {
	ID       int64  `json:"id" bson:"id"`
	Title    string `json:"title" bson:"title"`
	Username string `json:"username" bson:"username"`
}

// UnmarshalJSON accepts a bare chat id as well as the record shape.
func (c *ForceChannel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		var id int64
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("force channel: expected id or object, got %s", data)
		}
		*c = ForceChannel{ID: id, legacy: true}
		return nil
	}

	var raw legacyForceChannel
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = ForceChannel{ID: raw.ID, Title: raw.Title, Username: raw.Username, legacy: raw.Title == ""}
	return nil
}

// UnmarshalBSONValue mirrors UnmarshalJSON for documents stored in MongoDB.
func (c *ForceChannel) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Int64:
		*c = ForceChannel{ID: rv.Int64(), legacy: true}
		return nil
	case bsontype.Int32:
		*c = ForceChannel{ID: int64(rv.Int32()), legacy: true}
		return nil
	case bsontype.Double:
		*c = ForceChannel{ID: int64(rv.Double()), legacy: true}
		return nil
	case bsontype.EmbeddedDocument:
		var raw legacyForceChannel
		if err := rv.Unmarshal(&raw); err != nil {
			return err
		}
		*c = ForceChannel{ID: raw.ID, Title: raw.Title, Username: raw.Username, legacy: raw.Title == ""}
		return nil
	}
	return fmt.Errorf("force channel: unsupported bson type %s", t)
}

// Settings is the externally mutable bot configuration.
type Settings struct {
	ForceSubscribe bool           `json:"force_subscribe" bson:"force_subscribe"`
	ForceChannels  []ForceChannel `json:"force_channels" bson:"force_channels"`
	Admins         []int64        `json:"admins" bson:"admins"`
}

func (s *Settings) HasForceChannel(id int64) bool {
	for _, ch := range s.ForceChannels {
		if ch.ID == id {
			return true
		}
	}
	return false
}

func (s *Settings) HasAdmin(id int64) bool {
	for _, a := range s.Admins {
		if a == id {
			return true
		}
	}
	return false
}

// ChatInfo describes a chat resolved through the Bot API.
type ChatInfo struct {
	ID       int64
	Type     string // private, group, supergroup, channel
	Title    string
	Username string
}

// MemberStatus is a user's membership status in a chat.
type MemberStatus string

const (
	MemberCreator       MemberStatus = "creator"
	MemberAdministrator MemberStatus = "administrator"
	MemberMember        MemberStatus = "member"
	MemberRestricted    MemberStatus = "restricted"
	MemberLeft          MemberStatus = "left"
	MemberKicked        MemberStatus = "kicked"
)

// Subscribed reports whether the status counts as being in the chat.
func (s MemberStatus) Subscribed() bool {
	return s != MemberLeft && s != MemberKicked && s != ""
}
