package models

import (
	"strconv"
	"strings"
	"time"
)

// User is a private-chat user who started the bot.
type User struct {
	ID         int64     `json:"id" bson:"_id"`
	Username   string    `json:"username" bson:"username"`
	FirstName  string    `json:"first_name" bson:"first_name"`
	LastName   string    `json:"last_name" bson:"last_name"`
	ReferredBy int64     `json:"referred_by,omitempty" bson:"referred_by,omitempty"`
	JoinedAt   time.Time `json:"joined_at" bson:"joined_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}

// Mention returns @username when present, otherwise the first name.
func (u *User) Mention() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return strconv.FormatInt(u.ID, 10)
}

type ChatType string

const (
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// IsChannel reports whether posts go to channel subscribers rather than members.
func (t ChatType) IsChannel() bool {
	return t == ChatChannel
}

// Chat is a group or channel the bot was added to. Chats only receive
// announcements.
type Chat struct {
	ID      int64     `json:"id" bson:"_id"`
	Type    ChatType  `json:"type" bson:"type"`
	Title   string    `json:"title" bson:"title"`
	AddedBy int64     `json:"added_by" bson:"added_by"`
	AddedAt time.Time `json:"added_at" bson:"added_at"`
}

// Counts summarizes the audience for /botstats.
type Counts struct {
	Users    int64 `json:"users"`
	Groups   int64 `json:"groups"`
	Channels int64 `json:"channels"`
}

const referralPrefix = "ref_"

// ParseReferral extracts the referrer id from a /start payload like "ref_123".
func ParseReferral(payload string) (int64, bool) {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, referralPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(payload, referralPrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ReferralLink builds the deep link users share.
func ReferralLink(botUsername string, userID int64) string {
	return "https://t.me/" + botUsername + "?start=" + referralPrefix + strconv.FormatInt(userID, 10)
}
