package models

import (
	"errors"
	"strings"
	"time"
)

var ErrInvalidPayload = errors.New("invalid broadcast payload")

// RecipientKind distinguishes private users from chats. Groups and channels
// only ever receive announcements; they never take part in a draw.
type RecipientKind string

const (
	RecipientUser    RecipientKind = "user"
	RecipientGroup   RecipientKind = "group"
	RecipientChannel RecipientKind = "channel"
)

type Recipient struct {
	ID   int64         `json:"id"`
	Kind RecipientKind `json:"kind"`
}

func Users(ids []int64) []Recipient {
	out := make([]Recipient, 0, len(ids))
	for _, id := range ids {
		out = append(out, Recipient{ID: id, Kind: RecipientUser})
	}
	return out
}

// Target selects a recipient set for admin broadcasts.
type Target string

const (
	TargetUsers Target = "users"
	TargetChats Target = "chats"
	TargetAll   Target = "all"
)

func ParseTarget(s string) (Target, bool) {
	switch t := Target(strings.ToLower(strings.TrimSpace(s))); t {
	case TargetUsers, TargetChats, TargetAll:
		return t, true
	case "":
		return TargetAll, true
	}
	return "", false
}

type ParseMode string

const (
	ParseModeNone     ParseMode = ""
	ParseModeHTML     ParseMode = "HTML"
	ParseModeMarkdown ParseMode = "Markdown"
)

// Button is an inline keyboard button; exactly one of Data or URL is set.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data,omitempty"`
	URL  string `json:"url,omitempty"`
}

// MessageRef points to an existing message to be copied.
type MessageRef struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

// Payload is either a text message or a copy of an existing message.
type Payload struct {
	Text      string      `json:"text,omitempty"`
	ParseMode ParseMode   `json:"parse_mode,omitempty"`
	Keyboard  [][]Button  `json:"keyboard,omitempty"`
	CopyFrom  *MessageRef `json:"copy_from,omitempty"`
}

func (p Payload) Validate() error {
	hasText := strings.TrimSpace(p.Text) != ""
	hasCopy := p.CopyFrom != nil
	if hasText == hasCopy {
		return ErrInvalidPayload
	}
	if hasCopy && (p.CopyFrom.ChatID == 0 || p.CopyFrom.MessageID == 0) {
		return ErrInvalidPayload
	}
	for _, row := range p.Keyboard {
		for _, b := range row {
			if b.Text == "" || (b.Data == "") == (b.URL == "") {
				return ErrInvalidPayload
			}
		}
	}
	return nil
}

// Result aggregates one fan-out. Total counts the recipients a delivery was
// attempted for and always equals Success+Failed+Blocked. Skipped counts the
// ones never attempted because the fan-out was cancelled.
type Result struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Blocked int `json:"blocked"`
	Skipped int `json:"skipped"`
}

// Record is the stored history of an admin broadcast.
type Record struct {
	ID        string    `json:"id" bson:"_id"`
	Target    Target    `json:"target" bson:"target"`
	SentBy    int64     `json:"sent_by" bson:"sent_by"`
	Total     int       `json:"total" bson:"total"`
	Success   int       `json:"success" bson:"success"`
	Failed    int       `json:"failed" bson:"failed"`
	Blocked   int       `json:"blocked" bson:"blocked"`
	Skipped   int       `json:"skipped" bson:"skipped"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// RetryAfterError carries a flood-control hint from the transport: the
// recipient may be retried once After has elapsed.
type RetryAfterError struct {
	After time.Duration
	Err   error
}

func (e *RetryAfterError) Error() string {
	return "retry after " + e.After.String() + ": " + e.Err.Error()
}

func (e *RetryAfterError) Unwrap() error {
	return e.Err
}
