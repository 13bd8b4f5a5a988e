package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GiveawayStatus represents the status of a giveaway
type GiveawayStatus string

const (
	GiveawayStatusActive              GiveawayStatus = "active"               // Accepting participants
	GiveawayStatusEnded               GiveawayStatus = "ended"                // Closed; winners (if any) selected
	GiveawayStatusPendingAnnouncement GiveawayStatus = "pending_announcement" // Winners selected, not yet announced
	GiveawayStatusAnnounced           GiveawayStatus = "announced"            // Winners announced
)

// Valid reports whether s is one of the known statuses.
func (s GiveawayStatus) Valid() bool {
	switch s {
	case GiveawayStatusActive, GiveawayStatusEnded, GiveawayStatusPendingAnnouncement, GiveawayStatusAnnounced:
		return true
	}
	return false
}

// Closed reports whether winners may exist for a giveaway in this status.
func (s GiveawayStatus) Closed() bool {
	return s == GiveawayStatusEnded || s == GiveawayStatusPendingAnnouncement || s == GiveawayStatusAnnounced
}

// Giveaway represents a giveaway event
type Giveaway struct {
	ID           string         `json:"id" bson:"_id"`
	Prize        string         `json:"prize" bson:"prize"`
	Description  string         `json:"description" bson:"description"`
	EndTime      time.Time      `json:"end_time" bson:"end_time"` // informational only
	WinnersCount int            `json:"winners_count" bson:"winners_count"`
	Status       GiveawayStatus `json:"status" bson:"status"`
	Participants []int64        `json:"participants" bson:"participants"`
	Winners      []int64        `json:"winners" bson:"winners"`
	CreatedBy    int64          `json:"created_by" bson:"created_by"`
	CreatedAt    time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" bson:"updated_at"`
}

func (g *Giveaway) ParticipantsCount() int {
	return len(g.Participants)
}

func (g *Giveaway) HasParticipant(userID int64) bool {
	for _, id := range g.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

func (g *Giveaway) IsWinner(userID int64) bool {
	for _, id := range g.Winners {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share the participant slices.
func (g *Giveaway) Clone() *Giveaway {
	if g == nil {
		return nil
	}
	c := *g
	c.Participants = append(make([]int64, 0, len(g.Participants)), g.Participants...)
	c.Winners = append(make([]int64, 0, len(g.Winners)), g.Winners...)
	return &c
}

// NewGiveawayID returns GA_<yyyymmddhhmmss>_<8 hex>. The time prefix keeps ids
// sortable for humans, the suffix comes from a random UUID.
func NewGiveawayID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("GA_%s_%s", now.UTC().Format("20060102150405"), suffix)
}
