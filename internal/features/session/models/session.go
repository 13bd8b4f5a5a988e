package models

import "time"

// Step is the next input the creation dialog expects.
type Step string

const (
	StepPrize       Step = "prize"
	StepDescription Step = "description"
	StepDuration    Step = "duration"
	StepWinners     Step = "winners"
)

// Session is an admin's in-progress giveaway creation dialog.
type Session struct {
	UserID      int64     `json:"user_id"`
	Step        Step      `json:"step"`
	Prize       string    `json:"prize,omitempty"`
	Description string    `json:"description,omitempty"`
	EndTime     time.Time `json:"end_time,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
