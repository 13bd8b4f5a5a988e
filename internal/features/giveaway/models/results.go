package models

// JoinResult is returned by a successful join. AlreadyJoined marks the
// idempotent no-op case; it is not an error.
type JoinResult struct {
	GiveawayID    string `json:"giveaway_id"`
	Joined        bool   `json:"joined"`
	AlreadyJoined bool   `json:"already_joined"`
	Participants  int    `json:"participants"`
}

// Delivery summarises one fan-out performed by the lifecycle.
type Delivery struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Blocked int `json:"blocked"`
	Skipped int `json:"skipped"`
}

type CloseResult struct {
	Giveaway       *Giveaway `json:"giveaway"`
	NoParticipants bool      `json:"no_participants"`
	Announced      bool      `json:"announced"`
	Delivery       Delivery  `json:"delivery"`
}

type AnnounceResult struct {
	Giveaway *Giveaway `json:"giveaway"`
	Delivery Delivery  `json:"delivery"`
}

type RerollResult struct {
	Giveaway        *Giveaway `json:"giveaway"`
	PreviousWinners []int64   `json:"previous_winners"`
	Delivery        Delivery  `json:"delivery"`
}

type Stats struct {
	Active              int64 `json:"active"`
	Ended               int64 `json:"ended"`
	PendingAnnouncement int64 `json:"pending_announcement"`
	Announced           int64 `json:"announced"`
}
