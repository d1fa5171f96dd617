package models

import "time"

// Broadcast is a message sent to all users, optionally scheduled
type Broadcast struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
	SentCount   int        `json:"sentCount"`
	FailedCount int        `json:"failedCount"`
	CreatedBy   int64      `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// IsSent reports whether the broadcast has already been dispatched
func (b *Broadcast) IsSent() bool {
	return b.SentAt != nil
}

// RSVPResponse is a user's reply to a broadcast
type RSVPResponse string

const (
	RSVPYes   RSVPResponse = "YES"
	RSVPNo    RSVPResponse = "NO"
	RSVPMaybe RSVPResponse = "MAYBE"
)

// IsValid reports whether the response is one of the known values
func (r RSVPResponse) IsValid() bool {
	switch r {
	case RSVPYes, RSVPNo, RSVPMaybe:
		return true
	}
	return false
}

// BroadcastRSVP records one user's response to a broadcast; upserted per user
type BroadcastRSVP struct {
	BroadcastID int64        `json:"broadcastId"`
	UserID      int64        `json:"userId"`
	UserName    string       `json:"userName,omitempty"`
	Response    RSVPResponse `json:"response"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// RSVPSummary aggregates responses for a broadcast
type RSVPSummary struct {
	Yes   int `json:"yes"`
	No    int `json:"no"`
	Maybe int `json:"maybe"`
}
