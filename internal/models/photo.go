package models

import "time"

// Photo is a gallery image, optionally attached to a member
type Photo struct {
	ID         int64     `json:"id"`
	MemberID   *string   `json:"memberId,omitempty"`
	URL        string    `json:"url"`
	Caption    string    `json:"caption,omitempty"`
	UploadedBy int64     `json:"uploadedBy"`
	CreatedAt  time.Time `json:"createdAt"`
}
