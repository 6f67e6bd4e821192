package model

import (
	"time"

	"github.com/google/uuid"
)

type CounselorStatus string

const (
	CounselorAvailable CounselorStatus = "available"
	CounselorBusy      CounselorStatus = "busy"
	CounselorOffline   CounselorStatus = "offline"
)

// Counselor is a directory entry. Capacity is one session at a time: the
// status flips to busy on assignment and back to available on session end.
type Counselor struct {
	ID              string          `json:"id"`
	Email           string          `json:"email"`
	PasswordHash    string          `json:"-"`
	FirstName       string          `json:"firstName"`
	LastName        string          `json:"lastName"`
	LicenseNumber   string          `json:"licenseNumber,omitempty"`
	Specializations []string        `json:"specializations"`
	Bio             string          `json:"bio,omitempty"`
	Avatar          string          `json:"avatar,omitempty"`
	IsOnline        bool            `json:"isOnline"`
	Status          CounselorStatus `json:"status"`
	Rating          float64         `json:"rating"`
	TotalSessions   int             `json:"totalSessions"`
	Languages       []string        `json:"languages"`
	Timezone        string          `json:"timezone"`
	IsActive        bool            `json:"isActive"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func NewCounselor(email, passwordHash, firstName, lastName, license string) *Counselor {
	now := time.Now()
	return &Counselor{
		ID:              uuid.NewString(),
		Email:           email,
		PasswordHash:    passwordHash,
		FirstName:       firstName,
		LastName:        lastName,
		LicenseNumber:   license,
		Specializations: []string{},
		Status:          CounselorOffline,
		Languages:       []string{"en"},
		Timezone:        "UTC",
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Eligible reports whether the counselor can be matched right now.
func (c *Counselor) Eligible() bool {
	return c.IsOnline && c.Status == CounselorAvailable && c.IsActive
}

// GoOnline marks the counselor online. A busy counselor stays busy.
func (c *Counselor) GoOnline(now time.Time) {
	c.IsOnline = true
	if c.Status != CounselorBusy {
		c.Status = CounselorAvailable
	}
	c.UpdatedAt = now
}

// GoOffline marks the counselor offline. A busy counselor keeps its session
// and stays busy until the session ends.
func (c *Counselor) GoOffline(now time.Time) {
	c.IsOnline = false
	if c.Status != CounselorBusy {
		c.Status = CounselorOffline
	}
	c.UpdatedAt = now
}

// MeanRating is the arithmetic mean of ratings, 0 when there are none.
func MeanRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return float64(sum) / float64(len(ratings))
}
