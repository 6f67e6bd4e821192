//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"mentalspace/internal/domain/model"
)

func seedUser(t *testing.T, email string) *model.User {
	t.Helper()
	u, err := model.NewUser(email, "hash", "Test", "User")
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if err := NewUserRepo(testPool).Save(context.Background(), nil, u); err != nil {
		t.Fatalf("save user: %v", err)
	}
	return u
}

// seedCounselor stores an online, available counselor with the given load.
// createdAt orders ties.
func seedCounselor(t *testing.T, email string, totalSessions int, createdAt time.Time) *model.Counselor {
	t.Helper()
	c := model.NewCounselor(email, "hash", "Coun", "Selor", "LIC-1")
	c.IsOnline = true
	c.Status = model.CounselorAvailable
	c.TotalSessions = totalSessions
	c.CreatedAt = createdAt
	if err := NewCounselorRepo(testPool).Save(context.Background(), nil, c); err != nil {
		t.Fatalf("save counselor: %v", err)
	}
	return c
}
