package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"mentalspace/internal/domain"
	"mentalspace/internal/domain/model"
	"mentalspace/internal/domain/ports/adapter"
	"mentalspace/internal/domain/ports/repository"
	"mentalspace/internal/infra/logging"
)

var _ CounselorUseCase = (*counselorUC)(nil)

type CounselorUseCase interface {
	ListAvailable(ctx context.Context) ([]*model.Counselor, error)
	// SetPresence toggles the caller's online flag and broadcasts the change.
	SetPresence(ctx context.Context, p model.Principal, online bool) (*model.Counselor, error)
}

// PresenceEvent is the counselor:online / counselor:offline payload.
type PresenceEvent struct {
	CounselorID string                `json:"counselorId"`
	Status      model.CounselorStatus `json:"status"`
}

type counselorUC struct {
	counselors repository.CounselorRepository
	tm         repository.TransactionManager
	relay      adapter.Relay
	log        *zerolog.Logger
}

func NewCounselorUseCase(counselors repository.CounselorRepository, tm repository.TransactionManager, relay adapter.Relay, logger *zerolog.Logger) *counselorUC {
	if relay == nil {
		relay = adapter.NoopRelay{}
	}
	return &counselorUC{counselors: counselors, tm: tm, relay: relay, log: logger}
}

func (u *counselorUC) ListAvailable(ctx context.Context) ([]*model.Counselor, error) {
	defer logging.TraceDuration(u.log, "CounselorUC.ListAvailable")()
	return u.counselors.ListAvailable(ctx, repository.NoTX)
}

func (u *counselorUC) SetPresence(ctx context.Context, p model.Principal, online bool) (*model.Counselor, error) {
	defer logging.TraceDuration(u.log, "CounselorUC.SetPresence")()

	if !p.IsCounselor() {
		return nil, domain.ErrWrongAccountKind
	}
	var c *model.Counselor
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		c, err = u.counselors.FindByID(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		now := time.Now()
		if online {
			c.GoOnline(now)
		} else {
			c.GoOffline(now)
		}
		return u.counselors.SetPresence(ctx, tx, c.ID, c.IsOnline, c.Status)
	})
	if err != nil {
		return nil, err
	}

	event := adapter.EventCounselorOffline
	if online {
		event = adapter.EventCounselorOnline
	}
	u.relay.Broadcast(event, PresenceEvent{CounselorID: c.ID, Status: c.Status})
	u.log.Info().Str("counselor_id", c.ID).Bool("online", online).Msg("counselor presence changed")
	return c, nil
}
