package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

const (
	defaultPayoutTTL   = 24 * time.Hour
	payoutExpiryBatch  = 200
	payoutFailedReason = "expired"
)

type stalePayoutRepo interface {
	ListStaleCreated(ctx context.Context, cutoff time.Time, limit int) ([]models.PayoutPayment, error)
	Transition(ctx context.Context, id uuid.UUID, from enums.PayoutStatus, updates map[string]any) (bool, error)
}

// PayoutExpiryJobParams configure the abandoned remittance sweep.
type PayoutExpiryJobParams struct {
	Logger     *logger.Logger
	Repository stalePayoutRepo
	TTL        time.Duration
}

// NewPayoutExpiryJob fails COD remittances that were opened but never
// captured within TTL. A failed payout can no longer be verified, so the
// partner opens a new one.
func NewPayoutExpiryJob(params PayoutExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPayoutTTL
	}
	return &payoutExpiryJob{
		logg: params.Logger,
		repo: params.Repository,
		ttl:  ttl,
		now:  time.Now,
	}, nil
}

type payoutExpiryJob struct {
	logg *logger.Logger
	repo stalePayoutRepo
	ttl  time.Duration
	now  func() time.Time
}

func (j *payoutExpiryJob) Name() string { return "payout_expiry" }

func (j *payoutExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.repo.ListStaleCreated(ctx, cutoff, payoutExpiryBatch)
	if err != nil {
		return fmt.Errorf("query stale payouts: %w", err)
	}

	var errs error
	expired := 0
	for _, payout := range stale {
		// a concurrent verify may capture the row first; the conditional
		// transition then matches nothing
		ok, err := j.repo.Transition(ctx, payout.ID, enums.PayoutStatusCreated, map[string]any{
			"status": enums.PayoutStatusFailed,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire payout %s: %w", payout.ID, err))
			continue
		}
		if ok {
			expired++
			j.logg.Info(j.logg.WithFields(ctx, map[string]any{
				"payout_id":           payout.ID.String(),
				"delivery_partner_id": payout.DeliveryPartnerID.String(),
				"reason":              payoutFailedReason,
			}), "payout expired")
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"scanned": len(stale),
		"expired": expired,
	})
	j.logg.Info(logCtx, "payout expiry sweep complete")
	return errs
}
