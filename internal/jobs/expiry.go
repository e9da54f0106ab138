package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gthanmon/gemini-account-manager/internal/metrics"
	"github.com/gthanmon/gemini-account-manager/internal/model"
	"github.com/gthanmon/gemini-account-manager/internal/repository"
	"github.com/gthanmon/gemini-account-manager/internal/service"
	"github.com/gthanmon/gemini-account-manager/internal/sse"
)

const sweepTimeout = 30 * time.Second

type Publisher interface {
	Publish(ctx context.Context, userID string, event sse.Event) error
}

// ExpiryJob periodically derives expiry notifications for every owner and
// pushes them to connected clients. Nothing is persisted.
type ExpiryJob struct {
	repo      repository.AccountRepository
	publisher Publisher
	metrics   *metrics.Metrics
	interval  time.Duration
	now       func() time.Time
	done      chan struct{}
}

func NewExpiryJob(
	repo repository.AccountRepository,
	publisher Publisher,
	m *metrics.Metrics,
	interval time.Duration,
) *ExpiryJob {
	return &ExpiryJob{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		interval:  interval,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

func (j *ExpiryJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("expiry job started")
}

func (j *ExpiryJob) Stop() {
	close(j.done)
	log.Info().Msg("expiry job stopped")
}

func (j *ExpiryJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *ExpiryJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	accounts, err := j.repo.ListFamilyActive(ctx, "")
	if err != nil {
		log.Error().Err(err).Msg("expiry sweep: list family accounts")
		return
	}

	now := j.now()
	published := 0
	for _, account := range accounts {
		for _, n := range service.DeriveNotifications([]model.Account{account}, now) {
			if err := j.publish(ctx, account.UserID, n); err != nil {
				log.Error().
					Err(err).
					Str("accountId", n.AccountID).
					Int("slotIndex", n.SlotIndex).
					Msg("expiry sweep: publish notification")
				continue
			}
			published++
		}
	}

	j.metrics.IncrementSweeps()
	if published > 0 {
		log.Info().Int("count", published).Int("accounts", len(accounts)).Msg("published expiry notifications")
	}
}

func (j *ExpiryJob) publish(ctx context.Context, userID string, n model.Notification) error {
	event, err := sse.NotificationEvent(n)
	if err != nil {
		return err
	}
	return j.publisher.Publish(ctx, userID, event)
}
