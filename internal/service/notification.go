package service

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/gthanmon/gemini-account-manager/internal/errors"
	"github.com/gthanmon/gemini-account-manager/internal/metrics"
	"github.com/gthanmon/gemini-account-manager/internal/model"
	"github.com/gthanmon/gemini-account-manager/internal/repository"
	"github.com/gthanmon/gemini-account-manager/internal/slot"
)

const notificationQueryTimeout = 10 * time.Second

type NotificationService struct {
	repo    repository.AccountRepository
	metrics *metrics.Metrics
	group   singleflight.Group
	now     func() time.Time
}

func NewNotificationService(repo repository.AccountRepository, m *metrics.Metrics) *NotificationService {
	return &NotificationService{
		repo:    repo,
		metrics: m,
		now:     time.Now,
	}
}

// ListExpiring derives the caller's expiring and expired slots at this
// moment. Identical requests in flight at the same time share one scan.
func (s *NotificationService) ListExpiring(ctx context.Context, caller model.Caller) ([]model.Notification, error) {
	userID, key := caller.UserID, "user:"+caller.UserID
	if caller.IsAdmin() {
		userID, key = "", "admin"
	}

	resultChan := s.group.DoChan(key, func() (any, error) {
		scanCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notificationQueryTimeout)
		defer cancel()

		accounts, err := s.repo.ListFamilyActive(scanCtx, userID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		return DeriveNotifications(accounts, s.now()), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		notifications := res.Val.([]model.Notification)
		s.record(notifications)
		return notifications, nil
	}
}

func (s *NotificationService) record(notifications []model.Notification) {
	var expired, expiring int
	for _, n := range notifications {
		if n.Status == model.NotificationExpired {
			expired++
		} else {
			expiring++
		}
	}
	s.metrics.AddNotifications(string(model.NotificationExpired), expired)
	s.metrics.AddNotifications(string(model.NotificationExpiring), expiring)
}

// DeriveNotifications emits one notification per expired or expiring slot of
// the FAMILY/ACTIVE accounts given, in account order then slot index.
func DeriveNotifications(accounts []model.Account, now time.Time) []model.Notification {
	out := []model.Notification{}
	for _, a := range accounts {
		if a.Type != model.AccountTypeFamily || a.Status != model.AccountStatusActive {
			continue
		}
		for i, s := range a.Slots {
			var status model.NotificationStatus
			switch slot.Classify(s, now) {
			case model.SlotStateExpired:
				status = model.NotificationExpired
			case model.SlotStateExpiringSoon:
				status = model.NotificationExpiring
			default:
				continue
			}

			out = append(out, model.Notification{
				AccountID:    a.ID,
				AccountEmail: a.Email,
				SlotIndex:    i,
				Buyer:        s.Buyer,
				ExpireDays:   s.ExpireDays,
				ExpiresAt:    s.ExpiresAt,
				AssignedAt:   s.AssignedAt,
				Status:       status,
				StatusText:   status.Text(),
			})
		}
	}
	return out
}
