package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gthanmon/gemini-account-manager/internal/errors"
	"github.com/gthanmon/gemini-account-manager/internal/metrics"
	"github.com/gthanmon/gemini-account-manager/internal/model"
)

func slotExpiring(at time.Time, buyer string) *model.Slot {
	return &model.Slot{Buyer: buyer, AssignedAt: testNow.Add(-time.Hour), ExpireDays: intPtr(1), ExpiresAt: &at}
}

func familyAccount(id string, slots ...*model.Slot) model.Account {
	s := model.NewFamilySlots()
	copy(s, slots)
	return model.Account{
		ID:     id,
		UserID: owner.UserID,
		Email:  id + "@example.com",
		Type:   model.AccountTypeFamily,
		Status: model.AccountStatusActive,
		Slots:  s,
	}
}

func TestDeriveNotifications(t *testing.T) {
	accounts := []model.Account{
		familyAccount("a1",
			slotExpiring(testNow.Add(-time.Minute), "Old"),
			nil,
			&model.Slot{Buyer: "Forever"},
			slotExpiring(testNow.Add(2*time.Hour), "Soon"),
			slotExpiring(testNow.Add(48*time.Hour), "Later"),
		),
		familyAccount("a2", nil, slotExpiring(testNow, "Boundary")),
	}

	banned := familyAccount("a3", slotExpiring(testNow.Add(-time.Hour), "Hidden"))
	banned.Status = model.AccountStatusBanned
	accounts = append(accounts, banned)

	got := DeriveNotifications(accounts, testNow)
	require.Len(t, got, 3)

	assert.Equal(t, "a1", got[0].AccountID)
	assert.Equal(t, "a1@example.com", got[0].AccountEmail)
	assert.Equal(t, 0, got[0].SlotIndex)
	assert.Equal(t, "Old", got[0].Buyer)
	assert.Equal(t, model.NotificationExpired, got[0].Status)
	assert.Equal(t, "Expired", got[0].StatusText)

	assert.Equal(t, 3, got[1].SlotIndex)
	assert.Equal(t, model.NotificationExpiring, got[1].Status)
	assert.Equal(t, "Expiring soon", got[1].StatusText)

	assert.Equal(t, "a2", got[2].AccountID)
	assert.Equal(t, 1, got[2].SlotIndex)
	assert.Equal(t, model.NotificationExpired, got[2].Status)
}

func TestDeriveNotifications_Empty(t *testing.T) {
	got := DeriveNotifications(nil, testNow)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestNotificationService_ListExpiring(t *testing.T) {
	ctx := context.Background()
	acc := familyAccount("a1", slotExpiring(testNow.Add(-time.Minute), "Old"))

	newSvc := func(repo *mockAccountRepo) *NotificationService {
		s := NewNotificationService(repo, metrics.New(prometheus.NewRegistry()))
		s.now = func() time.Time { return testNow }
		return s
	}

	t.Run("scopes by owner", func(t *testing.T) {
		repo := new(mockAccountRepo)
		repo.On("ListFamilyActive", mock.Anything, owner.UserID).Return([]model.Account{acc}, nil)

		got, err := newSvc(repo).ListExpiring(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, got, 1)
		repo.AssertExpectations(t)
	})

	t.Run("admin sees every owner", func(t *testing.T) {
		repo := new(mockAccountRepo)
		repo.On("ListFamilyActive", mock.Anything, "").Return([]model.Account{acc}, nil)

		_, err := newSvc(repo).ListExpiring(ctx, admin)
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("storage failure", func(t *testing.T) {
		repo := new(mockAccountRepo)
		repo.On("ListFamilyActive", mock.Anything, owner.UserID).Return(nil, errors.New("down"))

		_, err := newSvc(repo).ListExpiring(ctx, owner)
		assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))
	})

	t.Run("concurrent requests share one scan", func(t *testing.T) {
		release := make(chan time.Time)
		repo := new(mockAccountRepo)
		repo.On("ListFamilyActive", mock.Anything, owner.UserID).
			WaitUntil(release).
			Return([]model.Account{acc}, nil).
			Once()

		svc := newSvc(repo)
		var wg sync.WaitGroup
		results := make([][]model.Notification, 4)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], _ = svc.ListExpiring(ctx, owner)
			}()
		}

		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		for _, r := range results {
			assert.Len(t, r, 1)
		}
		repo.AssertNumberOfCalls(t, "ListFamilyActive", 1)
	})
}
