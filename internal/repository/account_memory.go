package repository

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gthanmon/gemini-account-manager/internal/model"
)

// MemoryAccountRepository is an in-process AccountRepository with the same
// version and uniqueness rules as the Postgres one.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*model.Account
	now      func() time.Time
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		accounts: make(map[string]*model.Account),
		now:      time.Now,
	}
}

var _ AccountRepository = (*MemoryAccountRepository)(nil)

func (r *MemoryAccountRepository) FindByID(_ context.Context, id string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	return a.Clone(), nil
}

func (r *MemoryAccountRepository) List(_ context.Context, filter model.AccountFilter) ([]model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := []model.Account{}
	for _, a := range r.accounts {
		if filter.UserID != "" && a.UserID != filter.UserID {
			continue
		}
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if search != "" && !matchesSearch(a, search) {
			continue
		}
		out = append(out, *a.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryAccountRepository) ListFamilyActive(_ context.Context, userID string) ([]model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.Account{}
	for _, a := range r.accounts {
		if a.Type != model.AccountTypeFamily || a.Status != model.AccountStatusActive {
			continue
		}
		if userID != "" && a.UserID != userID {
			continue
		}
		out = append(out, *a.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryAccountRepository) Create(_ context.Context, params model.CreateAccountParams) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.Email == params.Email {
			return nil, ErrDuplicateEmail
		}
	}

	now := r.now()
	a := &model.Account{
		ID:          uuid.NewString(),
		UserID:      params.UserID,
		Type:        model.AccountTypePersonal,
		Status:      model.AccountStatusActive,
		Email:       params.Email,
		Password:    params.Password,
		BackupEmail: params.BackupEmail,
		TotpSecret:  params.TotpSecret,
		BatchTag:    params.BatchTag,
		Slots:       model.Slots{},
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.accounts[a.ID] = a
	return a.Clone(), nil
}

func (r *MemoryAccountRepository) Update(_ context.Context, account *model.Account) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.accounts[account.ID]
	if !ok || current.Version != account.Version {
		return nil, ErrStaleVersion
	}

	next := account.Clone()
	next.Email = current.Email
	next.UserID = current.UserID
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version + 1
	next.UpdatedAt = r.now()
	r.accounts[next.ID] = next
	return next.Clone(), nil
}

func (r *MemoryAccountRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return false, nil
	}
	delete(r.accounts, id)
	return true, nil
}

func matchesSearch(a *model.Account, search string) bool {
	fields := []string{a.Email}
	for _, p := range []*string{a.BackupEmail, a.BatchTag, a.BuyerName, a.BuyerOrder} {
		if p != nil {
			fields = append(fields, *p)
		}
	}
	if len(a.Slots) > 0 {
		if data, err := json.Marshal(a.Slots); err == nil {
			fields = append(fields, string(data))
		}
	}

	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}
