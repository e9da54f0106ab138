// Package slot holds the pure state transitions of family-account slots.
// Functions never read the clock; callers pass now.
package slot

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/gthanmon/gemini-account-manager/internal/errors"
	"github.com/gthanmon/gemini-account-manager/internal/model"
	"github.com/gthanmon/gemini-account-manager/internal/util"
)

// ExpiringSoonWindow is how far ahead of expiry a slot counts as expiring.
const ExpiringSoonWindow = 24 * time.Hour

// MaxDays caps expireDays and the running total a renewal may reach.
const MaxDays = 36500

const day = 24 * time.Hour

type Input struct {
	Buyer       string
	BuyerSource *string
	InviteEmail *string
	Price       *decimal.Decimal
	// ExpireDays nil or negative means the slot never expires.
	ExpireDays *int
}

func checkIndex(slots model.Slots, index int) error {
	if len(slots) != model.SlotCount {
		return apperrors.ValidationError("account has no slots")
	}
	if index < 0 || index >= model.SlotCount {
		return apperrors.InvalidInput("slotIndex", fmt.Sprintf("must be between 0 and %d", model.SlotCount-1))
	}
	return nil
}

func expiry(base time.Time, days *int) (*int, *time.Time, error) {
	if days == nil || *days < 0 {
		return nil, nil, nil
	}
	d := *days
	if d > MaxDays {
		return nil, nil, apperrors.InvalidInput("expireDays", fmt.Sprintf("must be at most %d", MaxDays))
	}
	at := base.Add(time.Duration(d) * day)
	return &d, &at, nil
}

func fill(s *model.Slot, in Input, now time.Time) error {
	buyer := strings.TrimSpace(in.Buyer)
	if buyer == "" {
		return apperrors.MissingRequired("buyer")
	}
	if err := util.CheckPrice("price", in.Price); err != nil {
		return err
	}
	expireDays, expiresAt, err := expiry(now, in.ExpireDays)
	if err != nil {
		return err
	}
	s.Buyer = buyer
	s.BuyerSource = in.BuyerSource
	s.InviteEmail = in.InviteEmail
	s.Price = in.Price
	s.ExpireDays, s.ExpiresAt = expireDays, expiresAt
	return nil
}

// Assign occupies an empty position.
func Assign(slots model.Slots, index int, in Input, now time.Time) error {
	if err := checkIndex(slots, index); err != nil {
		return err
	}
	if slots[index] != nil {
		return apperrors.ValidationError(fmt.Sprintf("slot %d is already occupied", index))
	}

	s := &model.Slot{AssignedAt: now}
	if err := fill(s, in, now); err != nil {
		return err
	}
	slots[index] = s
	return nil
}

// Edit overwrites the details of an occupied position. AssignedAt is kept and
// expiry is recomputed from now.
func Edit(slots model.Slots, index int, in Input, now time.Time) error {
	if err := checkIndex(slots, index); err != nil {
		return err
	}
	if slots[index] == nil {
		return apperrors.ValidationError(fmt.Sprintf("slot %d is empty", index))
	}

	s := *slots[index]
	if err := fill(&s, in, now); err != nil {
		return err
	}
	slots[index] = &s
	return nil
}

// Release empties a position. Releasing an empty position is a no-op.
func Release(slots model.Slots, index int) error {
	if err := checkIndex(slots, index); err != nil {
		return err
	}
	slots[index] = nil
	return nil
}

// Renew extends an occupied position by days, counting from the current
// expiry if it is still in the future and from now otherwise.
func Renew(slots model.Slots, index int, days int, now time.Time) error {
	if err := checkIndex(slots, index); err != nil {
		return err
	}
	if slots[index] == nil {
		return apperrors.ValidationError(fmt.Sprintf("slot %d is empty", index))
	}
	if days <= 0 {
		return apperrors.InvalidInput("renewDays", "must be a positive number of days")
	}
	if days > MaxDays {
		return apperrors.InvalidInput("renewDays", fmt.Sprintf("must be at most %d", MaxDays))
	}

	s := *slots[index]
	total := days
	if s.ExpireDays != nil {
		total += *s.ExpireDays
	}
	if total > MaxDays {
		return apperrors.InvalidInput("renewDays", fmt.Sprintf("slot would run longer than %d days", MaxDays))
	}

	base := now
	if s.ExpiresAt != nil && s.ExpiresAt.After(now) {
		base = *s.ExpiresAt
	}
	at := base.Add(time.Duration(days) * day)
	s.ExpiresAt = &at
	s.ExpireDays = &total
	slots[index] = &s
	return nil
}

// Classify reports the state of a position at now.
func Classify(s *model.Slot, now time.Time) model.SlotState {
	switch {
	case s == nil:
		return model.SlotStateEmpty
	case s.ExpiresAt == nil:
		return model.SlotStateOccupied
	case !s.ExpiresAt.After(now):
		return model.SlotStateExpired
	case !s.ExpiresAt.After(now.Add(ExpiringSoonWindow)):
		return model.SlotStateExpiringSoon
	default:
		return model.SlotStateOccupied
	}
}
