package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SlotCount is the fixed number of positions a family account carries.
const SlotCount = 5

// Slot is one sub-allocation of a family account. It has no identity beyond
// its index in Slots.
type Slot struct {
	Buyer       string           `json:"buyer"`
	BuyerSource *string          `json:"buyerSource"`
	InviteEmail *string          `json:"order"`
	Price       *decimal.Decimal `json:"price"`
	AssignedAt  time.Time        `json:"assignedAt"`
	ExpireDays  *int             `json:"expireDays"`
	ExpiresAt   *time.Time       `json:"expiresAt"`
}

// Slots is empty for personal accounts and holds exactly SlotCount positions
// for family accounts. A nil element is an empty position.
type Slots []*Slot

func NewFamilySlots() Slots {
	return make(Slots, SlotCount)
}

func (s Slots) Occupied() int {
	n := 0
	for _, slot := range s {
		if slot != nil {
			n++
		}
	}
	return n
}

func (s Slots) Clone() Slots {
	if s == nil {
		return Slots{}
	}
	out := make(Slots, len(s))
	for i, slot := range s {
		if slot != nil {
			cp := *slot
			out[i] = &cp
		}
	}
	return out
}

// MarshalJSON renders an absent collection as [] rather than null.
func (s Slots) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]*Slot(s))
}

// Value implements driver.Valuer for the JSONB column.
func (s Slots) Value() (driver.Value, error) {
	data, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner. Shape is validated here once so callers can
// rely on len being 0 or SlotCount.
func (s *Slots) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*s = Slots{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("slots: unsupported source type %T", src)
	}

	var decoded []*Slot
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("slots: decode: %w", err)
	}
	if len(decoded) != 0 && len(decoded) != SlotCount {
		return fmt.Errorf("slots: expected 0 or %d positions, got %d", SlotCount, len(decoded))
	}
	if decoded == nil {
		decoded = []*Slot{}
	}
	*s = Slots(decoded)
	return nil
}
