package slot

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gthanmon/gemini-account-manager/internal/errors"
	"github.com/gthanmon/gemini-account-manager/internal/model"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func decPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func assigned(t *testing.T, index int, in Input) model.Slots {
	t.Helper()
	slots := model.NewFamilySlots()
	require.NoError(t, Assign(slots, index, in, now))
	return slots
}

func TestAssign(t *testing.T) {
	t.Run("sets assignedAt and expiry", func(t *testing.T) {
		price := decimal.RequireFromString("12.50")
		slots := assigned(t, 2, Input{
			Buyer:       "  Alice ",
			BuyerSource: strPtr("xianyu"),
			InviteEmail: strPtr("alice@example.com"),
			Price:       &price,
			ExpireDays:  intPtr(30),
		})

		s := slots[2]
		require.NotNil(t, s)
		assert.Equal(t, "Alice", s.Buyer)
		assert.Equal(t, now, s.AssignedAt)
		assert.Equal(t, 30, *s.ExpireDays)
		assert.Equal(t, now.Add(30*24*time.Hour), *s.ExpiresAt)
		assert.True(t, price.Equal(*s.Price))
		assert.Equal(t, 1, slots.Occupied())
	})

	t.Run("nil or negative days is perpetual", func(t *testing.T) {
		for _, days := range []*int{nil, intPtr(-1)} {
			slots := assigned(t, 0, Input{Buyer: "Bob", ExpireDays: days})
			assert.Nil(t, slots[0].ExpireDays)
			assert.Nil(t, slots[0].ExpiresAt)
			assert.Equal(t, model.SlotStateOccupied, Classify(slots[0], now.Add(1000*24*time.Hour)))
		}
	})

	t.Run("zero days is immediately expired", func(t *testing.T) {
		slots := assigned(t, 0, Input{Buyer: "Bob", ExpireDays: intPtr(0)})
		assert.Equal(t, 0, *slots[0].ExpireDays)
		assert.Equal(t, model.SlotStateExpired, Classify(slots[0], now))
	})

	t.Run("rejects bad input without mutating", func(t *testing.T) {
		slots := assigned(t, 1, Input{Buyer: "Bob"})
		before := slots.Clone()

		tests := []struct {
			name  string
			index int
			in    Input
		}{
			{"negative index", -1, Input{Buyer: "x"}},
			{"index too large", 5, Input{Buyer: "x"}},
			{"occupied", 1, Input{Buyer: "x"}},
			{"empty buyer", 0, Input{Buyer: "   "}},
			{"days past the cap", 0, Input{Buyer: "x", ExpireDays: intPtr(MaxDays + 1)}},
			{"days that would overflow", 0, Input{Buyer: "x", ExpireDays: intPtr(110000)}},
			{"sub-cent price", 0, Input{Buyer: "x", Price: decPtr("9.999")}},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				err := Assign(slots, tc.index, tc.in, now)
				require.Error(t, err)
				assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
				assert.Equal(t, before, slots)
			})
		}
	})

	t.Run("accepts the cap", func(t *testing.T) {
		slots := assigned(t, 0, Input{Buyer: "Bob", ExpireDays: intPtr(MaxDays)})
		assert.Equal(t, now.Add(MaxDays*24*time.Hour), *slots[0].ExpiresAt)
		assert.Equal(t, model.SlotStateOccupied, Classify(slots[0], now))
	})

	t.Run("rejects personal slots", func(t *testing.T) {
		err := Assign(model.Slots{}, 0, Input{Buyer: "x"}, now)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})
}

func TestEdit(t *testing.T) {
	t.Run("preserves assignedAt and recomputes expiry from now", func(t *testing.T) {
		slots := assigned(t, 3, Input{Buyer: "Alice", ExpireDays: intPtr(30)})
		later := now.Add(10 * 24 * time.Hour)

		require.NoError(t, Edit(slots, 3, Input{Buyer: "Alicia", ExpireDays: intPtr(7)}, later))

		s := slots[3]
		assert.Equal(t, "Alicia", s.Buyer)
		assert.Equal(t, now, s.AssignedAt)
		assert.Equal(t, 7, *s.ExpireDays)
		assert.Equal(t, later.Add(7*24*time.Hour), *s.ExpiresAt)
	})

	t.Run("clearing days makes slot perpetual", func(t *testing.T) {
		slots := assigned(t, 3, Input{Buyer: "Alice", ExpireDays: intPtr(30)})
		require.NoError(t, Edit(slots, 3, Input{Buyer: "Alice"}, now))
		assert.Nil(t, slots[3].ExpiresAt)
	})

	t.Run("requires occupied slot", func(t *testing.T) {
		err := Edit(model.NewFamilySlots(), 0, Input{Buyer: "x"}, now)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})

	t.Run("days past the cap leave slot untouched", func(t *testing.T) {
		slots := assigned(t, 0, Input{Buyer: "Alice", ExpireDays: intPtr(30)})
		before := *slots[0]

		err := Edit(slots, 0, Input{Buyer: "Alicia", ExpireDays: intPtr(1000000)}, now)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
		assert.Equal(t, before, *slots[0])
	})

	t.Run("empty buyer leaves slot untouched", func(t *testing.T) {
		slots := assigned(t, 0, Input{Buyer: "Alice"})
		err := Edit(slots, 0, Input{Buyer: ""}, now)
		assert.Error(t, err)
		assert.Equal(t, "Alice", slots[0].Buyer)
	})
}

func TestRelease(t *testing.T) {
	slots := model.NewFamilySlots()
	for i := range model.SlotCount {
		require.NoError(t, Assign(slots, i, Input{Buyer: "b"}, now))
	}

	require.NoError(t, Release(slots, 2))
	assert.Nil(t, slots[2])
	assert.Len(t, slots, model.SlotCount)
	for _, i := range []int{0, 1, 3, 4} {
		assert.NotNil(t, slots[i])
	}

	// releasing again is a no-op
	require.NoError(t, Release(slots, 2))
	assert.Error(t, Release(slots, 7))
}

func TestRenew(t *testing.T) {
	t.Run("extends from future expiry", func(t *testing.T) {
		slots := assigned(t, 0, Input{Buyer: "Alice", ExpireDays: intPtr(30)})
		later := now.Add(5 * 24 * time.Hour)

		require.NoError(t, Renew(slots, 0, 10, later))

		assert.Equal(t, now.Add(40*24*time.Hour), *slots[0].ExpiresAt)
		assert.Equal(t, 40, *slots[0].ExpireDays)
	})

	t.Run("lapsed slot renews from now", func(t *testing.T) {
		slots := assigned(t, 0, Input{Buyer: "Alice", ExpireDays: intPtr(0)})
		stale := now.Add(-10 * 24 * time.Hour)
		slots[0].ExpiresAt = &stale

		require.NoError(t, Renew(slots, 0, 5, now))

		assert.Equal(t, now.Add(5*24*time.Hour), *slots[0].ExpiresAt)
		assert.Equal(t, 5, *slots[0].ExpireDays)
	})

	t.Run("perpetual slot starts a term from now", func(t *testing.T) {
		slots := assigned(t, 0, Input{Buyer: "Alice"})
		require.NoError(t, Renew(slots, 0, 3, now))
		assert.Equal(t, 3, *slots[0].ExpireDays)
		assert.Equal(t, now.Add(3*24*time.Hour), *slots[0].ExpiresAt)
	})

	t.Run("rejects empty slot and non-positive days", func(t *testing.T) {
		slots := assigned(t, 0, Input{Buyer: "Alice", ExpireDays: intPtr(30)})
		before := *slots[0].ExpiresAt

		assert.Error(t, Renew(slots, 1, 5, now))
		assert.Error(t, Renew(slots, 0, 0, now))
		assert.Error(t, Renew(slots, 0, -3, now))
		assert.Equal(t, before, *slots[0].ExpiresAt)
	})

	t.Run("rejects days past the cap without moving expiry", func(t *testing.T) {
		slots := assigned(t, 0, Input{Buyer: "Alice", ExpireDays: intPtr(1)})
		before := *slots[0]

		for _, days := range []int{200000, MaxDays} {
			err := Renew(slots, 0, days, now)
			assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
		}
		assert.Equal(t, before, *slots[0])
		assert.Equal(t, model.SlotStateExpiringSoon, Classify(slots[0], now))
	})

	t.Run("renews up to the cap", func(t *testing.T) {
		slots := assigned(t, 0, Input{Buyer: "Alice", ExpireDays: intPtr(1)})
		require.NoError(t, Renew(slots, 0, MaxDays-1, now))
		assert.Equal(t, MaxDays, *slots[0].ExpireDays)
		assert.Equal(t, now.Add(MaxDays*24*time.Hour), *slots[0].ExpiresAt)
	})
}

func TestClassify(t *testing.T) {
	at := func(d time.Duration) *model.Slot {
		exp := now.Add(d)
		return &model.Slot{Buyer: "x", ExpireDays: intPtr(1), ExpiresAt: &exp}
	}

	tests := []struct {
		name string
		slot *model.Slot
		want model.SlotState
	}{
		{"empty", nil, model.SlotStateEmpty},
		{"perpetual", &model.Slot{Buyer: "x"}, model.SlotStateOccupied},
		{"expires now", at(0), model.SlotStateExpired},
		{"expired yesterday", at(-24 * time.Hour), model.SlotStateExpired},
		{"one second left", at(time.Second), model.SlotStateExpiringSoon},
		{"exactly 24h left", at(ExpiringSoonWindow), model.SlotStateExpiringSoon},
		{"24h and a second left", at(ExpiringSoonWindow + time.Second), model.SlotStateOccupied},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.slot, now))
		})
	}
}

func TestThirtyDayTermLifecycle(t *testing.T) {
	slots := assigned(t, 2, Input{Buyer: "Alice", ExpireDays: intPtr(30)})
	s := slots[2]

	assert.Equal(t, model.SlotStateOccupied, Classify(s, now.Add(29*24*time.Hour-time.Second)))
	assert.Equal(t, model.SlotStateExpiringSoon, Classify(s, now.Add(29*24*time.Hour)))
	assert.Equal(t, model.SlotStateExpiringSoon, Classify(s, now.Add(30*24*time.Hour-time.Second)))
	assert.Equal(t, model.SlotStateExpired, Classify(s, now.Add(30*24*time.Hour)))
}
