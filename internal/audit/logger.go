package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventAccountCreate     EventType = "account_create"
	EventAccountEdit       EventType = "account_edit"
	EventAccountDelete     EventType = "account_delete"
	EventConvertToFamily   EventType = "convert_to_family"
	EventConvertToPersonal EventType = "convert_to_personal"
	EventSell              EventType = "sell_personal"
	EventCancelSold        EventType = "cancel_sold"
	EventUpdateSoldInfo    EventType = "update_sold_info"
	EventStatusChange      EventType = "status_change"
	EventSlotAssign        EventType = "slot_assign"
	EventSlotEdit          EventType = "slot_edit"
	EventSlotRelease       EventType = "slot_release"
	EventSlotRenew         EventType = "slot_renew"
	EventTOTPRead          EventType = "totp_read"
	EventAuthFailure       EventType = "auth_failure"
)

type Event struct {
	Type      EventType
	UserID    string
	AccountID string
	Details   map[string]any
}

// Log writes an audit record. Credential values never go into Details.
func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "lifecycle").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.UserID != "" {
		logger = logger.With().Str("user_id", event.UserID).Logger()
	}
	if event.AccountID != "" {
		logger = logger.With().Str("account_id", event.AccountID).Logger()
	}

	logEvent := logger.Info().Ctx(ctx)
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("audit event")
}

func addField(e *zerolog.Event, key string, value any) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}
