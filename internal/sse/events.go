package sse

import (
	"encoding/json"

	"github.com/gthanmon/gemini-account-manager/internal/model"
)

const (
	EventConnected    = "connected"
	EventSlotExpired  = "slot_expired"
	EventSlotExpiring = "slot_expiring"
)

func NotificationEvent(n model.Notification) (Event, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return Event{}, err
	}

	eventType := EventSlotExpiring
	if n.Status == model.NotificationExpired {
		eventType = EventSlotExpired
	}
	return Event{Type: eventType, Data: data}, nil
}
