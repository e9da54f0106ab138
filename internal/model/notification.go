package model

import "time"

type NotificationStatus string

const (
	NotificationExpired  NotificationStatus = "expired"
	NotificationExpiring NotificationStatus = "expiring"
)

func (s NotificationStatus) Text() string {
	if s == NotificationExpired {
		return "Expired"
	}
	return "Expiring soon"
}

// Notification is derived from slot state on demand and never stored.
type Notification struct {
	AccountID    string             `json:"accountId"`
	AccountEmail string             `json:"accountEmail"`
	SlotIndex    int                `json:"slotIndex"`
	Buyer        string             `json:"buyer"`
	ExpireDays   *int               `json:"expireDays"`
	ExpiresAt    *time.Time         `json:"expiresAt"`
	AssignedAt   time.Time          `json:"assignedAt"`
	Status       NotificationStatus `json:"status"`
	StatusText   string             `json:"statusText"`
}
