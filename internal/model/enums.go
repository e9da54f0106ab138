package model

type AccountType string

const (
	AccountTypePersonal AccountType = "PERSONAL"
	AccountTypeFamily   AccountType = "FAMILY"
)

func (t AccountType) Valid() bool {
	return t == AccountTypePersonal || t == AccountTypeFamily
}

type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "ACTIVE"
	AccountStatusSold    AccountStatus = "SOLD"
	AccountStatusBanned  AccountStatus = "BANNED"
	AccountStatusPending AccountStatus = "PENDING"
	AccountStatusInvalid AccountStatus = "INVALID"
)

var AccountStatuses = []AccountStatus{
	AccountStatusActive,
	AccountStatusSold,
	AccountStatusBanned,
	AccountStatusPending,
	AccountStatusInvalid,
}

func (s AccountStatus) Valid() bool {
	for _, v := range AccountStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// SlotState is the point-in-time classification of a slot position.
type SlotState string

const (
	SlotStateEmpty        SlotState = "EMPTY"
	SlotStateOccupied     SlotState = "OCCUPIED"
	SlotStateExpiringSoon SlotState = "EXPIRING_SOON"
	SlotStateExpired      SlotState = "EXPIRED"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)
