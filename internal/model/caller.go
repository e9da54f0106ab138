package model

// Caller is the authenticated principal invoking an operation.
type Caller struct {
	UserID string
	Role   Role
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// CanAccess reports whether the caller may read or mutate the account.
func (c Caller) CanAccess(a *Account) bool {
	return c.IsAdmin() || a.UserID == c.UserID
}
