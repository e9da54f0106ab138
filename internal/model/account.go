package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	ID          string           `db:"id" json:"id"`
	UserID      string           `db:"user_id" json:"userId"`
	Type        AccountType      `db:"type" json:"type"`
	Status      AccountStatus    `db:"status" json:"status"`
	Email       string           `db:"email" json:"email"`
	Password    string           `db:"password" json:"password"`
	BackupEmail *string          `db:"backup_email" json:"backupEmail"`
	TotpSecret  *string          `db:"totp_secret" json:"totpSecret"`
	BatchTag    *string          `db:"batch_tag" json:"batchTag"`
	BuyerName   *string          `db:"buyer_name" json:"buyerName"`
	BuyerSource *string          `db:"buyer_source" json:"buyerSource"`
	BuyerOrder  *string          `db:"buyer_order" json:"buyerOrder"`
	BuyerPrice  *decimal.Decimal `db:"buyer_price" json:"buyerPrice"`
	SoldAt      *time.Time       `db:"sold_at" json:"soldAt"`
	BanReason   *string          `db:"ban_reason" json:"banReason"`
	BannedAt    *time.Time       `db:"banned_at" json:"bannedAt"`
	Slots       Slots            `db:"slots" json:"slots"`
	Version     int64            `db:"version" json:"version"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updatedAt"`
}

// Clone returns a deep copy so a mutation can be validated before it is
// persisted without touching the loaded row.
func (a *Account) Clone() *Account {
	cp := *a
	cp.Slots = a.Slots.Clone()
	return &cp
}

func (a *Account) ClearSale() {
	a.BuyerName = nil
	a.BuyerSource = nil
	a.BuyerOrder = nil
	a.BuyerPrice = nil
	a.SoldAt = nil
}

func (a *Account) ClearBan() {
	a.BanReason = nil
	a.BannedAt = nil
}

type CreateAccountParams struct {
	UserID      string
	Email       string
	Password    string
	BackupEmail *string
	TotpSecret  *string
	BatchTag    *string
}

type AccountFilter struct {
	UserID string
	Type   AccountType
	Status AccountStatus
	Search string
}

type SellParams struct {
	BuyerName   string
	BuyerSource *string
	BuyerOrder  *string
	BuyerPrice  *decimal.Decimal
}

type SoldInfoParams struct {
	BuyerName   string
	BuyerSource *string
	BuyerPrice  *decimal.Decimal
}

type EditAccountParams struct {
	Password    string
	BackupEmail *string
	TotpSecret  *string
	BatchTag    *string
}
