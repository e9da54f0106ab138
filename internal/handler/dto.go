package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gthanmon/gemini-account-manager/internal/model"
	"github.com/gthanmon/gemini-account-manager/internal/slot"
)

const (
	actionConvertToFamily   = "convertToFamily"
	actionConvertToPersonal = "convertToPersonal"
	actionUpdateSlot        = "updateSlot"
	actionRenewSlot         = "renewSlot"
	actionUpdateStatus      = "updateStatus"
	actionSellPersonal      = "sellPersonal"
	actionCancelSold        = "cancelSold"
	actionUpdateSoldInfo    = "updateSoldInfo"
	actionEditAccount       = "editAccount"
	actionGetTOTP           = "getTOTP"

	slotActionAssign  = "assign"
	slotActionEdit    = "edit"
	slotActionRelease = "release"
)

// optionalInt decodes a JSON number or numeric string. Empty strings, null
// and anything that is not a whole number decode as absent.
type optionalInt struct {
	Value *int
}

func (o *optionalInt) UnmarshalJSON(b []byte) error {
	o.Value = nil
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	o.Value = &n
	return nil
}

// optionalDecimal decodes a JSON number or numeric string. Empty strings and
// null decode as absent.
type optionalDecimal struct {
	Value *decimal.Decimal
}

func (o *optionalDecimal) UnmarshalJSON(b []byte) error {
	o.Value = nil
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`)) {
		return nil
	}

	var d decimal.Decimal
	if err := json.Unmarshal(b, &d); err != nil {
		return fmt.Errorf("invalid price %s", b)
	}
	if d.IsNegative() {
		return fmt.Errorf("price must not be negative")
	}
	o.Value = &d
	return nil
}

type createAccountRequest struct {
	Email       string  `json:"email" validate:"required,max=320"`
	Password    string  `json:"password" validate:"required,max=512"`
	BackupEmail *string `json:"backupEmail" validate:"omitempty,max=320"`
	TotpSecret  *string `json:"totpSecret" validate:"omitempty,max=256"`
	BatchTag    *string `json:"batchTag" validate:"omitempty,max=128"`
}

func (req createAccountRequest) params() model.CreateAccountParams {
	return model.CreateAccountParams{
		Email:       req.Email,
		Password:    req.Password,
		BackupEmail: req.BackupEmail,
		TotpSecret:  req.TotpSecret,
		BatchTag:    req.BatchTag,
	}
}

// updateAccountRequest is the body of the action-dispatch endpoint. Only the
// fields the chosen action reads are consulted.
type updateAccountRequest struct {
	Action string `json:"action" validate:"required"`

	SlotIndex   optionalInt     `json:"slotIndex"`
	SlotAction  string          `json:"slotAction"`
	Buyer       string          `json:"buyer" validate:"max=256"`
	BuyerSource *string         `json:"buyerSource" validate:"omitempty,max=256"`
	Order       *string         `json:"order" validate:"omitempty,max=320"`
	Price       optionalDecimal `json:"price"`
	ExpireDays  optionalInt     `json:"expireDays"`
	RenewDays   optionalInt     `json:"renewDays"`

	Status    string  `json:"status"`
	BanReason *string `json:"banReason" validate:"omitempty,max=1024"`

	BuyerName  string          `json:"buyerName" validate:"max=256"`
	BuyerOrder *string         `json:"buyerOrder" validate:"omitempty,max=256"`
	BuyerPrice optionalDecimal `json:"buyerPrice"`

	Password    string  `json:"password" validate:"max=512"`
	BackupEmail *string `json:"backupEmail" validate:"omitempty,max=320"`
	TotpSecret  *string `json:"totpSecret" validate:"omitempty,max=256"`
	BatchTag    *string `json:"batchTag" validate:"omitempty,max=128"`
}

func (req updateAccountRequest) slotInput() slot.Input {
	return slot.Input{
		Buyer:       req.Buyer,
		BuyerSource: req.BuyerSource,
		InviteEmail: req.Order,
		Price:       req.Price.Value,
		ExpireDays:  req.ExpireDays.Value,
	}
}

func (req updateAccountRequest) sellParams() model.SellParams {
	return model.SellParams{
		BuyerName:   req.BuyerName,
		BuyerSource: req.BuyerSource,
		BuyerOrder:  req.BuyerOrder,
		BuyerPrice:  req.BuyerPrice.Value,
	}
}

func (req updateAccountRequest) soldInfoParams() model.SoldInfoParams {
	return model.SoldInfoParams{
		BuyerName:   req.BuyerName,
		BuyerSource: req.BuyerSource,
		BuyerPrice:  req.BuyerPrice.Value,
	}
}

func (req updateAccountRequest) editParams() model.EditAccountParams {
	return model.EditAccountParams{
		Password:    req.Password,
		BackupEmail: req.BackupEmail,
		TotpSecret:  req.TotpSecret,
		BatchTag:    req.BatchTag,
	}
}
