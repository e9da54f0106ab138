package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gthanmon/gemini-account-manager/internal/audit"
	apperrors "github.com/gthanmon/gemini-account-manager/internal/errors"
	"github.com/gthanmon/gemini-account-manager/internal/metrics"
	"github.com/gthanmon/gemini-account-manager/internal/model"
	"github.com/gthanmon/gemini-account-manager/internal/repository"
	"github.com/gthanmon/gemini-account-manager/internal/slot"
	"github.com/gthanmon/gemini-account-manager/internal/totp"
	"github.com/gthanmon/gemini-account-manager/internal/util"
)

var tracer = otel.Tracer("github.com/gthanmon/gemini-account-manager/internal/service")

// mutation changes a private copy of the account. Returning an error discards
// the copy, so a failed guard never writes.
type mutation func(a *model.Account, now time.Time) error

type AccountService struct {
	repo     repository.AccountRepository
	locker   AccountLocker
	metrics  *metrics.Metrics
	lockWait time.Duration
	now      func() time.Time
}

func NewAccountService(
	repo repository.AccountRepository,
	locker AccountLocker,
	m *metrics.Metrics,
	lockWait time.Duration,
) *AccountService {
	return &AccountService{
		repo:     repo,
		locker:   locker,
		metrics:  m,
		lockWait: lockWait,
		now:      time.Now,
	}
}

func (s *AccountService) GetAccount(ctx context.Context, caller model.Caller, id string) (*model.Account, error) {
	return s.load(ctx, caller, id)
}

func (s *AccountService) ListAccounts(ctx context.Context, caller model.Caller, filter model.AccountFilter) ([]model.Account, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, apperrors.InvalidInput("type", "must be PERSONAL or FAMILY")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.InvalidInput("status", "unknown status")
	}

	filter.UserID = ""
	if !caller.IsAdmin() {
		filter.UserID = caller.UserID
	}

	accounts, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return accounts, nil
}

func (s *AccountService) CreateAccount(ctx context.Context, caller model.Caller, params model.CreateAccountParams) (*model.Account, error) {
	params.UserID = caller.UserID
	params.Email = strings.TrimSpace(params.Email)
	if params.Email == "" {
		return nil, apperrors.MissingRequired("email")
	}
	if params.Password == "" {
		return nil, apperrors.MissingRequired("password")
	}
	params.BackupEmail = util.TrimToNil(params.BackupEmail)
	params.BatchTag = util.TrimToNil(params.BatchTag)
	secret, err := normalizeSecret(params.TotpSecret)
	if err != nil {
		return nil, err
	}
	params.TotpSecret = secret

	start := time.Now()
	account, err := s.repo.Create(ctx, params)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		err = apperrors.AlreadyExists("Account")
	} else if err != nil {
		err = apperrors.Database(err)
	}
	s.metrics.ObserveOperation("create_account", outcome(err), start)
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventAccountCreate,
		UserID:    caller.UserID,
		AccountID: account.ID,
	})
	return account, nil
}

func (s *AccountService) EditAccount(ctx context.Context, caller model.Caller, id string, params model.EditAccountParams) (*model.Account, error) {
	if params.Password == "" {
		return nil, apperrors.MissingRequired("password")
	}
	secret, err := normalizeSecret(params.TotpSecret)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, caller, id, "edit_account", audit.EventAccountEdit, nil,
		func(a *model.Account, _ time.Time) error {
			a.Password = params.Password
			a.BackupEmail = util.TrimToNil(params.BackupEmail)
			a.TotpSecret = secret
			a.BatchTag = util.TrimToNil(params.BatchTag)
			return nil
		})
}

func (s *AccountService) DeleteAccount(ctx context.Context, caller model.Caller, id string) error {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "AccountService.delete_account",
		trace.WithAttributes(attribute.String("account.id", id)))
	defer span.End()

	err := s.withLock(ctx, id, func() error {
		if _, err := s.load(ctx, caller, id); err != nil {
			return err
		}
		deleted, err := s.repo.Delete(ctx, id)
		if err != nil {
			return apperrors.Database(err)
		}
		if !deleted {
			return apperrors.NotFound("Account")
		}
		return nil
	})
	s.finish(span, "delete_account", start, err)
	if err != nil {
		return err
	}

	audit.Log(ctx, audit.Event{Type: audit.EventAccountDelete, UserID: caller.UserID, AccountID: id})
	return nil
}

func (s *AccountService) ConvertToFamily(ctx context.Context, caller model.Caller, id string) (*model.Account, error) {
	return s.mutate(ctx, caller, id, "convert_to_family", audit.EventConvertToFamily, nil,
		func(a *model.Account, _ time.Time) error {
			if a.Type == model.AccountTypeFamily {
				return apperrors.Conflict("Account is already a family account")
			}
			if a.Status == model.AccountStatusSold {
				return apperrors.Conflict("Sold accounts cannot be converted, cancel the sale first")
			}
			a.Type = model.AccountTypeFamily
			a.Slots = model.NewFamilySlots()
			return nil
		})
}

func (s *AccountService) ConvertToPersonal(ctx context.Context, caller model.Caller, id string) (*model.Account, error) {
	return s.mutate(ctx, caller, id, "convert_to_personal", audit.EventConvertToPersonal, nil,
		func(a *model.Account, _ time.Time) error {
			if a.Type != model.AccountTypeFamily {
				return apperrors.Conflict("Account is not a family account")
			}
			if n := a.Slots.Occupied(); n > 0 {
				return apperrors.Conflict("Release all slots before converting to personal").
					WithDetails(map[string]int{"occupiedSlots": n})
			}
			a.Type = model.AccountTypePersonal
			a.Slots = model.Slots{}
			return nil
		})
}

func (s *AccountService) SellPersonal(ctx context.Context, caller model.Caller, id string, params model.SellParams) (*model.Account, error) {
	buyer := strings.TrimSpace(params.BuyerName)
	if buyer == "" {
		return nil, apperrors.MissingRequired("buyerName")
	}
	if err := util.CheckPrice("buyerPrice", params.BuyerPrice); err != nil {
		return nil, err
	}

	return s.mutate(ctx, caller, id, "sell_personal", audit.EventSell, nil,
		func(a *model.Account, now time.Time) error {
			if a.Type != model.AccountTypePersonal {
				return apperrors.Conflict("Only personal accounts can be sold whole")
			}
			switch a.Status {
			case model.AccountStatusSold:
				return apperrors.Conflict("Account is already sold")
			case model.AccountStatusBanned:
				return apperrors.Conflict("Banned accounts cannot be sold")
			}
			a.Status = model.AccountStatusSold
			a.BuyerName = &buyer
			a.BuyerSource = util.TrimToNil(params.BuyerSource)
			a.BuyerOrder = util.TrimToNil(params.BuyerOrder)
			a.BuyerPrice = params.BuyerPrice
			a.SoldAt = &now
			return nil
		})
}

func (s *AccountService) CancelSold(ctx context.Context, caller model.Caller, id string) (*model.Account, error) {
	return s.mutate(ctx, caller, id, "cancel_sold", audit.EventCancelSold, nil,
		func(a *model.Account, _ time.Time) error {
			if a.Type != model.AccountTypePersonal || a.Status != model.AccountStatusSold {
				return apperrors.Conflict("Account is not a sold personal account")
			}
			a.Status = model.AccountStatusActive
			a.ClearSale()
			return nil
		})
}

func (s *AccountService) UpdateSoldInfo(ctx context.Context, caller model.Caller, id string, params model.SoldInfoParams) (*model.Account, error) {
	buyer := strings.TrimSpace(params.BuyerName)
	if buyer == "" {
		return nil, apperrors.MissingRequired("buyerName")
	}
	if err := util.CheckPrice("buyerPrice", params.BuyerPrice); err != nil {
		return nil, err
	}

	return s.mutate(ctx, caller, id, "update_sold_info", audit.EventUpdateSoldInfo, nil,
		func(a *model.Account, _ time.Time) error {
			if a.Status != model.AccountStatusSold {
				return apperrors.Conflict("Account is not sold")
			}
			a.BuyerName = &buyer
			a.BuyerSource = util.TrimToNil(params.BuyerSource)
			a.BuyerPrice = params.BuyerPrice
			return nil
		})
}

func (s *AccountService) UpdateStatus(ctx context.Context, caller model.Caller, id string, status model.AccountStatus, banReason *string) (*model.Account, error) {
	if !status.Valid() {
		return nil, apperrors.InvalidInput("status", fmt.Sprintf("unknown status %q", status))
	}
	if status == model.AccountStatusSold {
		return nil, apperrors.ValidationError("Use sellPersonal to mark an account sold")
	}
	reason := util.TrimToNil(banReason)
	if status == model.AccountStatusBanned && reason == nil {
		return nil, apperrors.MissingRequired("banReason")
	}

	return s.mutate(ctx, caller, id, "update_status", audit.EventStatusChange,
		map[string]any{"status": string(status)},
		func(a *model.Account, now time.Time) error {
			if a.Status == model.AccountStatusSold {
				return apperrors.Conflict("Account is sold, cancel the sale first")
			}
			a.Status = status
			if status == model.AccountStatusBanned {
				a.BanReason = reason
				a.BannedAt = &now
			} else {
				a.ClearBan()
			}
			return nil
		})
}

func (s *AccountService) AssignSlot(ctx context.Context, caller model.Caller, id string, index int, in slot.Input) (*model.Account, error) {
	return s.mutate(ctx, caller, id, "assign_slot", audit.EventSlotAssign,
		map[string]any{"slotIndex": index},
		slotMutation(func(slots model.Slots, now time.Time) error {
			return slot.Assign(slots, index, in, now)
		}))
}

func (s *AccountService) EditSlot(ctx context.Context, caller model.Caller, id string, index int, in slot.Input) (*model.Account, error) {
	return s.mutate(ctx, caller, id, "edit_slot", audit.EventSlotEdit,
		map[string]any{"slotIndex": index},
		slotMutation(func(slots model.Slots, now time.Time) error {
			return slot.Edit(slots, index, in, now)
		}))
}

func (s *AccountService) ReleaseSlot(ctx context.Context, caller model.Caller, id string, index int) (*model.Account, error) {
	return s.mutate(ctx, caller, id, "release_slot", audit.EventSlotRelease,
		map[string]any{"slotIndex": index},
		slotMutation(func(slots model.Slots, _ time.Time) error {
			return slot.Release(slots, index)
		}))
}

func (s *AccountService) RenewSlot(ctx context.Context, caller model.Caller, id string, index, days int) (*model.Account, error) {
	return s.mutate(ctx, caller, id, "renew_slot", audit.EventSlotRenew,
		map[string]any{"slotIndex": index, "renewDays": days},
		slotMutation(func(slots model.Slots, now time.Time) error {
			return slot.Renew(slots, index, days, now)
		}))
}

// GetTotpCode returns the live code for the account's secret. It takes no
// lock and writes nothing.
func (s *AccountService) GetTotpCode(ctx context.Context, caller model.Caller, id string) (*totp.Code, error) {
	account, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if account.TotpSecret == nil || strings.TrimSpace(*account.TotpSecret) == "" {
		return nil, apperrors.NotConfigured("2FA secret")
	}

	code := totp.Now(*account.TotpSecret, s.now)
	s.metrics.IncrementTOTP()
	audit.Log(ctx, audit.Event{Type: audit.EventTOTPRead, UserID: caller.UserID, AccountID: id})
	return &code, nil
}

func slotMutation(fn func(slots model.Slots, now time.Time) error) mutation {
	return func(a *model.Account, now time.Time) error {
		if a.Type != model.AccountTypeFamily {
			return apperrors.Conflict("Slots are only available on family accounts")
		}
		return fn(a.Slots, now)
	}
}

// load fetches the account and enforces tenant isolation.
func (s *AccountService) load(ctx context.Context, caller model.Caller, id string) (*model.Account, error) {
	if !util.IsValidUUID(id) {
		return nil, apperrors.NotFound("Account")
	}

	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if account == nil {
		return nil, apperrors.NotFound("Account")
	}
	if !caller.CanAccess(account) {
		log.Warn().
			Str("userId", caller.UserID).
			Str("accountId", id).
			Msg("account access denied")
		return nil, apperrors.Forbidden("You do not have access to this account")
	}
	return account, nil
}

// withLock runs fn while holding the account's write lock.
func (s *AccountService) withLock(ctx context.Context, id string, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	waitStart := time.Now()
	unlock, err := s.locker.Lock(lockCtx, id)
	s.metrics.ObserveLockWait(waitStart)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return apperrors.AccountBusy()
		}
		return apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to acquire account lock", err)
	}
	defer unlock()

	return fn()
}

func (s *AccountService) mutate(
	ctx context.Context,
	caller model.Caller,
	id string,
	op string,
	event audit.EventType,
	details map[string]any,
	fn mutation,
) (*model.Account, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "AccountService."+op,
		trace.WithAttributes(attribute.String("account.id", id)))
	defer span.End()

	var saved *model.Account
	err := s.withLock(ctx, id, func() error {
		account, err := s.load(ctx, caller, id)
		if err != nil {
			return err
		}

		next := account.Clone()
		if err := fn(next, s.now()); err != nil {
			return err
		}

		saved, err = s.repo.Update(ctx, next)
		if errors.Is(err, repository.ErrStaleVersion) {
			return apperrors.ConcurrentUpdate()
		}
		if err != nil {
			return apperrors.Database(err)
		}
		return nil
	})
	s.finish(span, op, start, err)
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.Event{
		Type:      event,
		UserID:    caller.UserID,
		AccountID: id,
		Details:   details,
	})
	return saved, nil
}

func (s *AccountService) finish(span trace.Span, op string, start time.Time, err error) {
	s.metrics.ObserveOperation(op, outcome(err), start)
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if apperrors.KindOf(err) == apperrors.KindInternal {
		log.Error().Err(err).Str("operation", op).Msg("account operation failed")
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return "invalid"
	case apperrors.KindConflict:
		return "conflict"
	case apperrors.KindNotFound:
		return "not_found"
	case apperrors.KindAuthorization:
		return "forbidden"
	case apperrors.KindNotConfigured:
		return "not_configured"
	default:
		return "error"
	}
}

// normalizeSecret trims an optional Base32 secret and rejects one that
// decodes to nothing.
func normalizeSecret(secret *string) (*string, error) {
	v := util.TrimToNil(secret)
	if v == nil {
		return nil, nil
	}
	if len(totp.DecodeSecret(*v)) == 0 {
		return nil, apperrors.InvalidInput("totpSecret", "not a Base32 secret")
	}
	return v, nil
}
