package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/gthanmon/gemini-account-manager/internal/database"
	"github.com/gthanmon/gemini-account-manager/internal/model"
)

var (
	// ErrStaleVersion means the row changed between load and write.
	ErrStaleVersion   = errors.New("account version is stale")
	ErrDuplicateEmail = errors.New("account email already exists")
)

type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*model.Account, error)
	List(ctx context.Context, filter model.AccountFilter) ([]model.Account, error)
	// ListFamilyActive returns FAMILY/ACTIVE accounts of userID, or of every
	// user when userID is empty, ordered by created_at then id.
	ListFamilyActive(ctx context.Context, userID string) ([]model.Account, error)
	Create(ctx context.Context, params model.CreateAccountParams) (*model.Account, error)
	// Update writes every mutable column of account if its version still
	// matches and returns the stored row with the version incremented.
	Update(ctx context.Context, account *model.Account) (*model.Account, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type accountRepo struct {
	db database.DBTX
}

func NewAccountRepository(db database.DBTX) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM accounts WHERE id = $1
	`, id)
	return HandleNotFound(&account, err)
}

func (r *accountRepo) List(ctx context.Context, filter model.AccountFilter) ([]model.Account, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}

	if filter.UserID != "" {
		add("user_id = ?", filter.UserID)
	}
	if filter.Type != "" {
		add("type = ?", filter.Type)
	}
	if filter.Status != "" {
		add("status = ?", filter.Status)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		add(`(email ILIKE ? OR backup_email ILIKE ? OR batch_tag ILIKE ?
			OR buyer_name ILIKE ? OR buyer_order ILIKE ? OR slots::text ILIKE ?)`, "%"+escapeLike(s)+"%")
	}

	query := `SELECT * FROM accounts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	accounts := []model.Account{}
	if err := r.db.SelectContext(ctx, &accounts, query, args...); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepo) ListFamilyActive(ctx context.Context, userID string) ([]model.Account, error) {
	accounts := []model.Account{}
	err := r.db.SelectContext(ctx, &accounts, `
		SELECT * FROM accounts
		WHERE type = $1 AND status = $2 AND ($3 = '' OR user_id = $3)
		ORDER BY created_at, id
	`, model.AccountTypeFamily, model.AccountStatusActive, userID)
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepo) Create(ctx context.Context, params model.CreateAccountParams) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		INSERT INTO accounts (id, user_id, type, status, email, password, backup_email, totp_secret, batch_tag, slots)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, '[]')
		RETURNING *
	`, uuid.NewString(), params.UserID, model.AccountTypePersonal, model.AccountStatusActive,
		params.Email, params.Password, params.BackupEmail, params.TotpSecret, params.BatchTag)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) Update(ctx context.Context, a *model.Account) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		UPDATE accounts SET
			type = $3,
			status = $4,
			password = $5,
			backup_email = $6,
			totp_secret = $7,
			batch_tag = $8,
			buyer_name = $9,
			buyer_source = $10,
			buyer_order = $11,
			buyer_price = $12,
			sold_at = $13,
			ban_reason = $14,
			banned_at = $15,
			slots = $16,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING *
	`, a.ID, a.Version, a.Type, a.Status, a.Password, a.BackupEmail, a.TotpSecret, a.BatchTag,
		a.BuyerName, a.BuyerSource, a.BuyerOrder, a.BuyerPrice, a.SoldAt,
		a.BanReason, a.BannedAt, a.Slots)
	found, err := HandleNotFound(&account, err)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrStaleVersion
	}
	return found, nil
}

func (r *accountRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
