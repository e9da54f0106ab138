package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/gthanmon/gemini-account-manager/internal/errors"
	"github.com/gthanmon/gemini-account-manager/internal/model"
	"github.com/gthanmon/gemini-account-manager/internal/service"
)

type AccountHandler struct {
	accountService *service.AccountService
	validate       *validator.Validate
	totpLimit      func(http.Handler) http.Handler
}

// NewAccountHandler wires the account routes. totpLimit guards every path that
// reveals a live code; nil disables limiting.
func NewAccountHandler(accountService *service.AccountService, totpLimit func(http.Handler) http.Handler) *AccountHandler {
	if totpLimit == nil {
		totpLimit = func(next http.Handler) http.Handler { return next }
	}
	return &AccountHandler{
		accountService: accountService,
		validate:       validator.New(),
		totpLimit:      totpLimit,
	}
}

func (h *AccountHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.With(h.totpLimit).Get("/{id}/totp", h.TOTP)

	return r
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := model.AccountFilter{
		Type:   model.AccountType(strings.ToUpper(q.Get("type"))),
		Status: model.AccountStatus(strings.ToUpper(q.Get("status"))),
		Search: strings.TrimSpace(q.Get("search")),
	}

	accounts, err := h.accountService.ListAccounts(r.Context(), caller, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if accounts == nil {
		accounts = []model.Account{}
	}

	writeJSON(w, http.StatusOK, accountListResponse{
		Success:  true,
		Count:    len(accounts),
		Accounts: accounts,
	})
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req createAccountRequest
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}

	account, err := h.accountService.CreateAccount(r.Context(), caller, req.params())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, accountResponse{Success: true, Account: account})
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	account, err := h.accountService.GetAccount(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, accountResponse{Success: true, Account: account})
}

func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	if err := h.accountService.DeleteAccount(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AccountHandler) TOTP(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	code, err := h.accountService.GetTotpCode(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, code)
}

// Update dispatches on the body's action field.
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req updateAccountRequest
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}

	if req.Action == actionGetTOTP {
		h.totpLimit(http.HandlerFunc(h.TOTP)).ServeHTTP(w, r)
		return
	}

	account, err := h.apply(r.Context(), caller, chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, accountResponse{Success: true, Account: account})
}

func (h *AccountHandler) apply(ctx context.Context, caller model.Caller, id string, req updateAccountRequest) (*model.Account, error) {
	switch req.Action {
	case actionConvertToFamily:
		return h.accountService.ConvertToFamily(ctx, caller, id)
	case actionConvertToPersonal:
		return h.accountService.ConvertToPersonal(ctx, caller, id)
	case actionUpdateSlot:
		return h.updateSlot(ctx, caller, id, req)
	case actionRenewSlot:
		if req.SlotIndex.Value == nil {
			return nil, apperrors.MissingRequired("slotIndex")
		}
		if req.RenewDays.Value == nil {
			return nil, apperrors.InvalidInput("renewDays", "must be a positive whole number of days")
		}
		return h.accountService.RenewSlot(ctx, caller, id, *req.SlotIndex.Value, *req.RenewDays.Value)
	case actionUpdateStatus:
		return h.accountService.UpdateStatus(ctx, caller, id, model.AccountStatus(strings.ToUpper(req.Status)), req.BanReason)
	case actionSellPersonal:
		return h.accountService.SellPersonal(ctx, caller, id, req.sellParams())
	case actionCancelSold:
		return h.accountService.CancelSold(ctx, caller, id)
	case actionUpdateSoldInfo:
		return h.accountService.UpdateSoldInfo(ctx, caller, id, req.soldInfoParams())
	case actionEditAccount:
		return h.accountService.EditAccount(ctx, caller, id, req.editParams())
	default:
		return nil, apperrors.InvalidInput("action", fmt.Sprintf("unknown action %q", req.Action))
	}
}

func (h *AccountHandler) updateSlot(ctx context.Context, caller model.Caller, id string, req updateAccountRequest) (*model.Account, error) {
	if req.SlotIndex.Value == nil {
		return nil, apperrors.MissingRequired("slotIndex")
	}
	index := *req.SlotIndex.Value

	switch req.SlotAction {
	case slotActionAssign:
		return h.accountService.AssignSlot(ctx, caller, id, index, req.slotInput())
	case slotActionEdit:
		return h.accountService.EditSlot(ctx, caller, id, index, req.slotInput())
	case slotActionRelease:
		return h.accountService.ReleaseSlot(ctx, caller, id, index)
	default:
		return nil, apperrors.InvalidInput("slotAction", fmt.Sprintf("unknown slot action %q", req.SlotAction))
	}
}
