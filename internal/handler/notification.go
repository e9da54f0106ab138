package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gthanmon/gemini-account-manager/internal/service"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
}

func NewNotificationHandler(notificationService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

func (h *NotificationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/expired", h.ListExpired)
	return r
}

func (h *NotificationHandler) ListExpired(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	notifications, err := h.notificationService.ListExpiring(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, notificationListResponse{
		Success:       true,
		Count:         len(notifications),
		Notifications: notifications,
	})
}
