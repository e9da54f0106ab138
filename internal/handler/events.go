package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/gthanmon/gemini-account-manager/internal/errors"
	"github.com/gthanmon/gemini-account-manager/internal/httputil"
	"github.com/gthanmon/gemini-account-manager/internal/model"
	"github.com/gthanmon/gemini-account-manager/internal/service"
	"github.com/gthanmon/gemini-account-manager/internal/sse"
)

type EventsHandler struct {
	broker              *sse.Broker
	notificationService *service.NotificationService
}

func NewEventsHandler(broker *sse.Broker, notificationService *service.NotificationService) *EventsHandler {
	return &EventsHandler{
		broker:              broker,
		notificationService: notificationService,
	}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteErrorWithStatus(w, http.StatusInternalServerError, apperrors.Internal("Streaming not supported"))
		return
	}

	subscribeID := caller.UserID
	if caller.IsAdmin() {
		subscribeID = sse.AllOwners
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(subscribeID)
	defer h.broker.Unsubscribe(client)

	log.Info().
		Str("subscribeId", subscribeID).
		Str("userId", caller.UserID).
		Msg("sse connection established")

	ctx := r.Context()

	if err := h.sendEvent(w, flusher, sse.EventConnected, map[string]any{
		"userId": caller.UserID,
		"role":   caller.Role,
	}); err != nil {
		return
	}

	if err := h.sendCurrentNotifications(ctx, w, flusher, caller); err != nil {
		log.Error().Err(err).Str("userId", caller.UserID).Msg("failed to send current notifications")
	}

	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("subscribeId", subscribeID).
				Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("subscribeId", subscribeID).
				Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("subscribeId", subscribeID).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

// sendCurrentNotifications replays what is expiring right now so a fresh
// client does not wait for the next sweep.
func (h *EventsHandler) sendCurrentNotifications(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, caller model.Caller) error {
	if h.notificationService == nil {
		return nil
	}

	notifications, err := h.notificationService.ListExpiring(ctx, caller)
	if err != nil {
		return err
	}

	for _, n := range notifications {
		event, err := sse.NotificationEvent(n)
		if err != nil {
			return err
		}
		if err := h.sendRawEvent(w, flusher, event); err != nil {
			return err
		}
	}
	return nil
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
