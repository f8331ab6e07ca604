package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/trgovina/internal/model"
	"github.com/erazemk/trgovina/internal/notify"
	"github.com/erazemk/trgovina/internal/store"
)

// SettingsHandler manages notification settings.
type SettingsHandler struct {
	DB       *sqlx.DB
	Notifier *notify.Notifier
}

type notificationSettings struct {
	BotToken   string `json:"bot_token"`
	ChatID     string `json:"chat_id"`
	Configured bool   `json:"configured"`
}

// A nil field is left unchanged; an empty string clears the stored value.
type updateNotificationRequest struct {
	BotToken *string `json:"bot_token"`
	ChatID   *string `json:"chat_id"`
}

// GetNotifications handles GET /api/admin/settings/notifications. The token
// is masked.
func (h *SettingsHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	creds := h.Notifier.Credentials(r.Context())
	jsonResponse(w, http.StatusOK, notificationSettings{
		BotToken:   notify.MaskToken(creds.Token),
		ChatID:     creds.ChatID,
		Configured: creds.Token != "" && creds.ChatID != "",
	})
}

// UpdateNotifications handles PUT /api/admin/settings/notifications.
func (h *SettingsHandler) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	var req updateNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.set(r.Context(), model.SettingTelegramBotToken, req.BotToken); err != nil {
		slog.Error("failed to save bot token", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	if err := h.set(r.Context(), model.SettingTelegramChatID, req.ChatID); err != nil {
		slog.Error("failed to save chat id", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	slog.Info("notification settings updated", "user", GetClaims(r.Context()).Username)
	h.GetNotifications(w, r)
}

func (h *SettingsHandler) set(ctx context.Context, key string, value *string) error {
	if value == nil {
		return nil
	}
	return store.SetSetting(ctx, h.DB, key, strings.TrimSpace(*value))
}

// TestNotifications handles POST /api/admin/settings/notifications/test. It
// sends synchronously so the operator sees the outcome.
func (h *SettingsHandler) TestNotifications(w http.ResponseWriter, r *http.Request) {
	d := h.Notifier.Send(r.Context(), "Test notification from the shop back office.")
	if !d.OK() {
		slog.Warn("test notification failed", "status", d.Status, "error", d.Err)
		jsonError(w, http.StatusBadGateway, d.Err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "notification sent"})
}
