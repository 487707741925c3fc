package handlers

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"integration-sync-platform/internal/logger"
	"integration-sync-platform/internal/services"
)

// maxWebhookBody bounds inbound delivery payloads.
const maxWebhookBody = 1 << 20

// WebhookHandler receives inbound provider deliveries. These routes are
// unauthenticated; the HMAC signature on the payload is the credential.
type WebhookHandler struct {
	logger         *logger.Logger
	webhookService services.WebhookService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(logger *logger.Logger, webhookService services.WebhookService) *WebhookHandler {
	return &WebhookHandler{logger: logger, webhookService: webhookService}
}

// RegisterRoutes registers the inbound webhook route
func (h *WebhookHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/webhooks/{provider}", h.HandleInbound).Methods("POST")
}

// HandleInbound processes one delivery. Dropped deliveries still answer 2xx
// so providers do not retry payloads that will never verify.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.WithProvider(provider).WithError(err).Warn("Failed to read webhook payload")
		writeJSON(w, http.StatusOK, map[string]interface{}{"accepted": false})
		return
	}

	triggered, err := h.webhookService.HandleInbound(r.Context(), provider, payload, r.Header)
	if err != nil {
		h.logger.WithProvider(provider).WithError(err).Error("Webhook processing failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "webhook processing failed"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"accepted":        true,
		"triggered_tasks": len(triggered),
	})
}
