package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"integration-sync-platform/internal/logger"
	"integration-sync-platform/internal/middleware"
	"integration-sync-platform/internal/models"
	"integration-sync-platform/internal/services"
)

// ConnectionHandler handles the integration connection API surface, including
// per-connection webhook registration.
type ConnectionHandler struct {
	logger            *logger.Logger
	connectionService services.ConnectionService
	webhookService    services.WebhookService
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(logger *logger.Logger, connectionService services.ConnectionService, webhookService services.WebhookService) *ConnectionHandler {
	return &ConnectionHandler{
		logger:            logger,
		connectionService: connectionService,
		webhookService:    webhookService,
	}
}

// RegisterRoutes registers the connection routes
func (h *ConnectionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/connections", h.HandleCreateConnection).Methods("POST")
	router.HandleFunc("/api/v1/connections", h.HandleListConnections).Methods("GET")
	router.HandleFunc("/api/v1/connections/{id}", h.HandleGetConnection).Methods("GET")
	router.HandleFunc("/api/v1/connections/{id}", h.HandleUpdateConnection).Methods("PUT")
	router.HandleFunc("/api/v1/connections/{id}/webhook", h.HandleRegisterWebhook).Methods("POST")
	router.HandleFunc("/api/v1/webhook-registrations/{id}/rotate", h.HandleRotateSecret).Methods("POST")
}

// HandleCreateConnection creates a new integration connection
func (h *ConnectionHandler) HandleCreateConnection(w http.ResponseWriter, r *http.Request) {
	var conn models.IntegrationConnection
	if err := json.NewDecoder(r.Body).Decode(&conn); err != nil {
		writeValidationError(w, err)
		return
	}
	conn.TenantID = middleware.GetTenantFromContext(r.Context())

	created, err := h.connectionService.CreateConnection(r.Context(), &conn)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleListConnections lists the tenant's connections
func (h *ConnectionHandler) HandleListConnections(w http.ResponseWriter, r *http.Request) {
	connections, err := h.connectionService.ListConnections(r.Context(), middleware.GetTenantFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"connections": connections})
}

// HandleGetConnection returns one connection
func (h *ConnectionHandler) HandleGetConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.connectionService.GetConnection(r.Context(), middleware.GetTenantFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// HandleUpdateConnection updates a connection
func (h *ConnectionHandler) HandleUpdateConnection(w http.ResponseWriter, r *http.Request) {
	var conn models.IntegrationConnection
	if err := json.NewDecoder(r.Body).Decode(&conn); err != nil {
		writeValidationError(w, err)
		return
	}
	conn.ID = mux.Vars(r)["id"]

	updated, err := h.connectionService.UpdateConnection(r.Context(), middleware.GetTenantFromContext(r.Context()), &conn)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleRegisterWebhook registers a webhook for the connection. The signing
// secret appears in this response only and is never readable again.
func (h *ConnectionHandler) HandleRegisterWebhook(w http.ResponseWriter, r *http.Request) {
	registration, err := h.webhookService.RegisterWebhook(r.Context(), middleware.GetTenantFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"registration": registration,
		"secret":       registration.Secret,
	})
}

// HandleRotateSecret replaces a registration's signing secret
func (h *ConnectionHandler) HandleRotateSecret(w http.ResponseWriter, r *http.Request) {
	registration, err := h.webhookService.RotateSecret(r.Context(), middleware.GetTenantFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"registration": registration,
		"secret":       registration.Secret,
	})
}
