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

// ConversionSchemaHandler handles the conversion schema API surface
type ConversionSchemaHandler struct {
	logger        *logger.Logger
	schemaService services.ConversionSchemaService
}

// NewConversionSchemaHandler creates a new conversion schema handler
func NewConversionSchemaHandler(logger *logger.Logger, schemaService services.ConversionSchemaService) *ConversionSchemaHandler {
	return &ConversionSchemaHandler{logger: logger, schemaService: schemaService}
}

// RegisterRoutes registers the conversion schema routes
func (h *ConversionSchemaHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/conversion-schemas", h.HandleCreateSchema).Methods("POST")
	router.HandleFunc("/api/v1/conversion-schemas", h.HandleListSchemas).Methods("GET")
	router.HandleFunc("/api/v1/conversion-schemas/{id}", h.HandleGetSchema).Methods("GET")
	router.HandleFunc("/api/v1/conversion-schemas/{id}", h.HandleUpdateSchema).Methods("PUT")
	router.HandleFunc("/api/v1/conversion-schemas/{id}", h.HandleDeleteSchema).Methods("DELETE")
	router.HandleFunc("/api/v1/conversion-schemas/{id}/test", h.HandleTestSchema).Methods("POST")
}

// HandleCreateSchema creates a new conversion schema
func (h *ConversionSchemaHandler) HandleCreateSchema(w http.ResponseWriter, r *http.Request) {
	var schema models.ConversionSchema
	if err := json.NewDecoder(r.Body).Decode(&schema); err != nil {
		writeValidationError(w, err)
		return
	}
	schema.TenantID = middleware.GetTenantFromContext(r.Context())
	schema.CreatedBy = middleware.GetUserFromContext(r.Context())

	created, err := h.schemaService.CreateSchema(r.Context(), &schema)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleListSchemas lists the tenant's conversion schemas
func (h *ConversionSchemaHandler) HandleListSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := h.schemaService.ListSchemas(r.Context(), middleware.GetTenantFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"schemas": schemas})
}

// HandleGetSchema returns one conversion schema
func (h *ConversionSchemaHandler) HandleGetSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.schemaService.GetSchema(r.Context(), middleware.GetTenantFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

// HandleUpdateSchema updates a conversion schema
func (h *ConversionSchemaHandler) HandleUpdateSchema(w http.ResponseWriter, r *http.Request) {
	var schema models.ConversionSchema
	if err := json.NewDecoder(r.Body).Decode(&schema); err != nil {
		writeValidationError(w, err)
		return
	}
	schema.ID = mux.Vars(r)["id"]

	updated, err := h.schemaService.UpdateSchema(r.Context(), middleware.GetTenantFromContext(r.Context()), &schema)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleDeleteSchema deletes an unreferenced conversion schema
func (h *ConversionSchemaHandler) HandleDeleteSchema(w http.ResponseWriter, r *http.Request) {
	if err := h.schemaService.DeleteSchema(r.Context(), middleware.GetTenantFromContext(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// HandleTestSchema previews a conversion against a sample payload
func (h *ConversionSchemaHandler) HandleTestSchema(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Sample map[string]interface{} `json:"sample"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.schemaService.TestSchema(r.Context(), middleware.GetTenantFromContext(r.Context()), mux.Vars(r)["id"], body.Sample)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
