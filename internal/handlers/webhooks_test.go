package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"integration-sync-platform/internal/logger"
	"integration-sync-platform/internal/models"
)

func testLogger() *logger.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return &logger.Logger{Logger: log}
}

type stubWebhookService struct {
	triggered []string
	err       error

	provider string
	payload  []byte
}

func (s *stubWebhookService) RegisterWebhook(context.Context, string, string) (*models.WebhookRegistration, error) {
	return nil, errors.New("not implemented")
}

func (s *stubWebhookService) RotateSecret(context.Context, string, string) (*models.WebhookRegistration, error) {
	return nil, errors.New("not implemented")
}

func (s *stubWebhookService) HandleInbound(_ context.Context, provider string, payload []byte, _ http.Header) ([]string, error) {
	s.provider = provider
	s.payload = payload
	return s.triggered, s.err
}

func webhookRequest(t *testing.T, handler *WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/hubspot", strings.NewReader(body))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestWebhookHandler_HandleInbound(t *testing.T) {
	t.Run("accepted delivery reports triggered tasks", func(t *testing.T) {
		svc := &stubWebhookService{triggered: []string{"task-1", "task-2"}}
		recorder := webhookRequest(t, NewWebhookHandler(testLogger(), svc), `[{"objectId": 42}]`)

		assert.Equal(t, http.StatusAccepted, recorder.Code)
		assert.Contains(t, recorder.Body.String(), `"triggered_tasks":2`)
		assert.Equal(t, "hubspot", svc.provider)
		assert.Equal(t, `[{"objectId": 42}]`, string(svc.payload))
	})

	t.Run("dropped delivery still answers 2xx", func(t *testing.T) {
		// A nil trigger list with no error is the drop path: bad signature,
		// unknown provider or unparseable payload.
		svc := &stubWebhookService{}
		recorder := webhookRequest(t, NewWebhookHandler(testLogger(), svc), `garbage`)

		assert.Equal(t, http.StatusAccepted, recorder.Code)
		assert.Contains(t, recorder.Body.String(), `"triggered_tasks":0`)
	})

	t.Run("internal failure answers 500", func(t *testing.T) {
		svc := &stubWebhookService{err: errors.New("db down")}
		recorder := webhookRequest(t, NewWebhookHandler(testLogger(), svc), `[]`)

		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	})

	t.Run("oversized payload is truncated not rejected", func(t *testing.T) {
		svc := &stubWebhookService{}
		recorder := webhookRequest(t, NewWebhookHandler(testLogger(), svc), strings.Repeat("x", maxWebhookBody+1024))

		assert.Equal(t, http.StatusAccepted, recorder.Code)
		require.Len(t, svc.payload, maxWebhookBody)
	})
}
