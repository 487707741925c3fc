package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"integration-sync-platform/internal/models"
)

// ExternalRecord is one entity fetched from a provider, prior to conversion.
type ExternalRecord struct {
	ID         string                 `json:"id"`
	Fields     map[string]interface{} `json:"fields"`
	ModifiedAt time.Time              `json:"modified_at"`
}

// FetchOptions controls one page fetch.
type FetchOptions struct {
	Entity   string
	PageSize int
	// SyncToken resumes an incremental fetch. An absent or expired token
	// falls back to a full fetch; it never produces an error.
	SyncToken string
}

// FetchResult is one page of records plus continuation metadata.
type FetchResult struct {
	Records       []ExternalRecord
	TotalRecords  int // 0 when the provider does not report a total
	LastSyncToken string
	HasMore       bool
}

// PushRecord is one internal record converted to the external shape.
type PushRecord struct {
	RecordID   string // internal record id, echoed back in results
	ExternalID string // empty when the record has no external counterpart yet
	Entity     string // provider object type the record belongs to
	Fields     map[string]interface{}
}

// PushItemResult reports the outcome for a single pushed record.
type PushItemResult struct {
	RecordID   string `json:"record_id"`
	ExternalID string `json:"external_id,omitempty"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// PushResult reports per-record outcomes; a partial batch failure does not
// fail the whole call.
type PushResult struct {
	Success bool
	Results []PushItemResult
}

// WebhookEvent is a provider notification mapped to a sync hint.
type WebhookEvent struct {
	Provider   string
	Entity     string
	EventType  string
	ExternalID string
	OccurredAt time.Time
}

// Adapter is the per-provider capability interface. Implementations perform
// network I/O only; they never persist anything.
type Adapter interface {
	Provider() string
	FetchRecords(ctx context.Context, conn *models.IntegrationConnection, opts FetchOptions) (*FetchResult, error)
	PushRecords(ctx context.Context, conn *models.IntegrationConnection, records []PushRecord) (*PushResult, error)
	// ParseWebhook returns nil for payloads it does not recognise.
	ParseWebhook(payload []byte, headers http.Header) *WebhookEvent
	VerifyWebhookSignature(payload []byte, headers http.Header, secret string) bool
}

// TokenProvider supplies decrypted access tokens on demand. The sync engine
// never persists raw credentials, only the connection's credentials reference.
type TokenProvider interface {
	GetAccessToken(ctx context.Context, conn *models.IntegrationConnection) (string, error)
}

// AdapterError classifies provider failures. Retryable errors (timeouts, 5xx,
// rate limits) are retried with backoff; non-retryable errors (auth, malformed
// config) fail the execution immediately.
type AdapterError struct {
	Provider   string
	Op         string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *AdapterError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s failed (status %d, retryable=%t): %v", e.Provider, e.Op, e.StatusCode, e.Retryable, e.Err)
	}
	return fmt.Sprintf("%s %s failed (retryable=%t): %v", e.Provider, e.Op, e.Retryable, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewRetryableError wraps a transient provider failure.
func NewRetryableError(provider, op string, statusCode int, err error) *AdapterError {
	return &AdapterError{Provider: provider, Op: op, StatusCode: statusCode, Retryable: true, Err: err}
}

// NewPermanentError wraps a provider failure that retrying cannot fix.
func NewPermanentError(provider, op string, statusCode int, err error) *AdapterError {
	return &AdapterError{Provider: provider, Op: op, StatusCode: statusCode, Retryable: false, Err: err}
}

// IsRetryable reports whether err is an adapter error marked retryable.
// Context timeouts on adapter calls count as retryable.
func IsRetryable(err error) bool {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded)
}
