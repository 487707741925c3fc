package adapters

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"integration-sync-platform/internal/models"
)

const hubspotProvider = "hubspot"

// hubspotSignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const hubspotSignatureHeader = "X-HubSpot-Signature-V3"

// HubSpotAdapter is the glue between the sync engine and the HubSpot CRM API.
// All sync semantics live in the runner; this type only speaks the wire format.
type HubSpotAdapter struct {
	client *http.Client
	tokens TokenProvider
}

// NewHubSpotAdapter creates a HubSpot adapter.
func NewHubSpotAdapter(tokens TokenProvider) *HubSpotAdapter {
	return &HubSpotAdapter{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: 30 * time.Second,
		},
		tokens: tokens,
	}
}

// Provider returns the provider name this adapter serves.
func (a *HubSpotAdapter) Provider() string {
	return hubspotProvider
}

type hubspotPage struct {
	Results []struct {
		ID         string                 `json:"id"`
		Properties map[string]interface{} `json:"properties"`
		UpdatedAt  time.Time              `json:"updatedAt"`
	} `json:"results"`
	Total  int `json:"total"`
	Paging struct {
		Next struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

// FetchRecords pulls one page of CRM objects. An expired cursor falls back to
// a full fetch instead of failing.
func (a *HubSpotAdapter) FetchRecords(ctx context.Context, conn *models.IntegrationConnection, opts FetchOptions) (*FetchResult, error) {
	page, err := a.fetchPage(ctx, conn, opts)
	if err != nil {
		var ae *AdapterError
		// HubSpot reports an expired paging cursor as 400 with a cursor error;
		// restart from the beginning rather than surfacing it.
		if errors.As(err, &ae) && ae.StatusCode == http.StatusBadRequest && opts.SyncToken != "" {
			opts.SyncToken = ""
			return a.fetchPage(ctx, conn, opts)
		}
		return nil, err
	}
	return page, nil
}

func (a *HubSpotAdapter) fetchPage(ctx context.Context, conn *models.IntegrationConnection, opts FetchOptions) (*FetchResult, error) {
	q := url.Values{}
	if opts.PageSize > 0 {
		q.Set("limit", fmt.Sprintf("%d", opts.PageSize))
	}
	if opts.SyncToken != "" {
		q.Set("after", opts.SyncToken)
	}

	endpoint := fmt.Sprintf("%s/crm/v3/objects/%s?%s", conn.BaseURL, url.PathEscape(opts.Entity), q.Encode())
	body, err := a.doRequest(ctx, conn, http.MethodGet, endpoint, nil, "fetch_records")
	if err != nil {
		return nil, err
	}

	var page hubspotPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, NewPermanentError(hubspotProvider, "fetch_records", 0, fmt.Errorf("unexpected response shape: %w", err))
	}

	result := &FetchResult{
		TotalRecords:  page.Total,
		LastSyncToken: page.Paging.Next.After,
		HasMore:       page.Paging.Next.After != "",
	}
	for _, item := range page.Results {
		result.Records = append(result.Records, ExternalRecord{
			ID:         item.ID,
			Fields:     item.Properties,
			ModifiedAt: item.UpdatedAt,
		})
	}
	return result, nil
}

// PushRecords submits records one at a time so a single rejection never fails
// the batch.
func (a *HubSpotAdapter) PushRecords(ctx context.Context, conn *models.IntegrationConnection, records []PushRecord) (*PushResult, error) {
	result := &PushResult{Success: true}

	for _, rec := range records {
		item := PushItemResult{RecordID: rec.RecordID, ExternalID: rec.ExternalID}

		payload, err := json.Marshal(map[string]interface{}{"properties": rec.Fields})
		if err != nil {
			item.Error = err.Error()
			result.Results = append(result.Results, item)
			result.Success = false
			continue
		}

		entity := rec.Entity
		if entity == "" {
			entity = "contacts"
		}

		var endpoint, method string
		if rec.ExternalID != "" {
			endpoint = fmt.Sprintf("%s/crm/v3/objects/%s/%s", conn.BaseURL, url.PathEscape(entity), url.PathEscape(rec.ExternalID))
			method = http.MethodPatch
		} else {
			endpoint = fmt.Sprintf("%s/crm/v3/objects/%s", conn.BaseURL, url.PathEscape(entity))
			method = http.MethodPost
		}

		body, err := a.doRequest(ctx, conn, method, endpoint, payload, "push_records")
		if err != nil {
			// Auth and config failures abort the batch; anything else is a
			// per-record outcome.
			var ae *AdapterError
			if errors.As(err, &ae) && !ae.Retryable && ae.StatusCode != http.StatusUnprocessableEntity {
				return nil, err
			}
			item.Error = err.Error()
			result.Results = append(result.Results, item)
			result.Success = false
			continue
		}

		var created struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &created); err == nil && created.ID != "" {
			item.ExternalID = created.ID
		}
		item.Success = true
		result.Results = append(result.Results, item)
	}

	return result, nil
}

type hubspotWebhookEvent struct {
	SubscriptionType string `json:"subscriptionType"`
	ObjectID         int64  `json:"objectId"`
	OccurredAt       int64  `json:"occurredAt"`
}

// ParseWebhook maps a HubSpot delivery (a JSON array of subscription events)
// to a sync hint. Unknown shapes return nil, never an error.
func (a *HubSpotAdapter) ParseWebhook(payload []byte, _ http.Header) *WebhookEvent {
	var events []hubspotWebhookEvent
	if err := json.Unmarshal(payload, &events); err != nil || len(events) == 0 {
		return nil
	}

	first := events[0]
	if first.SubscriptionType == "" || first.ObjectID == 0 {
		return nil
	}

	return &WebhookEvent{
		Provider:   hubspotProvider,
		Entity:     entityFromSubscription(first.SubscriptionType),
		EventType:  first.SubscriptionType,
		ExternalID: fmt.Sprintf("%d", first.ObjectID),
		OccurredAt: time.UnixMilli(first.OccurredAt),
	}
}

// entityFromSubscription extracts the object type from subscription types like
// "contact.propertyChange".
func entityFromSubscription(subscriptionType string) string {
	for i := 0; i < len(subscriptionType); i++ {
		if subscriptionType[i] == '.' {
			return subscriptionType[:i]
		}
	}
	return subscriptionType
}

// VerifyWebhookSignature checks the HMAC-SHA256 signature of the raw body.
func (a *HubSpotAdapter) VerifyWebhookSignature(payload []byte, headers http.Header, secret string) bool {
	signature := headers.Get(hubspotSignatureHeader)
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

// doRequest performs one authenticated HTTP call and classifies failures.
func (a *HubSpotAdapter) doRequest(ctx context.Context, conn *models.IntegrationConnection, method, endpoint string, payload []byte, op string) ([]byte, error) {
	token, err := a.tokens.GetAccessToken(ctx, conn)
	if err != nil {
		return nil, NewPermanentError(hubspotProvider, op, 0, err)
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, NewPermanentError(hubspotProvider, op, 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		// Network errors and timeouts are worth retrying.
		return nil, NewRetryableError(hubspotProvider, op, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewRetryableError(hubspotProvider, op, resp.StatusCode, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, NewPermanentError(hubspotProvider, op, resp.StatusCode, fmt.Errorf("authentication failed: %s", truncate(body, 200)))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 || resp.StatusCode == http.StatusRequestTimeout:
		return nil, NewRetryableError(hubspotProvider, op, resp.StatusCode, fmt.Errorf("provider error: %s", truncate(body, 200)))
	default:
		return nil, NewPermanentError(hubspotProvider, op, resp.StatusCode, fmt.Errorf("request rejected: %s", truncate(body, 200)))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
