// Package ingest is the client for the remote challan ingestion
// endpoint. It submits one validated fine record per request as a
// multipart form and classifies the outcome so the sync drain can tell
// a permanent server rejection from a transient failure.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ayushhh101/challan-agent/internal/record"
)

// IssuePath is the ingestion endpoint path on the challan server.
const IssuePath = "/api/challan/issue"

// DefaultTimeout bounds each submission request. A timed-out request
// is a transient failure; the record stays queued.
const DefaultTimeout = 30 * time.Second

// maxReasonBytes caps how much of a rejection body is kept as the
// human-readable reason.
const maxReasonBytes = 512

// RejectedError is a server-side validation rejection (HTTP 4xx).
// The record will never be accepted in its current form.
type RejectedError struct {
	StatusCode int
	Reason     string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("server rejected record (HTTP %d): %s", e.StatusCode, e.Reason)
}

// IsRejected reports whether err is (or wraps) a RejectedError.
// Everything else returned by Submit is transient: network failure,
// timeout, or a 5xx server error.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// IssueResult is the server's acknowledgement of a persisted record.
type IssueResult struct {
	// ServerID is the server-assigned identifier. Best-effort: a 2xx
	// response is a confirmed success even if the body cannot be
	// decoded, because removal from the local queue keys off the
	// status alone.
	ServerID string
}

// Client submits fine records to the ingestion endpoint.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient creates a client for the challan server at baseURL,
// authenticating with the given bearer token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit posts one draft to the ingestion endpoint.
//
// Returns a *RejectedError for HTTP 4xx, a plain error for transport
// failures and HTTP 5xx, and an IssueResult on HTTP 2xx. Callers must
// only remove the local record on a nil error.
func (c *Client) Submit(ctx context.Context, d record.Draft) (IssueResult, error) {
	body, contentType, err := encodeForm(d)
	if err != nil {
		return IssueResult{}, fmt.Errorf("submit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+IssuePath, body)
	if err != nil {
		return IssueResult{}, fmt.Errorf("submit: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return IssueResult{}, fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return decodeResult(resp.Body), nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return IssueResult{}, &RejectedError{
			StatusCode: resp.StatusCode,
			Reason:     readReason(resp.Body),
		}

	default:
		return IssueResult{}, fmt.Errorf("submit: server error (HTTP %d)", resp.StatusCode)
	}
}

// encodeForm builds the multipart body: the draft's fields as flat
// key/value entries plus one file part per attached proof.
func encodeForm(d record.Draft) (io.Reader, string, error) {
	var buf strings.Builder
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"category":     d.Category,
		"name":         d.PassengerName,
		"aadhaarLast4": d.AadhaarLast4,
		"mobile":       d.Mobile,
		"trainNumber":  d.TrainNumber,
		"coachNumber":  d.CoachNumber,
		"location":     d.Location,
		"amount":       d.Amount.String(),
		"paymentMode":  string(d.PaymentChannel),
		"paid":         strconv.FormatBool(d.Settled),
		"signature":    d.SignatureDataURL,
		"issuedAt":     d.IssuedAt.UTC().Format(time.RFC3339),
	}
	if d.FareAmount != nil {
		fields["fareAmount"] = d.FareAmount.String()
	}
	if d.PriorOffenses != nil {
		fields["priorOffenses"] = strconv.Itoa(*d.PriorOffenses)
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := w.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("encoding field %s: %w", key, err)
		}
	}

	for _, proof := range d.Proofs {
		if err := writeProof(w, proof); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}
	return strings.NewReader(buf.String()), w.FormDataContentType(), nil
}

// writeProof streams one proof file into the form. The size cap is
// re-checked here: the file may have changed since the draft was
// validated and queued.
func writeProof(w *multipart.Writer, proof record.Proof) error {
	f, err := os.Open(proof.Path)
	if err != nil {
		return fmt.Errorf("opening proof %s: %w", proof.Path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat proof %s: %w", proof.Path, err)
	}
	if info.Size() > record.MaxProofSize {
		return fmt.Errorf("proof %s is %d bytes, exceeds limit %d", proof.Path, info.Size(), record.MaxProofSize)
	}

	part, err := w.CreateFormFile("proofs", filepath.Base(proof.Path))
	if err != nil {
		return fmt.Errorf("creating proof part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copying proof %s: %w", proof.Path, err)
	}
	return nil
}

// decodeResult extracts the server-assigned identifier from a 2xx
// response body, tolerating bodies it cannot parse.
func decodeResult(r io.Reader) IssueResult {
	var payload struct {
		ID      string `json:"id"`
		Challan struct {
			ID string `json:"id"`
		} `json:"challan"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 1<<20)).Decode(&payload); err != nil {
		return IssueResult{}
	}
	if payload.ID != "" {
		return IssueResult{ServerID: payload.ID}
	}
	return IssueResult{ServerID: payload.Challan.ID}
}

// readReason extracts a human-readable rejection reason from a 4xx
// body. Tries the JSON message field first, then falls back to the raw
// text, capped at maxReasonBytes.
func readReason(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxReasonBytes))
	if err != nil || len(raw) == 0 {
		return "no reason given"
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
