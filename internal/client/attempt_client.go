package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SAP-F-2025/exam-session/internal/models"
	"golang.org/x/oauth2/clientcredentials"
)

const defaultTimeout = 10 * time.Second

// APIError is returned for any non-2xx response from the attempt API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("attempt api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("attempt api: status %d: %s", e.StatusCode, e.Message)
}

// IsRejection reports whether the API refused the request outright. Retrying the same
// payload cannot succeed.
func IsRejection(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusConflict || apiErr.StatusCode == http.StatusUnprocessableEntity
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	// Optional OAuth2 client credentials; when TokenURL is empty requests are unauthenticated.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Logger       *slog.Logger
}

// AttemptClient talks to the attempt API over HTTP. It implements the session
// fetcher and both submitters.
type AttemptClient struct {
	http    *http.Client
	baseURL string
	logger  *slog.Logger
}

func New(cfg Config) *AttemptClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	h := &http.Client{Timeout: timeout}
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		h = cc.Client(context.Background())
		h.Timeout = timeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AttemptClient{
		http:    h,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// envelope mirrors the API's success and error bodies.
type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *AttemptClient) FetchSession(ctx context.Context, attemptID uint) (*models.AttemptSnapshot, error) {
	var snap models.AttemptSnapshot
	path := fmt.Sprintf("/attempts/%d/session", attemptID)
	if err := c.do(ctx, http.MethodGet, path, nil, &snap); err != nil {
		return nil, fmt.Errorf("fetch session %d: %w", attemptID, err)
	}
	if snap.AttemptID == 0 {
		snap.AttemptID = attemptID
	}
	return &snap, nil
}

// SubmitAnswers posts the bulk payload. A conflict or unprocessable response is a
// definitive rejection and is reported as Accepted=false rather than an error.
func (c *AttemptClient) SubmitAnswers(ctx context.Context, payload models.SubmissionPayload) (*models.SubmitResult, error) {
	var res models.SubmitResult
	path := fmt.Sprintf("/attempts/%d/submit", payload.AttemptID)
	err := c.do(ctx, http.MethodPost, path, payload, &res)
	if IsRejection(err) {
		c.logger.Warn("Submission rejected by attempt api", "attempt_id", payload.AttemptID, "error", err)
		return &models.SubmitResult{Accepted: false, AttemptID: payload.AttemptID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("submit attempt %d: %w", payload.AttemptID, err)
	}
	return &res, nil
}

func (c *AttemptClient) SubmitQuestion(ctx context.Context, submission models.QuestionSubmission) (*models.QuestionSubmitResult, error) {
	var res models.QuestionSubmitResult
	path := fmt.Sprintf("/attempts/%d/questions/%d/answer", submission.AttemptID, submission.QuestionID)
	if err := c.do(ctx, http.MethodPost, path, submission, &res); err != nil {
		return nil, fmt.Errorf("submit question %d: %w", submission.QuestionID, err)
	}
	return &res, nil
}

// ListResumable returns the user's unfinished attempts, newest first.
func (c *AttemptClient) ListResumable(ctx context.Context, userID string, mode models.Mode) ([]models.AttemptSummary, error) {
	query := url.Values{}
	query.Set("user_id", userID)
	if mode != "" {
		query.Set("mode", string(mode))
	}
	var summaries []models.AttemptSummary
	if err := c.do(ctx, http.MethodGet, "/attempts/resumable?"+query.Encode(), nil, &summaries); err != nil {
		return nil, fmt.Errorf("list resumable attempts: %w", err)
	}
	return summaries, nil
}

func (c *AttemptClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	c.logger.Debug("Attempt api call",
		"method", method,
		"path", path,
		"status", res.StatusCode,
		"duration", time.Since(start).String())

	var env envelope
	decodeErr := json.NewDecoder(res.Body).Decode(&env)

	if res.StatusCode/100 != 2 {
		apiErr := &APIError{StatusCode: res.StatusCode}
		if decodeErr == nil {
			apiErr.Message = env.Message
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
