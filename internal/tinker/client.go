package tinker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultBaseURL is the public Tinker API endpoint.
const DefaultBaseURL = "https://api.thinkingmachines.ai"

// maxErrorBody caps how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// HTTPConnector builds REST clients that share one http.Client.
type HTTPConnector struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPConnector returns a connector for baseURL. A nil httpClient uses a
// client without a timeout; nil logger disables logging.
func NewHTTPConnector(baseURL string, httpClient *http.Client, logger *zap.Logger) *HTTPConnector {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPConnector{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Connect returns a Client authenticated with apiKey.
func (c *HTTPConnector) Connect(apiKey string) (Backend, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &APIError{StatusCode: http.StatusUnauthorized, Message: "API key not configured"}
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		logger:     c.logger,
	}, nil
}

// Client is a Tinker REST client bound to one API key.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// CreateRun starts a training run.
func (c *Client) CreateRun(ctx context.Context, req RunRequest) (Run, error) {
	body := createRunBody{
		Model:        req.Model,
		TrainingType: req.TrainingType,
		DatasetPath:  req.DatasetPath,
		Hyperparameters: hyperparameters{
			LearningRate: req.LearningRate,
			BatchSize:    req.BatchSize,
			NumEpochs:    req.Epochs,
		},
	}
	var run Run
	if err := c.do(ctx, http.MethodPost, "/v1/training/runs", nil, body, "", &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// GetRun fetches one run by id.
func (c *Client) GetRun(ctx context.Context, runID string) (Run, error) {
	var run Run
	if err := c.do(ctx, http.MethodGet, "/v1/training/runs/"+url.PathEscape(runID), nil, nil, runID, &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns up to limit of the most recent runs in backend order.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	var list listRunsBody
	if err := c.do(ctx, http.MethodGet, "/v1/training/runs", pageQuery(limit), nil, "", &list); err != nil {
		return nil, err
	}
	runs := list.Runs
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// CancelRun asks the backend to stop a run. It does not wait for the run to stop.
func (c *Client) CancelRun(ctx context.Context, runID string) error {
	path := "/v1/training/runs/" + url.PathEscape(runID) + "/cancel"
	return c.do(ctx, http.MethodPost, path, nil, nil, runID, nil)
}

// ListModels returns the base models available for fine-tuning.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var models []Model
	if err := c.do(ctx, http.MethodGet, "/v1/models", nil, nil, "", &models); err != nil {
		return nil, err
	}
	return models, nil
}

// ListCheckpoints returns up to limit checkpoints saved for a run.
func (c *Client) ListCheckpoints(ctx context.Context, runID string, limit int) ([]Checkpoint, error) {
	var list listCheckpointsBody
	path := "/v1/training/runs/" + url.PathEscape(runID) + "/checkpoints"
	if err := c.do(ctx, http.MethodGet, path, pageQuery(limit), nil, runID, &list); err != nil {
		return nil, err
	}
	checkpoints := list.Checkpoints
	if limit > 0 && len(checkpoints) > limit {
		checkpoints = checkpoints[:limit]
	}
	return checkpoints, nil
}

// GetCheckpoint returns one checkpoint of a run.
func (c *Client) GetCheckpoint(ctx context.Context, runID, checkpointID string) (Checkpoint, error) {
	var checkpoint Checkpoint
	path := "/v1/training/runs/" + url.PathEscape(runID) + "/checkpoints/" + url.PathEscape(checkpointID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, checkpointID, &checkpoint); err != nil {
		return Checkpoint{}, err
	}
	return checkpoint, nil
}

// Ping checks that the backend is reachable with this key. A rejected key is
// an error; any other non-2xx answer reports false.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode == http.StatusUnauthorized {
		return false, &APIError{StatusCode: resp.StatusCode, Message: "Unauthorized"}
	}
	return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
}

func pageQuery(limit int) url.Values {
	q := url.Values{}
	q.Set("page", "1")
	if limit > 0 {
		q.Set("per_page", strconv.Itoa(limit))
	}
	return q
}

// do sends one request and decodes a 2xx body into out. notFoundID names the
// resource in the error returned for a 404.
func (c *Client) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	payload any,
	notFoundID string,
	out any,
) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", zap.Error(cerr))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &APIError{StatusCode: resp.StatusCode, Message: "Unauthorized"}
	case resp.StatusCode == http.StatusNotFound && notFoundID != "":
		return &APIError{StatusCode: resp.StatusCode, Message: "Not found: " + notFoundID}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = json.Unmarshal(raw, &eb)
		c.logger.Debug("backend returned error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return newAPIError(resp.StatusCode, eb)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return invalidResponse(resp.StatusCode, err)
	}
	return nil
}
