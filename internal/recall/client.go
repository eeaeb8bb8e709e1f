package recall

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

	"github.com/teemow/notetaker/internal/instrumentation"
	"github.com/teemow/notetaker/internal/logging"
	"github.com/teemow/notetaker/internal/transcript"
)

const (
	// DefaultBaseURL is the regional Recall.ai API endpoint.
	DefaultBaseURL = "https://us-west-2.recall.ai/api/v1"

	// DefaultTimeout bounds each API call.
	DefaultTimeout = 30 * time.Second

	// DefaultDownloadTimeout bounds transcript downloads.
	DefaultDownloadTimeout = 60 * time.Second

	// maxErrorBody limits how much of an error response is kept.
	maxErrorBody = 4096
)

// Options configures a Client.
type Options struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	DownloadTimeout time.Duration
	HTTPClient      *http.Client
	Metrics         *instrumentation.Metrics
	Logger          *slog.Logger
}

// Client talks to the recording-agent provider. It holds no per-agent state
// and is safe for concurrent use.
type Client struct {
	baseURL         string
	apiKey          string
	timeout         time.Duration
	downloadTimeout time.Duration
	http            *http.Client
	metrics         *instrumentation.Metrics
	logger          *slog.Logger
}

// NewClient creates a Client, filling unset options with defaults.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		apiKey:          opts.APIKey,
		timeout:         opts.Timeout,
		downloadTimeout: opts.DownloadTimeout,
		http:            opts.HTTPClient,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.downloadTimeout <= 0 {
		c.downloadTimeout = DefaultDownloadTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.metrics == nil {
		c.metrics = &instrumentation.Metrics{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With(logging.Provider(instrumentation.ProviderRecall))
	return c
}

type createRequest struct {
	MeetingURL       string          `json:"meeting_url"`
	MeetingStartTime string          `json:"meeting_start_time"`
	BotName          string          `json:"bot_name"`
	RecordingConfig  recordingConfig `json:"recording_config"`
}

type recordingConfig struct {
	Transcript struct {
		Provider struct {
			RecallAIStreaming struct {
				LanguageCode string `json:"language_code"`
				Mode         string `json:"mode"`
			} `json:"recallai_streaming"`
		} `json:"provider"`
	} `json:"transcript"`
}

// CreateAgent asks the provider for a new agent bound to a meeting.
func (c *Client) CreateAgent(ctx context.Context, req CreateAgentRequest) (Agent, error) {
	if req.MeetingURL == "" {
		return Agent{}, errors.New("meeting url is required")
	}

	name := req.Name
	if name == "" {
		name = "Bot-" + req.StartTime.UTC().Format("20060102-1504")
	}

	body := createRequest{
		MeetingURL:       req.MeetingURL,
		MeetingStartTime: req.StartTime.UTC().Format(time.RFC3339),
		BotName:          name,
	}
	body.RecordingConfig.Transcript.Provider.RecallAIStreaming.LanguageCode = "en"
	body.RecordingConfig.Transcript.Provider.RecallAIStreaming.Mode = "prioritize_low_latency"

	var agent Agent
	if err := c.call(ctx, instrumentation.OperationCreate, http.MethodPost, "/bot/", body, &agent); err != nil {
		return Agent{}, fmt.Errorf("failed to create agent: %w", err)
	}
	if agent.ID == "" {
		return Agent{}, errors.New("failed to create agent: provider returned no id")
	}
	return agent, nil
}

// JoinAgent commands an agent to join its meeting.
func (c *Client) JoinAgent(ctx context.Context, id string) error {
	if err := c.call(ctx, instrumentation.OperationJoin, http.MethodPost, "/bots/"+url.PathEscape(id)+"/join/", nil, nil); err != nil {
		return fmt.Errorf("failed to join agent %s: %w", id, err)
	}
	return nil
}

// LeaveAgent commands an agent to leave its meeting.
func (c *Client) LeaveAgent(ctx context.Context, id string) error {
	if err := c.call(ctx, instrumentation.OperationLeave, http.MethodPost, "/bots/"+url.PathEscape(id)+"/leave/", nil, nil); err != nil {
		return fmt.Errorf("failed to make agent %s leave: %w", id, err)
	}
	return nil
}

// GetAgent fetches the raw agent document.
func (c *Client) GetAgent(ctx context.Context, id string) (*AgentData, error) {
	var data AgentData
	if err := c.call(ctx, instrumentation.OperationGet, http.MethodGet, "/bot/"+url.PathEscape(id)+"/", nil, &data); err != nil {
		return nil, fmt.Errorf("failed to get agent %s: %w", id, err)
	}
	return &data, nil
}

// Status fetches an agent and derives its Status.
func (c *Client) Status(ctx context.Context, id string) (Status, error) {
	data, err := c.GetAgent(ctx, id)
	if err != nil {
		return Status{}, err
	}
	status := data.Status()
	if status.AgentID == "" {
		status.AgentID = id
	}
	return status, nil
}

// Transcript downloads and normalizes an agent's transcript. The boolean is
// false when no transcript is available yet or it holds no text.
func (c *Client) Transcript(ctx context.Context, id string) (string, bool, error) {
	data, err := c.GetAgent(ctx, id)
	if err != nil {
		return "", false, err
	}

	downloadURL, ok := data.TranscriptURL()
	if !ok {
		return "", false, nil
	}

	raw, err := c.download(ctx, downloadURL)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to download transcript for agent %s: %w", id, err)
	}

	text, ok := transcript.Parse(raw)
	return text, ok, nil
}

// RecordingURL returns the best available recording reference of an agent.
func (c *Client) RecordingURL(ctx context.Context, id string) (string, bool, error) {
	data, err := c.GetAgent(ctx, id)
	if err != nil {
		return "", false, err
	}
	u, ok := data.BestRecordingURL()
	return u, ok, nil
}

// Attendees returns the participants an agent saw.
func (c *Client) Attendees(ctx context.Context, id string) ([]Participant, error) {
	data, err := c.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}
	if data.Attendees == nil {
		return []Participant{}, nil
	}
	return data.Attendees, nil
}

// call performs one JSON API request with the per-call timeout.
func (c *Client) call(ctx context.Context, operation, method, path string, in, out any) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := instrumentation.StartProviderSpan(ctx, instrumentation.ProviderRecall, operation)
	start := time.Now()
	defer func() {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
		}
		c.metrics.RecordProviderOperation(ctx, instrumentation.ProviderRecall, operation, status, time.Since(start))
		instrumentation.EndSpan(span, err)
	}()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		c.logger.Debug("recall request failed",
			logging.Operation(operation),
			slog.String("path", path),
			slog.Int("status_code", resp.StatusCode))
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// download fetches a presigned artifact URL with the download timeout. No
// API key is sent; the URL carries its own credentials.
func (c *Client) download(ctx context.Context, rawURL string) (data []byte, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	ctx, span := instrumentation.StartProviderSpan(ctx, instrumentation.ProviderRecall, instrumentation.OperationDownload)
	start := time.Now()
	defer func() {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
		}
		c.metrics.RecordProviderOperation(ctx, instrumentation.ProviderRecall, instrumentation.OperationDownload, status, time.Since(start))
		instrumentation.EndSpan(span, err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
