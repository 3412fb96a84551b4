package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"deskbot/app/config"
	"deskbot/app/util/fault"

	"github.com/samber/do"
	"github.com/samber/oops"
)

const defaultBaseURL = "https://slack.com/api"

// Client talks to the Slack Web API. It is built once at startup and
// shared by every event task.
type Client struct {
	http     *http.Client
	baseURL  string
	botToken string
	appToken string
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.Slack.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:  baseURL,
		botToken: strings.TrimSpace(cfg.Slack.BotToken),
		appToken: strings.TrimSpace(cfg.Slack.AppToken),
	}, nil
}

type AuthInfo struct {
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
	BotID  string `json:"bot_id"`
	Team   string `json:"team"`
	User   string `json:"user"`
}

// AuthTest resolves the bot's own user id, which the gateway needs to
// filter out self-triggered events.
func (c *Client) AuthTest(ctx context.Context) (*AuthInfo, error) {
	var out struct {
		apiStatus
		AuthInfo
	}

	if err := c.callAPI(ctx, c.botToken, "/auth.test", nil, &out); err != nil {
		return nil, err
	}

	if out.AuthInfo.UserID == "" {
		return nil, fault.Transport().Errorf("auth.test returned empty user_id")
	}

	return &out.AuthInfo, nil
}

// PostMessage sends a plain text message to a channel, retrying once on
// rate limiting or a 5xx answer.
func (c *Client) PostMessage(ctx context.Context, channelID, text string) error {
	payload := map[string]string{
		"channel": channelID,
		"text":    text,
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		var out apiStatus

		err := c.callAPI(ctx, c.botToken, "/chat.postMessage", payload, &out)
		if err == nil {
			return nil
		}
		lastErr = err

		wait, retryable := retryDelay(err)
		if !retryable {
			break
		}
		if err := sleepWithContext(ctx, wait); err != nil {
			return err
		}
	}

	return lastErr
}

// Respond posts a command result to the response URL Slack handed out
// with the command envelope.
func (c *Client) Respond(ctx context.Context, responseURL, text string) error {
	raw, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return oops.Errorf("marshal response payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, responseURL, bytes.NewReader(raw))
	if err != nil {
		return fault.Transport().Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fault.Transport().Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fault.Transport().Errorf("response_url post: http %d", resp.StatusCode)
	}

	return nil
}

type FileInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	User        string `json:"user"`
	DownloadURL string `json:"url_private_download"`
}

// FileInfo resolves metadata and the private download URL of a shared file.
func (c *Client) FileInfo(ctx context.Context, fileID string) (*FileInfo, error) {
	var out struct {
		apiStatus
		File FileInfo `json:"file"`
	}

	if err := c.callAPI(ctx, c.botToken, "/files.info?file="+fileID, nil, &out); err != nil {
		return nil, err
	}

	return &out.File, nil
}

// Download fetches file bytes with bearer-token authorization.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fault.Transport().Wrap(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.botToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fault.Transport().Errorf("file download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fault.Transport().Errorf("file download: http %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Transport().Errorf("file download read: %w", err)
	}

	return data, nil
}

type apiStatus struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (s apiStatus) err(path string) error {
	if s.OK {
		return nil
	}

	code := strings.TrimSpace(s.Error)
	if code == "" {
		code = "unknown_error"
	}

	return fault.Transport().Errorf("slack %s failed: %s", path, code)
}

type httpStatusError struct {
	status     int
	retryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return "slack api http " + strconv.Itoa(e.status)
}

func (c *Client) callAPI(ctx context.Context, token, path string, payload any, out interface{ err(string) error }) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return oops.Errorf("marshal slack payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fault.Transport().Wrap(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fault.Transport().Errorf("slack %s: %w", path, err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return fault.Transport().Errorf("slack %s read: %w", path, readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &httpStatusError{status: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && secs > 0 {
				statusErr.retryAfter = time.Duration(secs) * time.Second
			}
		}
		return fault.Transport().Wrap(statusErr)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fault.Transport().Errorf("slack %s decode: %w", path, err)
	}

	return out.err(path)
}

func retryDelay(err error) (time.Duration, bool) {
	var statusErr *httpStatusError
	if !errors.As(err, &statusErr) {
		return 0, false
	}

	switch {
	case statusErr.status == http.StatusTooManyRequests:
		if statusErr.retryAfter > 0 {
			return statusErr.retryAfter, true
		}
		return time.Second, true
	case statusErr.status >= 500:
		return 300 * time.Millisecond, true
	default:
		return 0, false
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
