package messaging

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	DefaultBaseURL = "https://api.line.me"
	DefaultTimeout = 10 * time.Second

	// MaxMulticastRecipients is the platform limit per multicast call.
	MaxMulticastRecipients = 500
)

type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	RetryCount  int
}

// APIError is returned when the platform answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("messaging api: status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the chat platform's messaging REST API.
type Client struct {
	http *resty.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		}).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: client}
}

type errorBody struct {
	Message string `json:"message"`
}

func (c *Client) post(ctx context.Context, path string, body any, retryKey bool) error {
	var apiErr errorBody
	req := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetError(&apiErr)
	if retryKey {
		// Lets the platform drop duplicates when resty retries a push after a timeout.
		req.SetHeader("X-Line-Retry-Key", uuid.NewString())
	}

	resp, err := req.Post(path)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	if resp.IsError() {
		msg := apiErr.Message
		if msg == "" {
			msg = resp.String()
		}
		return &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}
	return nil
}

// Reply answers an inbound event. A reply token can be used once.
func (c *Client) Reply(ctx context.Context, replyToken string, messages ...Message) error {
	return c.post(ctx, "/v2/bot/message/reply", map[string]any{
		"replyToken": replyToken,
		"messages":   messages,
	}, false)
}

// Push sends to a single user outside of any inbound event.
func (c *Client) Push(ctx context.Context, to string, messages ...Message) error {
	return c.post(ctx, "/v2/bot/message/push", map[string]any{
		"to":       to,
		"messages": messages,
	}, true)
}

// Multicast sends the same messages to many users, splitting into platform sized batches.
// An empty recipient list is a no-op.
func (c *Client) Multicast(ctx context.Context, to []string, messages ...Message) error {
	for start := 0; start < len(to); start += MaxMulticastRecipients {
		end := start + MaxMulticastRecipients
		if end > len(to) {
			end = len(to)
		}
		err := c.post(ctx, "/v2/bot/message/multicast", map[string]any{
			"to":       to[start:end],
			"messages": messages,
		}, true)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var (
		profile Profile
		apiErr  errorBody
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("userId", userID).
		SetResult(&profile).
		SetError(&apiErr).
		Get("/v2/bot/profile/{userId}")
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: apiErr.Message}
	}
	return &profile, nil
}

// LinkRichMenu binds a rich menu to one user.
func (c *Client) LinkRichMenu(ctx context.Context, userID, richMenuID string) error {
	return c.post(ctx, "/v2/bot/user/"+userID+"/richmenu/"+richMenuID, nil, false)
}
