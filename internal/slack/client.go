// Package slack is the chat-platform edge: pushing deferred messages
// through an incoming webhook, and resolving user IDs to display names
// via the users.list API with a long-lived cache.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/khuckins/trebekbot/internal/store"
)

// placeholderName stands in when the directory lookup fails.
const placeholderName = "Sean Connery"

const nameCacheTTL = 30 * 24 * time.Hour

type Config struct {
	APIToken string
	PushURL  string
	Username string
	Icon     string

	APIBaseURL string // defaults to https://slack.com
	Store      *store.Store
	HTTPClient *http.Client
}

type Client struct {
	c  Config
	hc *http.Client
	st *store.Store
}

func New(c Config) *Client {
	if c.APIBaseURL == "" {
		c.APIBaseURL = "https://slack.com"
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{c: c, hc: hc, st: c.Store}
}

// Message is the payload Slack accepts, both as a webhook response body
// and as an incoming-webhook push.
type Message struct {
	Text      string `json:"text"`
	LinkNames int    `json:"link_names"`
	Username  string `json:"username,omitempty"`
	IconEmoji string `json:"icon_emoji,omitempty"`
}

// NewMessage wraps text in a payload carrying the bot's presentation.
func (c *Client) NewMessage(text string) Message {
	return Message{
		Text:      text,
		LinkNames: 1,
		Username:  c.c.Username,
		IconEmoji: c.c.Icon,
	}
}

// PostMessage pushes a message to the channel outside a request/response
// cycle, via the configured incoming webhook.
func (c *Client) PostMessage(ctx context.Context, text string) error {
	if c.c.PushURL == "" {
		return fmt.Errorf("slack: no push webhook configured")
	}

	b, err := json.Marshal(c.NewMessage(text))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.c.PushURL, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("slack: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack: post message: status %d", resp.StatusCode)
	}
	return nil
}

type names struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	RealName  string `json:"real_name,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// DisplayName resolves a user ID to a short display name, cached for 30
// days. A failed lookup degrades to a fixed placeholder instead of
// failing the caller.
func (c *Client) DisplayName(ctx context.Context, userID string) (string, error) {
	key := c.st.Key("slack_user_names", userID)

	var n names
	ok, err := c.st.GetJSON(ctx, key, &n)
	if err != nil {
		return "", err
	}

	if !ok {
		n = c.lookupNames(ctx, userID)
		if err := c.st.SetJSONEx(ctx, key, n, nameCacheTTL); err != nil {
			return "", err
		}
	}

	if n.FirstName != "" {
		return n.FirstName, nil
	}
	return n.Name, nil
}

func (c *Client) lookupNames(ctx context.Context, userID string) names {
	member, err := c.findMember(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "slack: users.list lookup failed", "user_id", userID, "error", err)
		return names{ID: userID, Name: placeholderName}
	}
	return member
}

func (c *Client) findMember(ctx context.Context, userID string) (names, error) {
	u := c.c.APIBaseURL + "/api/users.list?token=" + url.QueryEscape(c.c.APIToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return names{}, err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return names{}, err
	}
	defer resp.Body.Close()

	var body struct {
		OK      bool `json:"ok"`
		Members []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			RealName string `json:"real_name"`
			Profile  struct {
				FirstName string `json:"first_name"`
			} `json:"profile"`
		} `json:"members"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return names{}, err
	}
	if !body.OK {
		return names{}, fmt.Errorf("users.list not ok")
	}

	for _, m := range body.Members {
		if m.ID == userID {
			return names{
				ID:        userID,
				Name:      m.Name,
				RealName:  m.RealName,
				FirstName: m.Profile.FirstName,
			}, nil
		}
	}
	return names{}, fmt.Errorf("user %s not in directory", userID)
}
