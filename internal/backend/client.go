package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/khetumewada/WebChat/internal/models"
)

var ErrUnavailable = errors.New("backend unavailable")

// Client talks to the chat backend's JSON endpoints on behalf of a user.
type Client struct {
	base   *url.URL
	http   *http.Client
	header http.Header
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithHeader adds a header to every request, e.g. the session cookie or
// the relay's X-User-ID.
func WithHeader(key, value string) Option {
	return func(cl *Client) { cl.header.Set(key, value) }
}

func New(origin string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(origin, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid origin %q: scheme and host are required", origin)
	}

	c := &Client{base: base, http: http.DefaultClient, header: make(http.Header)}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SearchUsers issues GET /api/search-users/?q=<query>. The query is sent
// as given; callers trim it.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]models.SearchUser, error) {
	var resp models.SearchResponse
	if err := c.getJSON(ctx, "/api/search-users/", url.Values{"q": {query}}, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// History issues GET /api/chat/<chatID>/messages/.
func (c *Client) History(ctx context.Context, chatID string) ([]models.HistoryMessage, error) {
	var resp models.HistoryResponse
	path := "/api/chat/" + url.PathEscape(chatID) + "/messages/"
	if err := c.getJSON(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// StartChatURL is where selecting a search result navigates to.
func StartChatURL(id models.UserID) string {
	return "/start-chat/" + url.PathEscape(string(id)) + "/"
}

// Open requests a page path such as a StartChatURL without following the
// redirect and returns the chat ID of the room it points to.
func (c *Client) Open(ctx context.Context, href string) (string, error) {
	u := *c.base
	u.Path = strings.TrimSuffix(c.base.Path, "/") + href

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	for k, v := range c.header {
		req.Header[k] = v
	}

	noFollow := *c.http
	noFollow.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := noFollow.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusFound && resp.StatusCode != http.StatusSeeOther {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: %s: %s", ErrUnavailable, resp.Status, strings.TrimSpace(string(body)))
	}

	loc := strings.Trim(resp.Header.Get("Location"), "/")
	chatID, ok := strings.CutPrefix(loc, "chat/")
	if !ok || chatID == "" {
		return "", fmt.Errorf("%w: unexpected redirect to %q", ErrUnavailable, resp.Header.Get("Location"))
	}
	return chatID, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := *c.base
	u.Path = strings.TrimSuffix(c.base.Path, "/") + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: %s", ErrUnavailable, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrUnavailable, err)
	}
	return nil
}
