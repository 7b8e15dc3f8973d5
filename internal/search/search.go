// Package search drives the header of the chat pages: the account menu and
// the live user search dropdown.
package search

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"strings"
	"sync"

	"github.com/khetumewada/WebChat/internal/backend"
	"github.com/khetumewada/WebChat/internal/content"
	"github.com/khetumewada/WebChat/internal/models"
	"github.com/khetumewada/WebChat/internal/view"
)

const (
	NoUsersFound      = "No users found"
	SearchUnavailable = "Search unavailable"
)

var rowTmpl = template.Must(template.New("row").Parse(
	`<div class="search-avatar-container">` +
		`{{if .Image}}<img src="{{.Image}}" class="search-avatar-img" alt="">{{else}}<div class="search-avatar-initials">{{.Initials}}</div>{{end}}` +
		`{{if .Online}}<div class="online-indicator-small"></div>{{end}}` +
		`</div>` +
		`<div class="search-info"><div class="search-username">{{.UserName}}</div></div>`))

type Searcher interface {
	SearchUsers(ctx context.Context, query string) ([]models.SearchUser, error)
}

// Navigator changes the page location.
type Navigator func(href string)

type Controller struct {
	searcher Searcher
	dropdown *view.Dropdown
	navigate Navigator
	logger   *slog.Logger

	inflight sync.WaitGroup
}

func NewController(searcher Searcher, dropdown *view.Dropdown, navigate Navigator, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		searcher: searcher,
		dropdown: dropdown,
		navigate: navigate,
		logger:   logger,
	}
}

// Input handles one keystroke in the search box. An empty query hides the
// results without a request. Otherwise one request is started; whichever
// response arrives last owns the dropdown.
func (c *Controller) Input(ctx context.Context, raw string) {
	q := strings.TrimSpace(raw)
	if q == "" {
		c.dropdown.Hide()
		return
	}

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		users, err := c.searcher.SearchUsers(ctx, q)
		if err != nil {
			c.logger.Warn("user search failed", "query", q, "error", err)
			c.dropdown.Replace([]view.Row{{HTML: content.Escape(SearchUnavailable)}})
			return
		}
		c.dropdown.Replace(c.rows(users))
	}()
}

// Escape hides the dropdown. The query and any in-flight request are left
// alone.
func (c *Controller) Escape() {
	c.dropdown.Hide()
}

// Select navigates to the conversation with the user in row i. Rows of a
// hidden dropdown cannot be selected.
func (c *Controller) Select(i int) bool {
	if !c.dropdown.Visible() {
		return false
	}
	row, ok := c.dropdown.Row(i)
	if !ok || row.Href == "" {
		return false
	}
	c.navigate(row.Href)
	return true
}

// Wait blocks until every started request has updated the dropdown.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

func (c *Controller) rows(users []models.SearchUser) []view.Row {
	if len(users) == 0 {
		return []view.Row{{HTML: content.Escape(NoUsersFound)}}
	}

	rows := make([]view.Row, 0, len(users))
	for _, u := range users {
		html, err := renderRow(u)
		if err != nil {
			c.logger.Error("failed to render search row", "user_id", u.ID, "error", err)
			continue
		}
		rows = append(rows, view.Row{HTML: html, Href: backend.StartChatURL(u.ID)})
	}
	return rows
}

func renderRow(u models.SearchUser) (string, error) {
	data := struct {
		Image    string
		Initials string
		Online   bool
		UserName string
	}{
		Initials: u.Initials,
		Online:   u.Online,
		UserName: u.UserName,
	}
	if u.ProfileImage != nil {
		data.Image = *u.ProfileImage
	}
	if data.Initials == "" {
		data.Initials = content.Initials(u.FullName, u.UserName)
	}

	var buf bytes.Buffer
	if err := rowTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return content.SanitizeRow(buf.String()), nil
}
