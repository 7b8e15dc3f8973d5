package content

import (
	"errors"
	"html/template"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

	// rowPolicy guards the search dropdown markup. Profile image URLs come
	// from the backend verbatim, so anything but http(s) or a relative path
	// is stripped.
	rowPolicy = func() *bluemonday.Policy {
		p := bluemonday.NewPolicy()
		p.AllowElements("div", "img")
		p.AllowAttrs("class").OnElements("div", "img")
		p.AllowAttrs("alt").OnElements("img")
		p.AllowAttrs("src").OnElements("img")
		p.AllowURLSchemes("http", "https")
		p.AllowRelativeURLs(true)
		return p
	}()
)

// Escape escapes special characters like "<" to become "&lt;".
// It matches the behavior of html/template and is safe for use in HTML attributes.
func Escape(input string) string {
	return template.HTMLEscapeString(input)
}

// SanitizeRow drops any markup from a rendered search row that is not part
// of the row layout.
func SanitizeRow(input string) string {
	return rowPolicy.Sanitize(input)
}

// Highlight escapes text and wraps every case-insensitive occurrence of
// query in <mark>. The query is matched literally. An empty query returns
// the escaped text unchanged.
func Highlight(text, query string) string {
	html, _ := Match(text, query)
	return html
}

// Match is Highlight that also reports whether query occurs in text. An
// empty query matches everything.
func Match(text, query string) (string, bool) {
	if query == "" {
		return Escape(text), true
	}

	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(query))
	if err != nil {
		return Escape(text), false
	}

	locs := re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return Escape(text), false
	}

	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(Escape(text[last:loc[0]]))
		b.WriteString("<mark>")
		b.WriteString(Escape(text[loc[0]:loc[1]]))
		b.WriteString("</mark>")
		last = loc[1]
	}
	b.WriteString(Escape(text[last:]))
	return b.String(), true
}

// Initials returns the avatar fallback: first letters of the first and last
// name, or the first two letters of the username.
func Initials(fullName, username string) string {
	fields := strings.Fields(fullName)
	if len(fields) > 0 {
		out := firstRune(fields[0])
		if len(fields) > 1 {
			out += firstRune(fields[len(fields)-1])
		}
		return strings.ToUpper(out)
	}

	var out []rune
	for _, r := range username {
		if len(out) == 2 {
			break
		}
		out = append(out, unicode.ToUpper(r))
	}
	return string(out)
}

func firstRune(s string) string {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return ""
	}
	return string(r)
}

// ValidateUsername checks if the username contains only allowed characters
// (alphanumeric, dot, dash, underscore) and is not empty.
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("username cannot be empty")
	}
	if !usernameRegex.MatchString(username) {
		return errors.New("username contains invalid characters (allowed: alphanumeric, dot, dash, underscore)")
	}
	return nil
}
