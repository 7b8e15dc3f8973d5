package content

import (
	"strings"
	"testing"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain text", "Hello World", "Hello World"},
		{"HTML chars", "<div>Hello</div>", "&lt;div&gt;Hello&lt;/div&gt;"},
		{"Ampersand", "Tom & Jerry", "Tom &amp; Jerry"},
		{"Quotes", `"Hello" 'World'`, "&#34;Hello&#34; &#39;World&#39;"},
		{"Script", "<script>alert(1)</script>", "&lt;script&gt;alert(1)&lt;/script&gt;"},
		{"Emoji", "I am 🤖", "I am 🤖"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Escape(tt.input); got != tt.expected {
				t.Errorf("Escape() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestHighlight(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		query    string
		expected string
	}{
		{"Single match", "foobar", "foo", "<mark>foo</mark>bar"},
		{"Case insensitive", "FooBar foo", "foo", "<mark>Foo</mark>Bar <mark>foo</mark>"},
		{"No match", "baz", "foo", "baz"},
		{"Empty query", "a<b", "", "a&lt;b"},
		{"Escapes around marks", "<i>foo</i>", "foo", "&lt;i&gt;<mark>foo</mark>&lt;/i&gt;"},
		{"Regex metacharacters", "a.b axb", ".", "a<mark>.</mark>b axb"},
		{"Unbalanced paren", "f(x)", "(", "f<mark>(</mark>x)"},
		{"Star", "a*b", "*", "a<mark>*</mark>b"},
		{"Query needing escape", "x < y", "<", "x <mark>&lt;</mark> y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Highlight(tt.text, tt.query); got != tt.expected {
				t.Errorf("Highlight() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		query  string
		wantOK bool
	}{
		{"Match", "FooBar", "foo", true},
		{"No match", "baz", "foo", false},
		{"Empty query", "baz", "", true},
		// Simple folding does not map the dotted capital I onto i.
		{"Dotted capital I", "İstanbul", "i", false},
		{"Same rune", "İstanbul", "İ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, ok := Match(tt.text, tt.query)
			if ok != tt.wantOK {
				t.Errorf("Match() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && tt.query != "" && !strings.Contains(html, "<mark>") {
				t.Errorf("Match() = %v, want a highlight", html)
			}
			if html != Highlight(tt.text, tt.query) {
				t.Errorf("Match() = %v, Highlight() = %v", html, Highlight(tt.text, tt.query))
			}
		})
	}
}

func TestInitials(t *testing.T) {
	tests := []struct {
		fullName string
		username string
		expected string
	}{
		{"Ann Lee", "ann", "AL"},
		{"ann", "annie", "A"},
		{"Mary Jane Watson", "mj", "MW"},
		{"", "bob", "BO"},
		{"", "x", "X"},
		{"  ", "éva", "ÉV"},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			if got := Initials(tt.fullName, tt.username); got != tt.expected {
				t.Errorf("Initials(%q, %q) = %v, want %v", tt.fullName, tt.username, got, tt.expected)
			}
		})
	}
}

func TestSanitizeRow(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		mustHave  string
		forbidden string
	}{
		{"Keeps layout", `<div class="search-username">ann</div>`, `class="search-username"`, ""},
		{"Keeps https image", `<img src="https://cdn.example.com/a.png" class="search-avatar-img" alt="">`, `https://cdn.example.com/a.png`, ""},
		{"Keeps relative image", `<img src="/media/a.png" class="search-avatar-img" alt="">`, `/media/a.png`, ""},
		{"Drops javascript src", `<img src="javascript:alert(1)" class="search-avatar-img" alt="">`, "", "javascript:"},
		{"Drops script", `<div>ok</div><script>alert(1)</script>`, "ok", "<script"},
		{"Drops handlers", `<img src="/a.png" onerror="alert(1)">`, "/a.png", "onerror"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeRow(tt.input)
			if tt.mustHave != "" && !strings.Contains(got, tt.mustHave) {
				t.Errorf("SanitizeRow() = %v, missing %v", got, tt.mustHave)
			}
			if tt.forbidden != "" && strings.Contains(got, tt.forbidden) {
				t.Errorf("SanitizeRow() = %v, must not contain %v", got, tt.forbidden)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Valid alphanumeric", "user123", false},
		{"Valid with dot", "user.name", false},
		{"Valid with dash", "user-name", false},
		{"Invalid space", "user name", true},
		{"Invalid script", "<script>", true},
		{"Empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateUsername(tt.input); (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
