package view

import (
	"html/template"
	"io"
)

var roomTmpl = template.Must(template.New("room").Parse(`<div class="connection-status {{.Status.State}}"{{if .Status.InputEnabled}} style="display: none"{{end}}>{{.Status.State}}{{if .Status.CanRetry}} <button id="reconnectBtn">Reconnect</button>{{end}}</div>
<div id="messagesContainer" data-scroll="{{.ScrollTop}}">
{{- range .Messages}}
<div class="message {{.Direction}}"{{if .Hidden}} style="display: none"{{end}}>
<div class="message-text">{{.Body}}</div>
<div class="message-time">{{.Time}}</div>
</div>
{{- end}}
</div>
<div id="typingIndicator"{{if not .Typing.Visible}} style="display: none"{{end}}>{{.Typing.Text}}</div>
<input id="messageInput" value="{{.Input}}"{{if not .Status.InputEnabled}} disabled{{end}}>
<button id="sendBtn"{{if not .Status.InputEnabled}} disabled{{end}}>Send</button>
`))

var dropdownTmpl = template.Must(template.New("dropdown").Parse(`<div id="searchResults"{{if not .Visible}} style="display: none"{{end}}>
{{- range .Rows}}
<div class="dropdown-item{{if .Href}} search-result-item{{end}}"{{if .Href}} data-href="{{.Href}}"{{end}}>{{.Body}}</div>
{{- end}}
</div>
`))

type renderedMessage struct {
	Message
	Body template.HTML
}

type renderedRow struct {
	Href string
	Body template.HTML
}

// Render writes the room markup. Message bodies were escaped when they
// entered the room and are emitted as is.
func (r *Room) Render(w io.Writer) error {
	r.mu.RLock()
	data := struct {
		Status    Status
		ScrollTop int
		Messages  []renderedMessage
		Typing    Typing
		Input     string
	}{
		Status:    r.status,
		ScrollTop: r.scrollTop,
		Typing:    r.typing,
		Input:     r.input,
	}
	for _, m := range r.messages {
		data.Messages = append(data.Messages, renderedMessage{Message: m, Body: template.HTML(m.HTML)})
	}
	r.mu.RUnlock()

	return roomTmpl.Execute(w, data)
}

// Render writes the dropdown markup. Row bodies are sanitized by the
// search controller before they get here.
func (d *Dropdown) Render(w io.Writer) error {
	d.mu.RLock()
	data := struct {
		Visible bool
		Rows    []renderedRow
	}{Visible: d.visible}
	for _, row := range d.rows {
		data.Rows = append(data.Rows, renderedRow{Href: row.Href, Body: template.HTML(row.HTML)})
	}
	d.mu.RUnlock()

	return dropdownTmpl.Execute(w, data)
}
