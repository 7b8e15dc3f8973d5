package view

import "sync"

// Row is one entry of the search dropdown. Href is empty for placeholder
// rows that cannot be selected.
type Row struct {
	HTML string
	Href string
}

// Dropdown is the user search results panel.
type Dropdown struct {
	mu      sync.RWMutex
	rows    []Row
	visible bool
}

func NewDropdown() *Dropdown {
	return &Dropdown{}
}

// Replace swaps all rows at once and shows the panel.
func (d *Dropdown) Replace(rows []Row) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rows = rows
	d.visible = true
}

func (d *Dropdown) Hide() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visible = false
}

func (d *Dropdown) Visible() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.visible
}

func (d *Dropdown) Rows() []Row {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Row, len(d.rows))
	copy(out, d.rows)
	return out
}

// Shown returns the rows on screen: none while the panel is hidden.
func (d *Dropdown) Shown() []Row {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.visible {
		return nil
	}
	out := make([]Row, len(d.rows))
	copy(out, d.rows)
	return out
}

// Row returns the i-th row, if any.
func (d *Dropdown) Row(i int) (Row, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i < 0 || i >= len(d.rows) {
		return Row{}, false
	}
	return d.rows[i], true
}

// Menu is the account menu next to the search box.
type Menu struct {
	mu      sync.Mutex
	visible bool
}

// Toggle flips the menu and returns the new visibility.
func (m *Menu) Toggle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visible = !m.visible
	return m.visible
}

// Close hides the menu and reports whether it was open.
func (m *Menu) Close() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	was := m.visible
	m.visible = false
	return was
}

func (m *Menu) Visible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}
