package search

import "github.com/khetumewada/WebChat/internal/view"

// UserMenu closes the account menu on any click outside of it. The toggle
// button's click never reaches the outside-click handler.
type UserMenu struct {
	menu *view.Menu
}

func NewUserMenu(menu *view.Menu) *UserMenu {
	return &UserMenu{menu: menu}
}

// ButtonClick toggles the menu and returns whether it is now shown.
func (m *UserMenu) ButtonClick() bool {
	return m.menu.Toggle()
}

// DocumentClick handles a click that bubbled to the document. insideMenu
// reports whether the click target is within the menu container.
func (m *UserMenu) DocumentClick(insideMenu bool) {
	if insideMenu || !m.menu.Visible() {
		return
	}
	m.menu.Close()
}
