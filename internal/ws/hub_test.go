package ws

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/khetumewada/WebChat/internal/models"
)

type fakeDirectory struct {
	mu       sync.Mutex
	users    map[models.UserID]models.User
	presence map[models.UserID]models.Presence
}

func newFakeDirectory(users ...models.User) *fakeDirectory {
	d := &fakeDirectory{
		users:    make(map[models.UserID]models.User),
		presence: make(map[models.UserID]models.Presence),
	}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeDirectory) GetUser(id models.UserID) (models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	return u, nil
}

func (d *fakeDirectory) SetPresence(id models.UserID, p models.Presence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presence[id] = p
	return nil
}

func (d *fakeDirectory) online(id models.UserID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presence[id].Online
}

var (
	ann = models.User{ID: "1", UserName: "ann"}
	bob = models.User{ID: "2", UserName: "bob"}
)

func receive(t *testing.T, ch chan models.Frame) models.Frame {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for frame")
		return nil
	}
}

func TestHub_Lifecycle(t *testing.T) {
	dir := newFakeDirectory(ann, bob)
	mock := clock.NewMock()
	mock.Set(time.Unix(1700000000, 0))
	h := NewHub(dir, 10, WithClock(mock))

	// 1. Join
	c1, ch1, err := h.Join("7", ann)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	c2, ch2, err := h.Join("7", bob)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if c1 == c2 {
		t.Fatal("connection IDs must differ")
	}
	if !dir.online(ann.ID) || !dir.online(bob.ID) {
		t.Error("joined users should be online")
	}

	// 2. Messages go to everyone, sender included
	h.Dispatch("7", c1, ann, models.ChatMessage{Message: "hello"})
	for _, ch := range []chan models.Frame{ch1, ch2} {
		msg, ok := receive(t, ch).(models.ChatMessage)
		if !ok {
			t.Fatal("expected chat message")
		}
		if msg.Message != "hello" || msg.SenderID != ann.ID {
			t.Errorf("unexpected message: %+v", msg)
		}
	}

	// Blank messages are dropped
	h.Dispatch("7", c1, ann, models.ChatMessage{Message: "   "})

	// 3. Typing goes to others only
	h.Dispatch("7", c2, bob, models.Typing{IsTyping: true})
	ind, ok := receive(t, ch1).(models.TypingIndicator)
	if !ok || !ind.IsTyping || ind.User != "bob" {
		t.Errorf("unexpected indicator: %+v", ind)
	}
	select {
	case f := <-ch2:
		t.Errorf("typer received %+v", f)
	default:
	}

	// 4. History
	recs := h.History("7", 50)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Sender != "ann" || recs[0].Timestamp != 1700000000 {
		t.Errorf("unexpected record: %+v", recs[0])
	}
	if got := h.History("missing", 50); len(got) != 0 {
		t.Errorf("expected no history, got %d", len(got))
	}

	// 5. Leave
	h.Leave("7", c1, ann.ID)
	if dir.online(ann.ID) {
		t.Error("ann should be offline after leaving")
	}
	if _, ok := <-ch1; ok {
		t.Error("channel should be closed after Leave")
	}

	h.Dispatch("7", c2, bob, models.ChatMessage{Message: "are you there?"})
	if _, ok := receive(t, ch2).(models.ChatMessage); !ok {
		t.Error("bob should still receive messages")
	}
}

func TestHub_PresenceAcrossConnections(t *testing.T) {
	dir := newFakeDirectory(ann)
	h := NewHub(dir, 10)

	c1, _, _ := h.Join("7", ann)
	c2, _, _ := h.Join("8", ann)

	h.Leave("7", c1, ann.ID)
	if !dir.online(ann.ID) {
		t.Error("ann still has a connection open")
	}
	h.Leave("8", c2, ann.ID)
	if dir.online(ann.ID) {
		t.Error("ann should be offline")
	}
}

func TestHub_DMAccess(t *testing.T) {
	h := NewHub(newFakeDirectory(ann, bob), 10)

	dm := DMID(bob.ID, ann.ID)
	if dm != "dm_1_2" {
		t.Errorf("expected dm_1_2, got %s", dm)
	}

	if _, _, err := h.Join(dm, ann); err != nil {
		t.Errorf("participant refused: %v", err)
	}
	carol := models.User{ID: "3", UserName: "carol"}
	if _, _, err := h.Join(dm, carol); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := h.Authorize("", ann.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for empty chat, got %v", err)
	}
	if err := h.Authorize("lobby", carol.ID); err != nil {
		t.Errorf("open rooms should accept anyone: %v", err)
	}
}
