package chat

import (
	"sync"

	"github.com/khetumewada/WebChat/internal/models"
)

type Seq int64

type Record struct {
	Seq       Seq
	Timestamp int64
	SenderID  models.UserID
	Sender    string
	Content   string
}

// Deliver hands a frame to one connection of a room member.
type Deliver func(connID string, frame models.Frame)

// Chat is one room: its members' connections and a bounded history.
type Chat struct {
	ID         string
	Records    []Record
	Members    map[string]models.UserID // connection ID -> user
	FirstSeq   Seq
	LastSeq    Seq
	LastIndex  int
	MaxRecords int

	Deliver Deliver

	mux sync.RWMutex
}

type Config struct {
	ID         string
	MaxRecords int
	Deliver    Deliver
}

func New(config Config) *Chat {
	return &Chat{
		ID:         config.ID,
		MaxRecords: config.MaxRecords,
		LastIndex:  -1,
		FirstSeq:   -1,
		LastSeq:    -1,
		Members:    make(map[string]models.UserID),
		Deliver:    config.Deliver,
	}
}

// AddRecord stores a message in the history ring and broadcasts it to
// every connection in the room, the sender's included.
func (c *Chat) AddRecord(record Record) Record {
	c.mux.Lock()
	defer c.mux.Unlock()

	c.LastSeq++
	record.Seq = c.LastSeq

	switch {
	case len(c.Records) < c.MaxRecords:
		if c.FirstSeq == -1 {
			c.FirstSeq = c.LastSeq
		}
		c.Records = append(c.Records, record)
		c.LastIndex++
	default:
		c.FirstSeq++
		i := (c.LastIndex + 1) % c.MaxRecords
		c.Records[i] = record
		c.LastIndex = i
	}

	if c.Deliver != nil {
		frame := models.ChatMessage{Message: record.Content, SenderID: record.SenderID}
		for connID := range c.Members {
			c.Deliver(connID, frame)
		}
	}
	return record
}

// Typing tells everyone in the room except the typing connection.
func (c *Chat) Typing(fromConnID, label string, isTyping bool) {
	c.mux.RLock()
	defer c.mux.RUnlock()

	if c.Deliver == nil {
		return
	}
	frame := models.TypingIndicator{IsTyping: isTyping, User: label}
	for connID := range c.Members {
		if connID != fromConnID {
			c.Deliver(connID, frame)
		}
	}
}

// GetLastRecords returns up to count records, oldest first.
func (c *Chat) GetLastRecords(count int) []Record {
	c.mux.RLock()
	defer c.mux.RUnlock()

	if c.LastSeq == -1 || count <= 0 {
		return []Record{}
	}

	total := int(c.LastSeq - c.FirstSeq + 1)
	if count > total {
		count = total
	}

	// We want [LastSeq - count + 1, LastSeq + 1)
	from := c.LastSeq - Seq(count) + 1

	result := make([]Record, count)

	head := 0
	if len(c.Records) == c.MaxRecords {
		head = (c.LastIndex + 1) % c.MaxRecords
	}

	offset := int(from - c.FirstSeq)
	startIdx := (head + offset) % len(c.Records)

	if startIdx+count <= len(c.Records) {
		copy(result, c.Records[startIdx:startIdx+count])
	} else {
		n1 := len(c.Records) - startIdx
		copy(result, c.Records[startIdx:])
		copy(result[n1:], c.Records[:count-n1])
	}

	return result
}

func (c *Chat) Join(connID string, userID models.UserID) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.Members[connID] = userID
}

// Leave removes a connection and reports how many remain.
func (c *Chat) Leave(connID string) int {
	c.mux.Lock()
	defer c.mux.Unlock()
	delete(c.Members, connID)
	return len(c.Members)
}
