package conversation

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Speaker identifies who produced an entry.
type Speaker string

const (
	User      Speaker = "USER"
	Assistant Speaker = "ASSISTANT"
	System    Speaker = "SYSTEM"
)

// Divider separates question/answer pairs in the rendered history.
const Divider = "---"

// Entry is one line of the conversation.
type Entry struct {
	ID      string    `json:"id"`
	Speaker Speaker   `json:"speaker"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Log is an append-only, ordered record of the session's interactions.
// It is safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

// New returns an empty log.
func New() *Log { return &Log{now: time.Now} }

// Append records msg from speaker and returns the stored entry.
func (l *Log) Append(speaker Speaker, msg string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	e := Entry{ID: uuid.NewString(), Speaker: speaker, Message: msg, At: now().UTC()}
	l.entries = append(l.entries, e)
	return e
}

// Clear drops every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Render returns a copy of the entries in insertion order.
func (l *Log) Render() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Format writes the human-readable history to w.
func (l *Log) Format(w io.Writer) error {
	entries := l.Render()
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No interactions yet.")
		return err
	}
	var b strings.Builder
	for _, e := range entries {
		switch e.Speaker {
		case User:
			fmt.Fprintf(&b, "**You:** %s\n", e.Message)
		case Assistant:
			fmt.Fprintf(&b, "**AI:** %s\n%s\n", e.Message, Divider)
		default:
			fmt.Fprintf(&b, "✓ %s\n", e.Message)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// String renders the log as Format does.
func (l *Log) String() string {
	var b strings.Builder
	_ = l.Format(&b)
	return b.String()
}
