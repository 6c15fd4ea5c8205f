package notify

import (
	"sync"

	"github.com/javandres/bultti-inspections-api/internal/models"
)

// Cursor implements the receiver-side discard rule: events may arrive out
// of order, so an event is applied only when its sequence is newer than
// the last one applied for the same inspection id.
type Cursor struct {
	mu   sync.Mutex
	last map[string]int64
}

// NewCursor constructs an empty cursor.
func NewCursor() *Cursor {
	return &Cursor{last: make(map[string]int64)}
}

// Apply reports whether the event should be applied and, if so, advances
// the cursor.
func (c *Cursor) Apply(ev models.InspectionEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev.Seq <= c.last[ev.InspectionID] {
		return false
	}
	c.last[ev.InspectionID] = ev.Seq
	return true
}
