// Package credential holds the authenticated game session shared between
// control loops. The Agent reconciler is the only writer; Ship reconcilers
// and the travel command read.
package credential

import (
	"errors"
	"sync"
	"time"

	"github.com/danmuck/spacectl/internal/game"
)

var ErrEmpty = errors.New("credential: no session published")

// Cell is a lock-guarded single slot. The zero value is an empty cell.
type Cell struct {
	mu          sync.RWMutex
	session     game.Session
	agent       string
	publishedAt time.Time
}

func NewCell() *Cell { return &Cell{} }

// Publish overwrites whatever session is held.
func (c *Cell) Publish(agent string, session game.Session) {
	c.mu.Lock()
	c.session = session
	c.agent = agent
	c.publishedAt = time.Now()
	c.mu.Unlock()
}

// Load returns the current session, or ok=false while nothing was published.
func (c *Cell) Load() (game.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session, c.session != nil
}

// Require is Load with an error for the empty case.
func (c *Cell) Require() (game.Session, error) {
	session, ok := c.Load()
	if !ok {
		return nil, ErrEmpty
	}
	return session, nil
}

// Clear empties the cell.
func (c *Cell) Clear() {
	c.mu.Lock()
	c.session = nil
	c.agent = ""
	c.publishedAt = time.Time{}
	c.mu.Unlock()
}

// Snapshot describes the cell for status reporting without exposing the session.
type Snapshot struct {
	Published   bool      `json:"published"`
	Agent       string    `json:"agent,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

func (c *Cell) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{Published: c.session != nil, Agent: c.agent, PublishedAt: c.publishedAt}
}
