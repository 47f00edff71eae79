package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/moonseer/church-planner-core/internal/auth"
)

// ticketTTL is how long a stream ticket stays redeemable.
const ticketTTL = 60 * time.Second

// ticketBytes is the number of random bytes in a stream ticket.
const ticketBytes = 32

// ticketStore holds pending stream tickets. A ticket is single-use and
// carries the identity of the caller that requested it, so the WebSocket
// upgrade never needs the session token in the URL.
type ticketStore struct {
	tickets map[string]ticketEntry
	now     func() time.Time
	mu      sync.Mutex
}

type ticketEntry struct {
	identity  auth.Identity
	expiresAt time.Time
}

func newTicketStore(now func() time.Time) *ticketStore {
	return &ticketStore{
		tickets: make(map[string]ticketEntry),
		now:     now,
	}
}

// issue stores a new ticket for id and returns it with its expiry.
func (t *ticketStore) issue(id auth.Identity) (string, time.Time) {
	b := make([]byte, ticketBytes)
	rand.Read(b) //nolint:errcheck // crypto/rand.Read never fails on supported platforms
	ticket := hex.EncodeToString(b)

	expiresAt := t.now().Add(ticketTTL)

	t.mu.Lock()
	t.tickets[ticket] = ticketEntry{identity: id, expiresAt: expiresAt}
	t.mu.Unlock()

	return ticket, expiresAt
}

// consume redeems a ticket. It is removed whether or not it has expired.
func (t *ticketStore) consume(ticket string) (auth.Identity, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tickets[ticket]
	if !ok {
		return auth.Identity{}, false
	}
	delete(t.tickets, ticket)

	if !t.now().Before(entry.expiresAt) {
		return auth.Identity{}, false
	}
	return entry.identity, true
}

// cleanup removes expired tickets.
func (t *ticketStore) cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for ticket, entry := range t.tickets {
		if !now.Before(entry.expiresAt) {
			delete(t.tickets, ticket)
		}
	}
}

func (t *ticketStore) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tickets)
}

// cleanupLoop runs cleanup every ticketTTL until ctx is cancelled.
func (t *ticketStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.cleanup()
		}
	}
}
