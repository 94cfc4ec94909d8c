package controller

import "sync"

// ExitGuard is the in-memory per-(user, symbol) lock held while an
// automated exit is being submitted.
type ExitGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewExitGuard() *ExitGuard {
	return &ExitGuard{held: map[string]struct{}{}}
}

func guardKey(userID, symbol string) string {
	return userID + "|" + symbol
}

// TryAcquire takes the lock for (userID, symbol); false when already held.
func (g *ExitGuard) TryAcquire(userID, symbol string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := guardKey(userID, symbol)
	if _, ok := g.held[key]; ok {
		return false
	}
	g.held[key] = struct{}{}
	return true
}

func (g *ExitGuard) Release(userID, symbol string) {
	g.mu.Lock()
	delete(g.held, guardKey(userID, symbol))
	g.mu.Unlock()
}
