package websocket

import "sync"

// Presence is a best-effort, process-local map of which users currently
// hold an open connection. Advisory only: nothing that affects
// authorization or delivery correctness may consult it.
type Presence struct {
	mu    sync.RWMutex
	conns map[string]map[string]struct{} // userID -> connection ids
}

func NewPresence() *Presence {
	return &Presence{
		conns: make(map[string]map[string]struct{}),
	}
}

func (p *Presence) Register(userID, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conns[userID] == nil {
		p.conns[userID] = make(map[string]struct{})
	}
	p.conns[userID][connID] = struct{}{}
}

func (p *Presence) Unregister(userID, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if set, ok := p.conns[userID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(p.conns, userID)
		}
	}
}

func (p *Presence) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.conns[userID]) > 0
}

func (p *Presence) ListActive() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	users := make([]string, 0, len(p.conns))
	for userID := range p.conns {
		users = append(users, userID)
	}
	return users
}
