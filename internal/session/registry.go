package session

import (
	"sync"

	"pocketledger/internal/services"
)

// registered is a session plus what keeps it in the registry: a sign-in
// hold, or at least one lease taken by a live stream.
type registered struct {
	s      *Session
	held   bool
	leases int
}

// Registry maps signed-in users to their sessions.
type Registry struct {
	books  services.BookServicer
	ledger services.LedgerServicer

	mu       sync.Mutex
	sessions map[string]*registered
}

// NewRegistry creates an empty registry.
func NewRegistry(books services.BookServicer, ledger services.LedgerServicer) *Registry {
	return &Registry{
		books:    books,
		ledger:   ledger,
		sessions: make(map[string]*registered),
	}
}

// Open returns the user's session, starting one if needed, and holds it
// until CloseSession. Called on sign-in.
func (r *Registry) Open(userID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, err := r.lookup(userID)
	if err != nil {
		return nil, err
	}
	reg.held = true
	return reg.s, nil
}

// Acquire returns the user's session for the lifetime of one stream. The
// caller must call release when the stream ends; a session that is not held
// by a sign-in is dropped once its last lease is released.
func (r *Registry) Acquire(userID string) (sess *Session, release func(), err error) {
	r.mu.Lock()
	reg, err := r.lookup(userID)
	if err != nil {
		r.mu.Unlock()
		return nil, nil, err
	}
	reg.leases++
	r.mu.Unlock()

	var once sync.Once
	return reg.s, func() {
		once.Do(func() { r.releaseLease(userID, reg) })
	}, nil
}

// lookup returns the registered session of userID, creating it if needed.
// r.mu must be held.
func (r *Registry) lookup(userID string) (*registered, error) {
	if reg, ok := r.sessions[userID]; ok {
		return reg, nil
	}
	s, err := Open(userID, r.books, r.ledger)
	if err != nil {
		return nil, err
	}
	reg := &registered{s: s}
	r.sessions[userID] = reg
	return reg, nil
}

func (r *Registry) releaseLease(userID string, reg *registered) {
	r.mu.Lock()
	reg.leases--
	idle := reg.leases == 0 && !reg.held && r.sessions[userID] == reg
	if idle {
		delete(r.sessions, userID)
	}
	r.mu.Unlock()

	if idle {
		reg.s.Close()
	}
}

// Get returns the user's session if one is open.
func (r *Registry) Get(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.sessions[userID]
	if !ok {
		return nil, false
	}
	return reg.s, true
}

// CloseSession signs the user out of live updates.
func (r *Registry) CloseSession(userID string) {
	r.mu.Lock()
	reg, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if ok {
		reg.s.Close()
	}
}

// CloseAll closes every session. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*registered)
	r.mu.Unlock()

	for _, reg := range sessions {
		reg.s.Close()
	}
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
