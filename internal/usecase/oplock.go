// File: internal/usecase/oplock.go
package usecase

import (
	"sort"
	"sync"

	"image-enhance-client/internal/domain"

	"github.com/rs/zerolog"
)

// OperationRegistry is a named mutual-exclusion registry preventing two
// concurrent invocations of the same logical action (for example
// "submit-enhancement"). It is constructed once per application session and
// serializes all access behind a single mutex.
type OperationRegistry struct {
	mu     sync.Mutex
	active map[string]bool
	log    *zerolog.Logger
}

func NewOperationRegistry(logger *zerolog.Logger) *OperationRegistry {
	regLog := logger.With().Str("component", "OperationRegistry").Logger()
	return &OperationRegistry{active: make(map[string]bool), log: &regLog}
}

// Start marks key active. It returns false without side effects when key is
// already active; this is the duplicate-call rejection that stops rapid
// repeated triggers from double-submitting.
func (r *OperationRegistry) Start(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[key] {
		r.log.Debug().Str("key", key).Msg("duplicate operation rejected")
		return false
	}
	r.active[key] = true
	return true
}

// Stop unconditionally marks key inactive.
func (r *OperationRegistry) Stop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, key)
}

// Do composes Start + fn + Stop, releasing the key on every exit path
// including a panic inside fn. On contention it returns
// domain.ErrOperationInProgress without invoking fn.
func (r *OperationRegistry) Do(key string, fn func() error) error {
	if !r.Start(key) {
		return domain.ErrOperationInProgress
	}
	defer r.Stop(key)
	return fn()
}

// Active returns the currently held keys, sorted for stable output.
func (r *OperationRegistry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.active))
	for k := range r.active {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
