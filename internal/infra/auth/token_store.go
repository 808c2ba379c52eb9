// File: internal/infra/auth/token_store.go
package auth

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FileTokenStore reads an opaque bearer token from a local file. The token
// is issued elsewhere; this store only consumes it. The file is re-read
// when its modification time changes, so a refreshed token is picked up
// without restarting.
type FileTokenStore struct {
	path string
	log  *zerolog.Logger

	mu      sync.Mutex
	token   string
	modTime time.Time
	loaded  bool
}

func NewFileTokenStore(path string, logger *zerolog.Logger) *FileTokenStore {
	tsLog := logger.With().Str("component", "FileTokenStore").Logger()
	return &FileTokenStore{path: path, log: &tsLog}
}

// Token returns the current bearer token and whether one is available.
func (s *FileTokenStore) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return "", false
	}
	info, err := os.Stat(s.path)
	if err != nil {
		if s.loaded {
			s.log.Debug().Err(err).Msg("token file no longer readable; dropping cached token")
		}
		s.token = ""
		s.loaded = false
		return "", false
	}
	if !s.loaded || info.ModTime().After(s.modTime) {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return "", false
		}
		s.token = strings.TrimSpace(string(b))
		s.modTime = info.ModTime()
		s.loaded = true
	}
	if s.token == "" {
		return "", false
	}
	return s.token, true
}
