package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const identityFile = "identity"

// Resolver derives the stable identity that tags outbound actions and
// scopes vote de-duplication. An authenticated identity wins; failing
// that, a generated anonymous id is persisted so the same browser-like
// installation keeps the same identity across runs.
//
// Once resolved the value never changes for the process lifetime.
// Regenerating it mid-session would silently break the already-voted
// checks in the feed store.
type Resolver struct {
	authenticated string
	dir           string

	mu     sync.Mutex
	cached string
}

// NewResolver creates a resolver. authenticated may be empty for
// anonymous participants; dir is where the anonymous id is persisted
// and defaults to the user config dir when empty.
func NewResolver(authenticated string, dir string) *Resolver {
	return &Resolver{
		authenticated: strings.TrimSpace(authenticated),
		dir:           dir,
	}
}

// Resolve returns the identity, generating and persisting an anonymous
// one on first call if no authenticated identity is available.
func (r *Resolver) Resolve() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != "" {
		return r.cached, nil
	}

	if r.authenticated != "" {
		r.cached = r.authenticated
		return r.cached, nil
	}

	dir := r.dir
	if dir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("failed to locate config dir: %w", err)
		}
		dir = filepath.Join(configDir, "huddle")
	}

	path := filepath.Join(dir, identityFile)

	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			r.cached = id
			return r.cached, nil
		}
	}

	id := "anon-" + uuid.NewString()

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create identity dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to persist identity: %w", err)
	}

	log.WithFields(log.Fields{
		"identity": id,
	}).Info("Generated anonymous identity")

	r.cached = id
	return r.cached, nil
}
