package practice

import (
	"context"
	"sync"
	"time"
)

const directoryCacheTTL = 5 * time.Minute

type directoryRepo interface {
	LoadDirectory(ctx context.Context, subdomain string) (*Directory, error)
}

// Loader resolves the configured practice's directory, caching it briefly
// so a chatty call does not hit Postgres on every tool call.
type Loader struct {
	repo      directoryRepo
	subdomain string

	mu       sync.Mutex
	cached   *Directory
	cachedAt time.Time
}

func NewLoader(repo directoryRepo, subdomain string) *Loader {
	if repo == nil {
		panic("practice: repository required")
	}
	return &Loader{repo: repo, subdomain: subdomain}
}

// Directory returns the practice configuration, refreshing the cache when
// stale.
func (l *Loader) Directory(ctx context.Context) (*Directory, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil && time.Since(l.cachedAt) < directoryCacheTTL {
		return l.cached, nil
	}

	dir, err := l.repo.LoadDirectory(ctx, l.subdomain)
	if err != nil {
		// Serve the stale copy during a database blip.
		if l.cached != nil {
			return l.cached, nil
		}
		return nil, err
	}
	l.cached = dir
	l.cachedAt = time.Now()
	return dir, nil
}
