package review

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"accessreview/internal/directory"
	"accessreview/internal/domain"
)

// DirectoryAPI is the slice of the directory client the resolver needs.
type DirectoryAPI interface {
	GetUser(ctx context.Context, uid string) (directory.UserProfile, error)
}

const maxManagerLookups = 8

// ManagerResolver resolves reporting managers with a run-scoped cache,
// so N principals sharing K distinct managers cost exactly K profile
// fetches. A resolver is created per run; the cache never outlives it.
type ManagerResolver struct {
	dir DirectoryAPI
	log zerolog.Logger

	mu    sync.Mutex
	cache map[string]domain.ManagerInfo
}

func NewManagerResolver(dir DirectoryAPI, log zerolog.Logger) *ManagerResolver {
	return &ManagerResolver{
		dir:   dir,
		log:   log,
		cache: make(map[string]domain.ManagerInfo),
	}
}

// ResolveBatch resolves the distinct set of manager uids, fetching
// uncached ones in parallel, and returns the joined map. Lookup
// failures degrade to a ManagerInfo carrying only the raw uid.
func (r *ManagerResolver) ResolveBatch(ctx context.Context, uids []string) map[string]domain.ManagerInfo {
	var pending []string
	seen := make(map[string]struct{}, len(uids))
	r.mu.Lock()
	for _, uid := range uids {
		if uid == "" {
			continue
		}
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		if _, ok := r.cache[uid]; !ok {
			pending = append(pending, uid)
		}
	}
	r.mu.Unlock()

	results := make([]domain.ManagerInfo, len(pending))
	sem := make(chan struct{}, maxManagerLookups)
	var wg sync.WaitGroup
	for i, uid := range pending {
		wg.Add(1)
		go func(i int, uid string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = r.lookup(ctx, uid)
		}(i, uid)
	}
	wg.Wait()

	out := make(map[string]domain.ManagerInfo, len(seen))
	r.mu.Lock()
	for i, uid := range pending {
		r.cache[uid] = results[i]
	}
	for uid := range seen {
		out[uid] = r.cache[uid]
	}
	r.mu.Unlock()
	return out
}

// ResolveForPrincipal fetches the principal's own profile, extracts the
// manager uid from its DN-like manager field and resolves that manager
// through the cache. Any failure along the way yields an empty manager.
func (r *ManagerResolver) ResolveForPrincipal(ctx context.Context, principalID string) domain.ManagerInfo {
	if r.dir == nil {
		return domain.ManagerInfo{}
	}
	prof, err := r.dir.GetUser(ctx, principalID)
	if err != nil {
		r.log.Debug().Err(err).Str("principal", principalID).Msg("profile fetch failed during manager resolution")
		return domain.ManagerInfo{}
	}
	uid, ok := directory.ParseUID(prof.Manager)
	if !ok {
		return domain.ManagerInfo{}
	}
	return r.ResolveBatch(ctx, []string{uid})[uid]
}

func (r *ManagerResolver) lookup(ctx context.Context, uid string) domain.ManagerInfo {
	if r.dir == nil {
		return domain.ManagerInfo{UID: uid}
	}
	prof, err := r.dir.GetUser(ctx, uid)
	if err != nil {
		r.log.Debug().Err(err).Str("manager", uid).Msg("manager profile fetch failed")
		return domain.ManagerInfo{UID: uid}
	}
	return domain.ManagerInfo{UID: uid, DisplayName: prof.CN}
}
