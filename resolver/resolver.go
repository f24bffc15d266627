// Package resolver maps a loaded ROM to its backend game identity and
// achievement set without stalling gameplay. Resolution runs on a
// background goroutine; results for a session that has already ended
// are dropped.
package resolver

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/user-none/rasession/gamedb"
	"github.com/user-none/rasession/raweb"
	"github.com/user-none/rasession/romfile"
)

// Backend is the achievements web API surface the resolver needs.
// Implemented by raweb.Client.
type Backend interface {
	ResolveGameID(ctx context.Context, hash string) (uint32, error)
	FetchPatch(ctx context.Context, username, token string, gameID uint32) (*raweb.PatchData, error)
	FetchUnlocksBoth(ctx context.Context, username, token string, gameID uint32) (softcore, hardcore *raweb.Unlocks, err error)
	BadgeURLs
}

// BadgeURLs builds media URLs for badge and game icon names.
type BadgeURLs interface {
	GameBadgeURL(imageIcon string) string
	BadgeURL(badgeName string) string
	BadgeLockedURL(badgeName string) string
}

// Cache is a local hash to game ID store consulted before the backend.
// Implemented by gamedb.Store; may be nil.
type Cache interface {
	LookupHash(ctx context.Context, hash string) (uint32, bool, error)
	SaveResolution(ctx context.Context, hash string, gameID, consoleID uint32) error
}

var (
	_ Backend = (*raweb.Client)(nil)
	_ Cache   = (*gamedb.Store)(nil)
)

const resolveTimeout = 30 * time.Second

// Resolver resolves ROM hashes to game identities. One resolution is
// active at a time; repeated Start calls for an already resolved
// session are cheap no-ops.
type Resolver struct {
	backend Backend
	cache   Cache

	// group collapses concurrent gameid lookups for the same hash into
	// one backend call.
	group singleflight.Group

	mu        sync.Mutex
	resolving bool
	session   *GameSession
	set       *AchievementSet
	username  string
	token     string

	// current identifies the in-flight resolution; results carrying a
	// stale ID are dropped.
	current uuid.UUID
}

// New creates a resolver. cache may be nil to skip local caching.
func New(backend Backend, cache Cache) *Resolver {
	return &Resolver{backend: backend, cache: cache}
}

// SetCredentials records the authenticated user whose unlock state the
// resolver fetches. Empty credentials resolve identity only.
func (r *Resolver) SetCredentials(username, token string) {
	r.mu.Lock()
	r.username = username
	r.token = token
	r.mu.Unlock()
}

// IsResolving reports whether a resolution is in flight.
func (r *Resolver) IsResolving() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolving
}

// ActiveSession returns the current session, or nil before resolution
// completes.
func (r *Resolver) ActiveSession() *GameSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// AchievementSet returns the resolved achievement set, or nil when the
// ROM is unrecognized or the fetch failed.
func (r *Resolver) AchievementSet() *AchievementSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set
}

// Start resolves the ROM identity in the background and invokes done
// with the outcome. If a session for this process lifetime is already
// resolved, or a resolution is in flight, Start is a no-op; overlapping
// UI entry points may both call it. done may be nil.
func (r *Resolver) Start(identity *romfile.Identity, done func(*GameSession, *AchievementSet)) {
	r.mu.Lock()
	if r.session != nil && r.session.GameID > 0 && !r.resolving {
		session, set := r.session, r.set
		r.mu.Unlock()
		if done != nil {
			done(session, set)
		}
		return
	}
	if r.resolving {
		r.mu.Unlock()
		return
	}

	r.resolving = true
	id := uuid.New()
	r.current = id
	username, token := r.username, r.token
	r.mu.Unlock()

	go r.resolve(id, identity, username, token, done)
}

// ApplyUnlock marks an achievement earned in the resolved set after an
// unlock event. A no-op when no set is loaded.
func (r *Resolver) ApplyUnlock(id uint32, hardcore bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.set != nil {
		r.set.ApplyUnlock(id, hardcore)
	}
}

// End clears the session and achievement set. Any in-flight resolution
// result is dropped when it arrives. Safe to call repeatedly.
func (r *Resolver) End() {
	r.mu.Lock()
	r.session = nil
	r.set = nil
	r.resolving = false
	r.current = uuid.Nil
	r.mu.Unlock()
}

func (r *Resolver) resolve(id uuid.UUID, identity *romfile.Identity, username, token string, done func(*GameSession, *AchievementSet)) {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	gameID := r.lookupGameID(ctx, identity)

	session := &GameSession{
		RomHash:   identity.Hash,
		GameID:    gameID,
		Username:  username,
		AuthToken: token,
	}

	var set *AchievementSet
	if gameID > 0 && username != "" && token != "" {
		set = r.fetchSet(ctx, username, token, gameID)
	}

	r.mu.Lock()
	if r.current != id {
		r.mu.Unlock()
		log.Printf("[Resolver] dropping stale resolution for %s", identity.Hash)
		return
	}
	r.session = session
	r.set = set
	r.resolving = false
	r.mu.Unlock()

	if done != nil {
		done(session, set)
	}
}

// lookupGameID consults the local cache, then the backend. Backend
// failure is non-fatal and yields 0 so achievements stay silently
// disabled for this run; only real server answers are cached.
func (r *Resolver) lookupGameID(ctx context.Context, identity *romfile.Identity) uint32 {
	if r.cache != nil {
		if gameID, ok, err := r.cache.LookupHash(ctx, identity.Hash); err == nil && ok {
			return gameID
		} else if err != nil {
			log.Printf("[Resolver] cache lookup failed: %v", err)
		}
	}

	result, err, _ := r.group.Do(identity.Hash, func() (interface{}, error) {
		return r.backend.ResolveGameID(ctx, identity.Hash)
	})
	if err != nil {
		log.Printf("[Resolver] gameid lookup failed: %v", err)
		return 0
	}
	gameID := result.(uint32)

	if r.cache != nil {
		if err := r.cache.SaveResolution(ctx, identity.Hash, gameID, identity.ConsoleID); err != nil {
			log.Printf("[Resolver] cache save failed: %v", err)
		}
	}
	return gameID
}

// fetchSet retrieves achievement definitions and the user's unlocks.
// Failure is non-fatal; the session keeps its game ID with no set.
func (r *Resolver) fetchSet(ctx context.Context, username, token string, gameID uint32) *AchievementSet {
	patch, err := r.backend.FetchPatch(ctx, username, token, gameID)
	if err != nil {
		log.Printf("[Resolver] patch fetch failed: %v", err)
		return nil
	}

	softcore, hardcore, err := r.backend.FetchUnlocksBoth(ctx, username, token, gameID)
	if err != nil {
		log.Printf("[Resolver] unlocks fetch failed: %v", err)
		// Definitions without unlock state are still useful.
		softcore, hardcore = nil, nil
	}

	return buildSet(patch, softcore, hardcore, r.backend)
}
