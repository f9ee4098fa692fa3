// Package identity maps LINE user IDs to human-readable display names.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"linebridge/internal/line"
)

// PrefixLen is how many leading characters of a user ID the allow-list
// keys on.
const PrefixLen = 6

// ProfileLookup fetches a remote user profile. *line.Client satisfies it.
type ProfileLookup interface {
	Profile(ctx context.Context, userID string) (*line.Profile, error)
}

// Resolver resolves user IDs to display names: allow-list first, then a
// remote profile lookup, cached for the process lifetime. Resolve never
// fails; it always yields a usable display string.
type Resolver struct {
	allowList map[string]string // 6-char prefix -> display name, read-only
	profiles  ProfileLookup
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]string // userID -> display name, insert-once
}

// NewResolver creates a Resolver with the given static allow-list.
func NewResolver(allowList map[string]string, profiles ProfileLookup, logger *slog.Logger) *Resolver {
	if allowList == nil {
		allowList = map[string]string{}
	}
	return &Resolver{
		allowList: allowList,
		profiles:  profiles,
		logger:    logger,
		cache:     make(map[string]string),
	}
}

// Resolve returns a display name for the user ID.
//
// Order: cached value, allow-list by prefix, profile API, then a fallback
// string. Lookup failures are not cached so a later call can recover.
// Concurrent resolutions of the same uncached ID may both hit the profile
// API; they converge to the same value.
func (r *Resolver) Resolve(ctx context.Context, userID string) string {
	r.mu.RLock()
	name, ok := r.cache[userID]
	r.mu.RUnlock()
	if ok {
		return name
	}

	prefix := userID
	if len(prefix) > PrefixLen {
		prefix = prefix[:PrefixLen]
	}

	if name, ok := r.allowList[prefix]; ok {
		r.store(userID, name)
		return name
	}

	profile, err := r.profiles.Profile(ctx, userID)
	if err != nil {
		r.logger.Warn("profile lookup failed", "user_id", userID, "err", err)
		return fmt.Sprintf("(user %s)", prefix)
	}

	name = profile.DisplayName
	if name == "" {
		name = fmt.Sprintf("(unknown user %s)", prefix)
	}
	r.store(userID, name)
	return name
}

// CacheLen reports how many IDs have been resolved so far.
func (r *Resolver) CacheLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *Resolver) store(userID, name string) {
	r.mu.Lock()
	if _, ok := r.cache[userID]; !ok {
		r.cache[userID] = name
	}
	r.mu.Unlock()
}
