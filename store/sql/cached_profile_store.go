package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-payledger/core"
)

const profileCacheKeyPrefix = "go-payledger::profile::v1"

var errProfileMissing = errors.New("sqlstore: profile missing")

// CachedProfileStore reads profiles through a go-repository-cache service and
// drops the cached entry on every save.
type CachedProfileStore struct {
	base  core.ProfileStore
	cache repositorycache.CacheService
}

func NewCachedProfileStore(base core.ProfileStore, cacheService repositorycache.CacheService) (*CachedProfileStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base profile store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: profile cache service is required")
	}
	return &CachedProfileStore{base: base, cache: cacheService}, nil
}

// ProfileCacheKey is go-payledger::profile::v1::<user_id> with the user id
// URL-path escaped.
func ProfileCacheKey(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("sqlstore: profile user id is required")
	}
	return profileCacheKeyPrefix + "::" + url.PathEscape(userID), nil
}

func (s *CachedProfileStore) GetProfile(ctx context.Context, userID string) (core.UserProfile, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.UserProfile{}, false, fmt.Errorf("sqlstore: cached profile store is not configured")
	}
	cacheKey, err := ProfileCacheKey(userID)
	if err != nil {
		return core.UserProfile{}, false, err
	}

	profile, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.UserProfile, error) {
		fetched, found, fetchErr := s.base.GetProfile(ctx, userID)
		if fetchErr != nil {
			return core.UserProfile{}, fetchErr
		}
		if !found {
			return core.UserProfile{}, errProfileMissing
		}
		return cloneProfile(fetched), nil
	})
	if err != nil {
		if errors.Is(err, errProfileMissing) {
			return core.UserProfile{}, false, nil
		}
		return core.UserProfile{}, false, err
	}
	return cloneProfile(profile), true, nil
}

func (s *CachedProfileStore) SaveProfile(ctx context.Context, profile core.UserProfile) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached profile store is not configured")
	}
	cacheKey, err := ProfileCacheKey(profile.UserID)
	if err != nil {
		return err
	}
	if err := s.base.SaveProfile(ctx, profile); err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func cloneProfile(profile core.UserProfile) core.UserProfile {
	cloned := profile
	cloned.ProviderIDs = append([]string(nil), profile.ProviderIDs...)
	cloned.Attributes = copyAnyMap(profile.Attributes)
	cloned.Meta = copyAnyMap(profile.Meta)
	cloned.LastLoginAt = copyTimePointer(profile.LastLoginAt)
	return cloned
}
