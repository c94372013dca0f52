package identity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-payledger/core"
)

// MemoryDirectory maps opaque assertion tokens to accounts.
type MemoryDirectory struct {
	mu       sync.RWMutex
	accounts map[string]core.AccountRecord
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{accounts: map[string]core.AccountRecord{}}
}

func (d *MemoryDirectory) Add(assertion string, account core.AccountRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[strings.TrimSpace(assertion)] = account
}

func (d *MemoryDirectory) LookupAccount(_ context.Context, assertion string) (core.AccountRecord, error) {
	if d == nil {
		return core.AccountRecord{}, core.IdentityUnavailable("account directory is not configured", nil)
	}
	d.mu.RLock()
	account, ok := d.accounts[strings.TrimSpace(assertion)]
	d.mu.RUnlock()
	if !ok {
		return core.AccountRecord{}, core.IdentityRejected("unknown identity assertion", nil)
	}
	return account, nil
}

type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]core.UserProfile
}

func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: map[string]core.UserProfile{}}
}

func (s *MemoryProfileStore) GetProfile(_ context.Context, userID string) (core.UserProfile, bool, error) {
	if s == nil {
		return core.UserProfile{}, false, fmt.Errorf("identity: profile store is not configured")
	}
	s.mu.RLock()
	profile, ok := s.profiles[strings.TrimSpace(userID)]
	s.mu.RUnlock()
	if !ok {
		return core.UserProfile{}, false, nil
	}
	return cloneProfile(profile), true, nil
}

func (s *MemoryProfileStore) SaveProfile(_ context.Context, profile core.UserProfile) error {
	if s == nil {
		return fmt.Errorf("identity: profile store is not configured")
	}
	userID := strings.TrimSpace(profile.UserID)
	if userID == "" {
		return fmt.Errorf("identity: profile user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = cloneProfile(profile)
	return nil
}

type MemoryTimelineStore struct {
	mu      sync.Mutex
	entries map[string]map[string]core.TimelineEntry
}

func NewMemoryTimelineStore() *MemoryTimelineStore {
	return &MemoryTimelineStore{entries: map[string]map[string]core.TimelineEntry{}}
}

func (s *MemoryTimelineStore) AppendTimeline(_ context.Context, entry core.TimelineEntry) error {
	userID := strings.TrimSpace(entry.UserID)
	key := strings.TrimSpace(entry.Key)
	if userID == "" || key == "" {
		return fmt.Errorf("identity: timeline user id and key are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.entries[userID]
	if !ok {
		bucket = map[string]core.TimelineEntry{}
		s.entries[userID] = bucket
	}
	entry.UserID = userID
	entry.Key = key
	entry.Payload = copyMap(entry.Payload)
	bucket[key] = entry
	return nil
}

func (s *MemoryTimelineStore) ListTimeline(_ context.Context, userID string) ([]core.TimelineEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.entries[strings.TrimSpace(userID)]
	out := make([]core.TimelineEntry, 0, len(bucket))
	for _, entry := range bucket {
		entry.Payload = copyMap(entry.Payload)
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryTimelineStore) MoveTimeline(_ context.Context, fromUserID string, toUserID string) (int, error) {
	fromUserID = strings.TrimSpace(fromUserID)
	toUserID = strings.TrimSpace(toUserID)
	if fromUserID == "" || toUserID == "" {
		return 0, fmt.Errorf("identity: timeline source and target are required")
	}
	if fromUserID == toUserID {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	source, ok := s.entries[fromUserID]
	if !ok {
		return 0, nil
	}
	target, ok := s.entries[toUserID]
	if !ok {
		target = map[string]core.TimelineEntry{}
		s.entries[toUserID] = target
	}
	moved := 0
	for key, entry := range source {
		if _, exists := target[key]; exists {
			continue
		}
		entry.UserID = toUserID
		target[key] = entry
		moved++
	}
	delete(s.entries, fromUserID)
	return moved, nil
}

func cloneProfile(profile core.UserProfile) core.UserProfile {
	cloned := profile
	cloned.ProviderIDs = append([]string(nil), profile.ProviderIDs...)
	cloned.Attributes = copyMap(profile.Attributes)
	cloned.Meta = copyMap(profile.Meta)
	if profile.LastLoginAt != nil {
		value := *profile.LastLoginAt
		cloned.LastLoginAt = &value
	}
	return cloned
}

func copyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.AccountDirectory = (*MemoryDirectory)(nil)
	_ core.ProfileStore     = (*MemoryProfileStore)(nil)
	_ core.TimelineStore    = (*MemoryTimelineStore)(nil)
)
