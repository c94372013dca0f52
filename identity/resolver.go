package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-payledger/core"
)

// Identity is the acting user behind a verified webhook.
type Identity struct {
	UserID   string
	Account  core.AccountRecord
	Profile  core.UserProfile
	Created  bool
	Migrated bool
	Moved    int
}

// Resolver maps an identity assertion to a member profile, creating or
// migrating the profile on first sight.
type Resolver struct {
	Directory       core.AccountDirectory
	Profiles        core.ProfileStore
	Timeline        core.TimelineStore
	DefaultUserType core.UserType
	Observer        core.Observer
	Now             func() time.Time
}

func NewResolver(directory core.AccountDirectory, profiles core.ProfileStore, timeline core.TimelineStore) *Resolver {
	return &Resolver{
		Directory:       directory,
		Profiles:        profiles,
		Timeline:        timeline,
		DefaultUserType: core.UserTypeGuest,
		Observer:        core.NewObserver("payledger", nil, nil),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (r *Resolver) Resolve(ctx context.Context, assertion string) (Identity, error) {
	startedAt := time.Now()
	out, err := r.resolve(ctx, assertion)
	fields := map[string]any{
		"user_id":  out.UserID,
		"created":  out.Created,
		"migrated": out.Migrated,
	}
	if r != nil {
		r.Observer.ObserveOperation(ctx, startedAt, "resolve_identity", err, fields)
	}
	return out, err
}

func (r *Resolver) resolve(ctx context.Context, assertion string) (Identity, error) {
	if r == nil || r.Directory == nil || r.Profiles == nil {
		return Identity{}, core.IdentityUnavailable("identity resolver is not configured", nil)
	}
	if strings.TrimSpace(assertion) == "" {
		return Identity{}, core.IdentityRejected("identity assertion is empty", nil)
	}

	account, err := r.Directory.LookupAccount(ctx, assertion)
	if err != nil {
		var resolutionErr *core.IdentityResolutionError
		if errors.As(err, &resolutionErr) {
			return Identity{}, err
		}
		return Identity{}, core.IdentityRejected("identity assertion rejected", err)
	}
	account.UID = strings.TrimSpace(account.UID)
	if account.UID == "" {
		return Identity{}, core.IdentityRejected("account has no uid", nil)
	}

	profile, found, err := r.Profiles.GetProfile(ctx, account.UID)
	if err != nil {
		return Identity{}, core.IdentityUnavailable("profile lookup failed", err)
	}
	if !found {
		return r.createMember(ctx, account)
	}

	userType, err := core.ParseUserType(string(profile.UserType), r.defaultUserType())
	if err != nil {
		return Identity{}, core.IdentityUnavailable("malformed profile", err)
	}
	profile.UserType = userType
	if userType.IsMember() {
		return Identity{UserID: account.UID, Account: account, Profile: profile}, nil
	}
	return r.migrate(ctx, account, profile)
}

func (r *Resolver) createMember(ctx context.Context, account core.AccountRecord) (Identity, error) {
	if account.Anonymous() {
		return Identity{}, core.IdentityUnavailable(
			"anonymous account "+account.UID+" has no linked provider and cannot hold a member profile",
			nil,
		)
	}
	now := r.now()
	profile := memberProfile(account, now)
	if err := r.Profiles.SaveProfile(ctx, profile); err != nil {
		return Identity{}, core.IdentityUnavailable("profile create failed", err)
	}
	return Identity{UserID: account.UID, Account: account, Profile: profile, Created: true}, nil
}

// migrate upgrades a guest or anon profile. Timeline data moves before the
// profile is rewritten so an interrupted run is completed by the next one.
func (r *Resolver) migrate(ctx context.Context, account core.AccountRecord, stale core.UserProfile) (Identity, error) {
	moved := 0
	staleID := strings.TrimSpace(stale.ProfileID)
	if staleID != "" && staleID != account.UID && r.Timeline != nil {
		count, err := r.Timeline.MoveTimeline(ctx, staleID, account.UID)
		if err != nil {
			return Identity{}, core.IdentityUnavailable("timeline migration failed", err)
		}
		moved = count
	}

	profile := MergeProfiles(memberProfile(account, r.now()), stale)
	if err := r.Profiles.SaveProfile(ctx, profile); err != nil {
		return Identity{}, core.IdentityUnavailable("profile migration failed", err)
	}
	return Identity{
		UserID:   account.UID,
		Account:  account,
		Profile:  profile,
		Migrated: true,
		Moved:    moved,
	}, nil
}

func memberProfile(account core.AccountRecord, now time.Time) core.UserProfile {
	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	meta := copyMap(account.Meta)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["provider_ids"] = append([]string(nil), account.ProviderIDs...)
	meta["tenant_id"] = account.TenantID
	return core.UserProfile{
		UserID:      account.UID,
		ProfileID:   account.UID,
		UserType:    core.UserTypeMember,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		CreatedAt:   createdAt.UTC(),
		UpdatedAt:   now,
		LastLoginAt: account.LastLoginAt,
		ProviderIDs: append([]string(nil), account.ProviderIDs...),
		TenantID:    account.TenantID,
		Meta:        meta,
	}
}

// MergeProfiles fills every empty field of member from stale. Fields already
// set on member are kept.
func MergeProfiles(member core.UserProfile, stale core.UserProfile) core.UserProfile {
	merged := cloneProfile(member)
	if merged.DisplayName == "" {
		merged.DisplayName = stale.DisplayName
	}
	if merged.Email == "" {
		merged.Email = stale.Email
	}
	if merged.TenantID == "" {
		merged.TenantID = stale.TenantID
	}
	if merged.LastLoginAt == nil && stale.LastLoginAt != nil {
		value := *stale.LastLoginAt
		merged.LastLoginAt = &value
	}
	if !stale.CreatedAt.IsZero() && stale.CreatedAt.Before(merged.CreatedAt) {
		merged.CreatedAt = stale.CreatedAt
	}
	if len(merged.ProviderIDs) == 0 {
		merged.ProviderIDs = append([]string(nil), stale.ProviderIDs...)
	}
	merged.Attributes = mergeMissing(merged.Attributes, stale.Attributes)
	merged.Meta = mergeMissing(merged.Meta, stale.Meta)
	return merged
}

func mergeMissing(primary map[string]any, fallback map[string]any) map[string]any {
	if len(primary) == 0 && len(fallback) == 0 {
		return primary
	}
	out := copyMap(primary)
	if out == nil {
		out = map[string]any{}
	}
	for key, value := range fallback {
		if _, exists := out[key]; exists {
			continue
		}
		if isEmptyValue(value) {
			continue
		}
		out[key] = value
	}
	return out
}

func isEmptyValue(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case bool:
		return !typed
	case []any:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	}
	return false
}

func (r *Resolver) defaultUserType() core.UserType {
	if r.DefaultUserType == "" {
		return core.UserTypeGuest
	}
	return r.DefaultUserType
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}
