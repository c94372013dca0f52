package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-payledger/core"
	"github.com/uptrace/bun"
)

type ProfileStore struct {
	db *bun.DB
}

func NewProfileStore(db *bun.DB) (*ProfileStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &ProfileStore{db: db}, nil
}

func (s *ProfileStore) GetProfile(ctx context.Context, userID string) (core.UserProfile, bool, error) {
	if s == nil || s.db == nil {
		return core.UserProfile{}, false, fmt.Errorf("sqlstore: profile store is not configured")
	}
	record := &profileRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", strings.TrimSpace(userID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.UserProfile{}, false, nil
		}
		return core.UserProfile{}, false, err
	}
	return record.toDomain(), true, nil
}

func (s *ProfileStore) SaveProfile(ctx context.Context, profile core.UserProfile) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: profile store is not configured")
	}
	record := newProfileRecord(profile, time.Now().UTC())
	if record.UserID == "" {
		return fmt.Errorf("sqlstore: profile user id is required")
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (user_id) DO UPDATE").
		Set("profile_id = EXCLUDED.profile_id").
		Set("display_name = EXCLUDED.display_name").
		Set("user_type = EXCLUDED.user_type").
		Set("email = EXCLUDED.email").
		Set("provider_ids = EXCLUDED.provider_ids").
		Set("tenant_id = EXCLUDED.tenant_id").
		Set("attributes = EXCLUDED.attributes").
		Set("meta = EXCLUDED.meta").
		Set("last_login_at = EXCLUDED.last_login_at").
		Set("created_at = EXCLUDED.created_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func newProfileRecord(profile core.UserProfile, now time.Time) *profileRecord {
	createdAt := profile.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := profile.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	return &profileRecord{
		UserID:      strings.TrimSpace(profile.UserID),
		ProfileID:   strings.TrimSpace(profile.ProfileID),
		DisplayName: profile.DisplayName,
		UserType:    string(profile.UserType),
		Email:       profile.Email,
		ProviderIDs: nonNilStrings(profile.ProviderIDs),
		TenantID:    profile.TenantID,
		Attributes:  nonNilMap(profile.Attributes),
		Meta:        nonNilMap(profile.Meta),
		LastLoginAt: copyTimePointer(profile.LastLoginAt),
		CreatedAt:   createdAt.UTC(),
		UpdatedAt:   updatedAt.UTC(),
	}
}

func (r *profileRecord) toDomain() core.UserProfile {
	if r == nil {
		return core.UserProfile{}
	}
	return core.UserProfile{
		UserID:      r.UserID,
		ProfileID:   r.ProfileID,
		DisplayName: r.DisplayName,
		UserType:    core.UserType(r.UserType),
		Email:       r.Email,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		LastLoginAt: copyTimePointer(r.LastLoginAt),
		ProviderIDs: append([]string(nil), r.ProviderIDs...),
		TenantID:    r.TenantID,
		Attributes:  copyAnyMap(r.Attributes),
		Meta:        copyAnyMap(r.Meta),
	}
}
