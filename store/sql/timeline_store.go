package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-payledger/core"
	"github.com/uptrace/bun"
)

type TimelineStore struct {
	db *bun.DB
}

func NewTimelineStore(db *bun.DB) (*TimelineStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &TimelineStore{db: db}, nil
}

func (s *TimelineStore) AppendTimeline(ctx context.Context, entry core.TimelineEntry) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: timeline store is not configured")
	}
	record := newTimelineRecord(entry)
	if record.UserID == "" || record.EntryKey == "" {
		return fmt.Errorf("sqlstore: timeline user id and key are required")
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (user_id, entry_key) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Exec(ctx)
	return err
}

func (s *TimelineStore) ListTimeline(ctx context.Context, userID string) ([]core.TimelineEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: timeline store is not configured")
	}
	records := make([]timelineEntryRecord, 0)
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", strings.TrimSpace(userID)).
		OrderExpr("?TableAlias.entry_key ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.TimelineEntry, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}

// MoveTimeline runs in one transaction so a failed move leaves the source set
// intact for the next attempt.
func (s *TimelineStore) MoveTimeline(ctx context.Context, fromUserID string, toUserID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: timeline store is not configured")
	}
	fromUserID = strings.TrimSpace(fromUserID)
	toUserID = strings.TrimSpace(toUserID)
	if fromUserID == "" || toUserID == "" {
		return 0, fmt.Errorf("sqlstore: timeline source and target are required")
	}
	if fromUserID == toUserID {
		return 0, nil
	}

	moved := 0
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		source := make([]timelineEntryRecord, 0)
		if err := tx.NewSelect().
			Model(&source).
			Where("?TableAlias.user_id = ?", fromUserID).
			OrderExpr("?TableAlias.entry_key ASC").
			Scan(ctx); err != nil {
			return err
		}
		for i := range source {
			record := source[i]
			record.UserID = toUserID
			res, err := tx.NewInsert().
				Model(&record).
				On("CONFLICT (user_id, entry_key) DO NOTHING").
				Exec(ctx)
			if err != nil {
				return err
			}
			affected, err := rowsAffected(res)
			if err != nil {
				return err
			}
			if affected > 0 {
				moved++
			}
		}
		_, err := tx.NewDelete().
			Model((*timelineEntryRecord)(nil)).
			Where("user_id = ?", fromUserID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

func newTimelineRecord(entry core.TimelineEntry) *timelineEntryRecord {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &timelineEntryRecord{
		UserID:    strings.TrimSpace(entry.UserID),
		EntryKey:  strings.TrimSpace(entry.Key),
		Payload:   nonNilMap(entry.Payload),
		CreatedAt: createdAt.UTC(),
	}
}

func (r *timelineEntryRecord) toDomain() core.TimelineEntry {
	return core.TimelineEntry{
		UserID:    r.UserID,
		Key:       r.EntryKey,
		Payload:   copyAnyMap(r.Payload),
		CreatedAt: r.CreatedAt,
	}
}
