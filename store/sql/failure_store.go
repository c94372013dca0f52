package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-payledger/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type FailureStore struct {
	db   *bun.DB
	repo repository.Repository[*creditFailureRecord]
}

func NewFailureStore(db *bun.DB) (*FailureStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*creditFailureRecord](db, creditFailureHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credit failure repository wiring: %w", err)
		}
	}
	return &FailureStore{db: db, repo: repo}, nil
}

func (s *FailureStore) RecordFailure(ctx context.Context, failure core.CreditFailure) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: failure store is not configured")
	}
	failure.ID = strings.TrimSpace(failure.ID)
	if parseUUID(failure.ID) == uuid.Nil {
		failure.ID = uuid.NewString()
	}
	if failure.Status == "" {
		failure.Status = core.FailureStatusPending
	}
	if failure.CreatedAt.IsZero() {
		failure.CreatedAt = time.Now().UTC()
	}
	record, err := newCreditFailureRecord(failure)
	if err != nil {
		return err
	}
	_, err = s.repo.Create(ctx, record)
	return err
}

func (s *FailureStore) GetFailure(ctx context.Context, id string) (core.CreditFailure, error) {
	if s == nil || s.repo == nil {
		return core.CreditFailure{}, fmt.Errorf("sqlstore: failure store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", strings.TrimSpace(id)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.CreditFailure{}, err
	}
	if len(records) == 0 {
		return core.CreditFailure{}, fmt.Errorf("%w: %s", core.ErrFailureNotFound, id)
	}
	return records[0].toDomain(), nil
}

func (s *FailureStore) ListFailures(ctx context.Context, filter core.FailureFilter) ([]core.CreditFailure, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: failure store is not configured")
	}
	page := filter.Page.Normalize()
	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at ASC"),
		repository.OrderBy("id ASC"),
		repository.SelectPaginate(page.Limit, page.Offset),
	}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		selectors = append(selectors, repository.SelectBy("user_id", "=", userID))
	}

	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	out := make([]core.CreditFailure, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *FailureStore) ResolveFailure(ctx context.Context, id string, resolvedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: failure store is not configured")
	}
	if resolvedAt.IsZero() {
		resolvedAt = time.Now().UTC()
	}
	res, err := s.db.NewUpdate().
		Model((*creditFailureRecord)(nil)).
		Set("status = ?", string(core.FailureStatusResolved)).
		Set("resolved_at = ?", resolvedAt.UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", core.ErrFailureNotFound, id)
	}
	return nil
}

func newCreditFailureRecord(failure core.CreditFailure) (*creditFailureRecord, error) {
	snapshot, err := encodeSnapshot(failure.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: encode failure snapshot: %w", err)
	}
	occurredAt := failure.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = failure.CreatedAt
	}
	return &creditFailureRecord{
		ID:         failure.ID,
		EventID:    strings.TrimSpace(failure.EventID),
		EventType:  strings.TrimSpace(failure.EventType),
		UserID:     strings.TrimSpace(failure.UserID),
		MerchantID: strings.TrimSpace(failure.MerchantID),
		ProductID:  strings.TrimSpace(failure.ProductID),
		Amount:     failure.Amount,
		OccurredAt: occurredAt.UTC(),
		Snapshot:   snapshot,
		Error:      failure.Error,
		Status:     string(failure.Status),
		CreatedAt:  failure.CreatedAt.UTC(),
		ResolvedAt: copyTimePointer(failure.ResolvedAt),
	}, nil
}

func (r *creditFailureRecord) toDomain() core.CreditFailure {
	if r == nil {
		return core.CreditFailure{}
	}
	return core.CreditFailure{
		ID:         r.ID,
		EventID:    r.EventID,
		EventType:  r.EventType,
		UserID:     r.UserID,
		MerchantID: r.MerchantID,
		ProductID:  r.ProductID,
		Amount:     r.Amount,
		OccurredAt: r.OccurredAt,
		Snapshot:   decodeSnapshot(r.Snapshot),
		Error:      r.Error,
		Status:     core.FailureStatus(r.Status),
		CreatedAt:  r.CreatedAt,
		ResolvedAt: copyTimePointer(r.ResolvedAt),
	}
}
