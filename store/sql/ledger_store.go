package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-payledger/core"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// LedgerStore applies credits with one database transaction per event: the
// processed-event claim, the transaction append and a version-checked balance
// update commit together or not at all.
type LedgerStore struct {
	db   *bun.DB
	repo repository.Repository[*transactionRecord]
}

func NewLedgerStore(db *bun.DB) (*LedgerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*transactionRecord](db, transactionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid ledger transaction repository wiring: %w", err)
		}
	}
	return &LedgerStore{db: db, repo: repo}, nil
}

func (s *LedgerStore) ApplyCredit(ctx context.Context, entry core.CreditEntry) (core.CreditResult, error) {
	if s == nil || s.db == nil || s.repo == nil {
		return core.CreditResult{}, fmt.Errorf("sqlstore: ledger store is not configured")
	}
	entry.EventID = strings.TrimSpace(entry.EventID)
	entry.UserID = strings.TrimSpace(entry.UserID)
	if entry.EventID == "" || entry.UserID == "" {
		return core.CreditResult{}, fmt.Errorf("sqlstore: event id and user id are required")
	}
	now := entry.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	transactionID := strings.TrimSpace(entry.TransactionID)
	if parseUUID(transactionID) == uuid.Nil {
		transactionID = uuid.NewString()
	}

	var result core.CreditResult
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		claim := &processedEventRecord{
			EventID:       entry.EventID,
			TransactionID: transactionID,
			UserID:        entry.UserID,
			CreatedAt:     now,
		}
		res, err := tx.NewInsert().
			Model(claim).
			On("CONFLICT (event_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := rowsAffected(res)
		if err != nil {
			return err
		}
		if affected == 0 {
			duplicate, dupErr := s.loadDuplicate(ctx, tx, entry.EventID)
			if dupErr != nil {
				return dupErr
			}
			result = duplicate
			return nil
		}

		inserted, err := s.repo.CreateTx(ctx, tx, newTransactionRecord(transactionID, entry, now))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: event %s", core.ErrBalanceConflict, entry.EventID)
			}
			return err
		}

		account, err := s.ensureAccount(ctx, tx, entry.UserID, now)
		if err != nil {
			return err
		}
		nextBalance := account.TokenBalance.Add(entry.Amount)
		update, err := tx.NewUpdate().
			Model((*accountRecord)(nil)).
			Set("token_balance = ?", nextBalance).
			Set("version = ?", account.Version+1).
			Set("updated_at = ?", now).
			Where("user_id = ?", entry.UserID).
			Where("version = ?", account.Version).
			Exec(ctx)
		if err != nil {
			return err
		}
		updated, err := rowsAffected(update)
		if err != nil {
			return err
		}
		if updated == 0 {
			return fmt.Errorf("%w: account %s moved past version %d", core.ErrBalanceConflict, entry.UserID, account.Version)
		}

		account.TokenBalance = nextBalance
		account.Version++
		account.UpdatedAt = now
		result = core.CreditResult{
			Account:     account.toDomain(),
			Transaction: inserted.toDomain(),
		}
		return nil
	})
	if err != nil {
		return core.CreditResult{}, err
	}
	return result, nil
}

func (s *LedgerStore) GetAccount(ctx context.Context, userID string) (core.UserAccount, error) {
	if s == nil || s.db == nil {
		return core.UserAccount{}, fmt.Errorf("sqlstore: ledger store is not configured")
	}
	record, err := selectAccount(ctx, s.db, strings.TrimSpace(userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.UserAccount{}, fmt.Errorf("%w: %s", core.ErrAccountNotFound, userID)
		}
		return core.UserAccount{}, err
	}
	return record.toDomain(), nil
}

func (s *LedgerStore) ListTransactions(ctx context.Context, userID string, page core.Page) ([]core.TransactionRecord, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: ledger store is not configured")
	}
	page = page.Normalize()
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", strings.TrimSpace(userID)),
		repository.OrderBy("occurred_at ASC"),
		repository.OrderBy("id ASC"),
		repository.SelectPaginate(page.Limit, page.Offset),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.TransactionRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *LedgerStore) loadDuplicate(ctx context.Context, tx bun.Tx, eventID string) (core.CreditResult, error) {
	transaction := &transactionRecord{}
	if err := tx.NewSelect().
		Model(transaction).
		Where("?TableAlias.event_id = ?", eventID).
		Limit(1).
		Scan(ctx); err != nil {
		return core.CreditResult{}, fmt.Errorf("sqlstore: load transaction for processed event %s: %w", eventID, err)
	}
	account, err := selectAccount(ctx, tx, transaction.UserID)
	if err != nil {
		return core.CreditResult{}, fmt.Errorf("sqlstore: load account for processed event %s: %w", eventID, err)
	}
	return core.CreditResult{
		Account:     account.toDomain(),
		Transaction: transaction.toDomain(),
		Duplicate:   true,
	}, nil
}

func (s *LedgerStore) ensureAccount(ctx context.Context, tx bun.Tx, userID string, now time.Time) (*accountRecord, error) {
	_, err := tx.NewInsert().
		Model(&accountRecord{
			UserID:       userID,
			TokenBalance: decimal.Zero,
			Version:      0,
			CreatedAt:    now,
			UpdatedAt:    now,
		}).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return selectAccount(ctx, tx, userID)
}

func selectAccount(ctx context.Context, db bun.IDB, userID string) (*accountRecord, error) {
	record := &accountRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func newTransactionRecord(id string, entry core.CreditEntry, now time.Time) *transactionRecord {
	raw := entry.Snapshot.Raw
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	occurredAt := entry.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	return &transactionRecord{
		ID:                 id,
		UserID:             entry.UserID,
		EventID:            entry.EventID,
		EventType:          strings.TrimSpace(entry.EventType),
		ProviderSessionID:  strings.TrimSpace(entry.Snapshot.SessionID),
		MerchantID:         strings.TrimSpace(entry.MerchantID),
		ProductID:          strings.TrimSpace(entry.ProductID),
		Amount:             entry.Amount,
		PaymentAmountMinor: entry.Snapshot.AmountMinor,
		Currency:           strings.TrimSpace(entry.Snapshot.Currency),
		OccurredAt:         occurredAt.UTC(),
		RawSnapshot:        string(raw),
		CreatedAt:          now.UTC(),
	}
}

func (r *transactionRecord) toDomain() core.TransactionRecord {
	if r == nil {
		return core.TransactionRecord{}
	}
	record := core.TransactionRecord{
		ID:                 r.ID,
		UserID:             r.UserID,
		EventID:            r.EventID,
		EventType:          r.EventType,
		ProviderSessionID:  r.ProviderSessionID,
		MerchantID:         r.MerchantID,
		ProductID:          r.ProductID,
		Amount:             r.Amount,
		PaymentAmountMinor: r.PaymentAmountMinor,
		Currency:           r.Currency,
		OccurredAt:         r.OccurredAt,
		CreatedAt:          r.CreatedAt,
	}
	if strings.TrimSpace(r.RawSnapshot) != "" {
		record.RawSnapshot = json.RawMessage(r.RawSnapshot)
	}
	return record
}

func (r *accountRecord) toDomain() core.UserAccount {
	if r == nil {
		return core.UserAccount{}
	}
	return core.UserAccount{
		UserID:       r.UserID,
		TokenBalance: r.TokenBalance,
		Version:      r.Version,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
