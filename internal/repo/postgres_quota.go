package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/model"
)

type PostgresQuotaStore struct {
	db *sql.DB
}

func NewPostgresQuotaStore(db *sql.DB) *PostgresQuotaStore {
	return &PostgresQuotaStore{db: db}
}

func (s *PostgresQuotaStore) GetUsage(ctx context.Context, tenantID, userID string) (*model.QuotaUsage, error) {
	var (
		u   model.QuotaUsage
		raw []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, user_id, period, counters, updated_at
		FROM quota_usage
		WHERE tenant_id = $1 AND user_id = $2
	`, tenantID, userID).Scan(&u.TenantID, &u.UserID, &u.Period, &raw, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &u.Counters); err != nil {
			return nil, fmt.Errorf("decode quota counters: %w", err)
		}
	}
	if u.Counters == nil {
		u.Counters = map[model.Resource]int{}
	}
	return &u, nil
}

// IncrementUsage is a single read-modify-write transaction per tenant-user
// so concurrent steps for the same user never lose updates. A stored
// record from an older period is replaced wholesale, which makes the
// increment itself perform the monthly rollover.
func (s *PostgresQuotaStore) IncrementUsage(ctx context.Context, tenantID, userID, period string, r model.Resource, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be > 0")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		storedPeriod string
		raw          []byte
	)
	err = tx.QueryRowContext(ctx, `
		SELECT period, counters FROM quota_usage
		WHERE tenant_id = $1 AND user_id = $2
		FOR UPDATE
	`, tenantID, userID).Scan(&storedPeriod, &raw)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		counters := map[model.Resource]int{r: amount}
		buf, err := json.Marshal(counters)
		if err != nil {
			return err
		}
		// Another first-use writer may have slipped in; falling back to a
		// plain counter bump keeps both increments.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO quota_usage (tenant_id, user_id, period, counters, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (tenant_id, user_id) DO UPDATE
			SET counters = jsonb_set(
			        quota_usage.counters,
			        ARRAY[$5::text],
			        (COALESCE(quota_usage.counters->>$5, '0')::int + $6)::text::jsonb
			    ),
			    updated_at = now()
			WHERE quota_usage.period = $3
		`, tenantID, userID, period, buf, string(r), amount); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		counters := map[model.Resource]int{}
		if storedPeriod == period && len(raw) > 0 {
			if err := json.Unmarshal(raw, &counters); err != nil {
				return fmt.Errorf("decode quota counters: %w", err)
			}
		}
		counters[r] += amount

		buf, err := json.Marshal(counters)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE quota_usage
			SET period = $3, counters = $4, updated_at = now()
			WHERE tenant_id = $1 AND user_id = $2
		`, tenantID, userID, period, buf); err != nil {
			return err
		}
	}

	return tx.Commit()
}
