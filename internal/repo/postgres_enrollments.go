package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/model"
)

const dueEnrollmentColumns = `id, campaign_id, tenant_id, prospect, status, current_step,
	       next_step_at, last_sent_at, completed_at, history, created_at, updated_at`

type PostgresEnrollmentStore struct {
	db *sql.DB
}

func NewPostgresEnrollmentStore(db *sql.DB) *PostgresEnrollmentStore {
	return &PostgresEnrollmentStore{db: db}
}

func (s *PostgresEnrollmentStore) ListDue(ctx context.Context, campaignID string, now time.Time, limit int) ([]model.Enrollment, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+dueEnrollmentColumns+`
		FROM enrollments
		WHERE campaign_id = $1
		  AND status = 'active'
		  AND (next_step_at IS NULL OR next_step_at <= $2)
		ORDER BY next_step_at ASC NULLS FIRST
		LIMIT $3
	`, campaignID, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEnrollments(rows)
}

// ClaimDue locks due rows with SKIP LOCKED and flips them to processing
// before the transaction commits, so a concurrent claim sees them neither
// active nor unlocked.
func (s *PostgresEnrollmentStore) ClaimDue(ctx context.Context, campaignID string, now time.Time, limit int) ([]model.Enrollment, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT `+dueEnrollmentColumns+`
		FROM enrollments
		WHERE campaign_id = $1
		  AND status = 'active'
		  AND (next_step_at IS NULL OR next_step_at <= $2)
		ORDER BY next_step_at ASC NULLS FIRST
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, campaignID, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, err := collectEnrollments(rows)
	if err != nil {
		return nil, err
	}

	if len(out) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	claimedAt := now.UTC()
	for _, e := range out {
		if _, err := tx.ExecContext(ctx, `
			UPDATE enrollments
			SET status = 'processing', updated_at = $2
			WHERE id = $1
		`, e.ID, claimedAt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Status = model.EnrollmentProcessing
		out[i].UpdatedAt = claimedAt
	}
	return out, nil
}

// Release undoes a claim that produced no advance. The status guard keeps
// it from clobbering a completion written in the meantime.
func (s *PostgresEnrollmentStore) Release(ctx context.Context, enrollmentID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE enrollments
		SET status = 'active', updated_at = now()
		WHERE id = $1 AND status = 'processing'
	`, enrollmentID)
	return err
}

// ApplyAdvance writes the whole mutable slice of the enrollment in one
// statement, so an interrupted step never leaves the step pointer and its
// history entry out of sync.
func (s *PostgresEnrollmentStore) ApplyAdvance(ctx context.Context, e *model.Enrollment) error {
	history := e.History
	if history == nil {
		history = map[int]model.HistoryEntry{}
	}
	historyRaw, err := json.Marshal(history)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE enrollments
		SET status = $2,
		    current_step = $3,
		    next_step_at = $4,
		    last_sent_at = $5,
		    completed_at = $6,
		    history = $7,
		    updated_at = now()
		WHERE id = $1
	`,
		e.ID,
		string(e.Status),
		e.CurrentStep,
		nullTime(e.NextStepAt),
		nullTime(e.LastSentAt),
		nullTime(e.CompletedAt),
		historyRaw,
	)
	return err
}

func collectEnrollments(rows *sql.Rows) ([]model.Enrollment, error) {
	var out []model.Enrollment
	for rows.Next() {
		var (
			e           model.Enrollment
			status      string
			prospectRaw []byte
			historyRaw  []byte
			nextStepAt  sql.NullTime
			lastSentAt  sql.NullTime
			completedAt sql.NullTime
		)
		if err := rows.Scan(
			&e.ID,
			&e.CampaignID,
			&e.TenantID,
			&prospectRaw,
			&status,
			&e.CurrentStep,
			&nextStepAt,
			&lastSentAt,
			&completedAt,
			&historyRaw,
			&e.CreatedAt,
			&e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		e.Status = model.EnrollmentStatus(status)

		if nextStepAt.Valid {
			t := nextStepAt.Time
			e.NextStepAt = &t
		}
		if lastSentAt.Valid {
			t := lastSentAt.Time
			e.LastSentAt = &t
		}
		if completedAt.Valid {
			t := completedAt.Time
			e.CompletedAt = &t
		}
		if len(prospectRaw) > 0 {
			if err := json.Unmarshal(prospectRaw, &e.Prospect); err != nil {
				return nil, fmt.Errorf("decode prospect for %s: %w", e.ID, err)
			}
		}
		if len(historyRaw) > 0 {
			if err := json.Unmarshal(historyRaw, &e.History); err != nil {
				return nil, fmt.Errorf("decode history for %s: %w", e.ID, err)
			}
		}

		out = append(out, e)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
