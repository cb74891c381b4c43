package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/model"
)

type PostgresCampaignStore struct {
	db *sql.DB
}

func NewPostgresCampaignStore(db *sql.DB) *PostgresCampaignStore {
	return &PostgresCampaignStore{db: db}
}

func (s *PostgresCampaignStore) Get(ctx context.Context, tenantID, campaignID string) (*model.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, owner_id, name, status, steps, stats, created_at, updated_at
		FROM campaigns
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, campaignID)

	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCampaignNotFound
	}
	return c, err
}

func (s *PostgresCampaignStore) ListActive(ctx context.Context, tenantID string) ([]model.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, owner_id, name, status, steps, stats, created_at, updated_at
		FROM campaigns
		WHERE tenant_id = $1 AND status = 'active'
		ORDER BY created_at ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *PostgresCampaignStore) IncrementStats(ctx context.Context, tenantID, campaignID string, processed int, sentByChannel map[model.Channel]int, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var raw []byte
	err = tx.QueryRowContext(ctx, `
		SELECT stats FROM campaigns
		WHERE tenant_id = $1 AND id = $2
		FOR UPDATE
	`, tenantID, campaignID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCampaignNotFound
	}
	if err != nil {
		return err
	}

	var stats model.CampaignStats
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &stats); err != nil {
			return fmt.Errorf("decode campaign stats: %w", err)
		}
	}

	stats.Sent += processed
	if stats.SentByChannel == nil {
		stats.SentByChannel = make(map[model.Channel]int)
	}
	for ch, n := range sentByChannel {
		stats.SentByChannel[ch] += n
	}
	t := at.UTC()
	stats.LastProcessedAt = &t

	buf, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE campaigns
		SET stats = $3, updated_at = $4
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, campaignID, buf, t); err != nil {
		return err
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var (
		c        model.Campaign
		status   string
		stepsRaw []byte
		statsRaw []byte
	)
	if err := row.Scan(
		&c.ID,
		&c.TenantID,
		&c.OwnerID,
		&c.Name,
		&status,
		&stepsRaw,
		&statsRaw,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.Status = model.CampaignStatus(status)

	if len(stepsRaw) > 0 {
		if err := json.Unmarshal(stepsRaw, &c.Steps); err != nil {
			return nil, fmt.Errorf("decode campaign steps: %w", err)
		}
	}
	if len(statsRaw) > 0 {
		if err := json.Unmarshal(statsRaw, &c.Stats); err != nil {
			return nil, fmt.Errorf("decode campaign stats: %w", err)
		}
	}
	return &c, nil
}
