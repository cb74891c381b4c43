package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/model"
)

type PostgresAccountStore struct {
	db *sql.DB
}

func NewPostgresAccountStore(db *sql.DB) *PostgresAccountStore {
	return &PostgresAccountStore{db: db}
}

func (s *PostgresAccountStore) GetPlan(ctx context.Context, tenantID, userID string) (string, error) {
	var plan string
	err := s.db.QueryRowContext(ctx, `
		SELECT plan FROM subscriptions
		WHERE tenant_id = $1 AND user_id = $2
	`, tenantID, userID).Scan(&plan)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return plan, nil
}

func (s *PostgresAccountStore) ListTenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT tenant_id FROM campaigns
		ORDER BY tenant_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PostgresAccountStore) GetEmailIntegration(ctx context.Context, tenantID string) (*model.EmailIntegration, error) {
	var (
		in        model.EmailIntegration
		username  sql.NullString
		password  sql.NullString
		signature sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT enabled, host, port, username, password, from_address, signature
		FROM email_integrations
		WHERE tenant_id = $1
	`, tenantID).Scan(&in.Enabled, &in.Host, &in.Port, &username, &password, &in.From, &signature)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	in.Username = username.String
	in.Password = password.String
	in.Signature = signature.String
	return &in, nil
}
