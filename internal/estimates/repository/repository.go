// Package repository provides PostgreSQL persistence for estimates.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("estimate not found")

// Estimate statuses.
const (
	StatusDraft    = "draft"
	StatusSent     = "sent"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Estimate struct {
	ID                  uuid.UUID
	EstimateNumber      string
	LeadID              uuid.UUID
	Status              string
	Notes               string
	SubtotalCents       int64
	TaxRateBps          int
	TaxCents            int64
	DepositPercent      int
	DepositCents        int64
	TotalCents          int64
	SentAt              *time.Time
	DecidedAt           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type EstimateItem struct {
	ID             uuid.UUID
	EstimateID     uuid.UUID
	Description    string
	Quantity       float64
	Unit           string
	UnitPriceCents int64
	LineTotalCents int64
	Position       int
}

// NextEstimateNumber atomically generates the next estimate number for the
// current year, e.g. EST-2026-0042.
func (r *Repository) NextEstimateNumber(ctx context.Context) (string, error) {
	year := time.Now().Year()
	var nextNum int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO document_counters (kind, year, last_number)
		VALUES ('estimate', $1, 1)
		ON CONFLICT (kind, year) DO UPDATE SET last_number = document_counters.last_number + 1
		RETURNING last_number
	`, year).Scan(&nextNum)
	if err != nil {
		return "", fmt.Errorf("failed to generate estimate number: %w", err)
	}
	return fmt.Sprintf("EST-%d-%04d", year, nextNum), nil
}

// CreateWithItems inserts an estimate and its line items in a single transaction.
func (r *Repository) CreateWithItems(ctx context.Context, estimate *Estimate, items []EstimateItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO estimates (
			estimate_number, lead_id, status, notes,
			subtotal_cents, tax_rate_bps, tax_cents, deposit_percent, deposit_cents, total_cents
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`,
		estimate.EstimateNumber, estimate.LeadID, estimate.Status, estimate.Notes,
		estimate.SubtotalCents, estimate.TaxRateBps, estimate.TaxCents,
		estimate.DepositPercent, estimate.DepositCents, estimate.TotalCents,
	).Scan(&estimate.ID, &estimate.CreatedAt, &estimate.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert estimate: %w", err)
	}

	for i := range items {
		items[i].EstimateID = estimate.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO estimate_items (estimate_id, description, quantity, unit, unit_price_cents, line_total_cents, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, items[i].EstimateID, items[i].Description, items[i].Quantity, items[i].Unit,
			items[i].UnitPriceCents, items[i].LineTotalCents, items[i].Position,
		).Scan(&items[i].ID)
		if err != nil {
			return fmt.Errorf("failed to insert estimate item: %w", err)
		}
	}

	return tx.Commit(ctx)
}

const estimateColumns = `id, estimate_number, lead_id, status, notes,
	subtotal_cents, tax_rate_bps, tax_cents, deposit_percent, deposit_cents, total_cents,
	sent_at, decided_at, created_at, updated_at`

func scanEstimate(row pgx.Row) (Estimate, error) {
	var est Estimate
	err := row.Scan(
		&est.ID, &est.EstimateNumber, &est.LeadID, &est.Status, &est.Notes,
		&est.SubtotalCents, &est.TaxRateBps, &est.TaxCents,
		&est.DepositPercent, &est.DepositCents, &est.TotalCents,
		&est.SentAt, &est.DecidedAt, &est.CreatedAt, &est.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Estimate{}, ErrNotFound
	}
	return est, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Estimate, error) {
	return scanEstimate(r.pool.QueryRow(ctx, `
		SELECT `+estimateColumns+` FROM estimates WHERE id = $1
	`, id))
}

func (r *Repository) ListItems(ctx context.Context, estimateID uuid.UUID) ([]EstimateItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, estimate_id, description, quantity, unit, unit_price_cents, line_total_cents, position
		FROM estimate_items
		WHERE estimate_id = $1
		ORDER BY position ASC
	`, estimateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]EstimateItem, 0)
	for rows.Next() {
		var item EstimateItem
		if err := rows.Scan(
			&item.ID, &item.EstimateID, &item.Description, &item.Quantity, &item.Unit,
			&item.UnitPriceCents, &item.LineTotalCents, &item.Position,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]Estimate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+estimateColumns+`
		FROM estimates
		WHERE lead_id = $1
		ORDER BY created_at DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	estimates := make([]Estimate, 0)
	for rows.Next() {
		est, err := scanEstimate(rows)
		if err != nil {
			return nil, err
		}
		estimates = append(estimates, est)
	}
	return estimates, rows.Err()
}

// MarkSent transitions a draft estimate to sent.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE estimates SET status = $1, sent_at = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, StatusSent, sentAt, id, StatusDraft)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDecision records the client's accept/decline decision.
func (r *Repository) SetDecision(ctx context.Context, id uuid.UUID, status string, decidedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE estimates SET status = $1, decided_at = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, status, decidedAt, id, StatusSent)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
