// Package repository provides PostgreSQL persistence for contracts.
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

var ErrNotFound = errors.New("contract not found")

// Contract statuses.
const (
	StatusDraft     = "draft"
	StatusSent      = "sent"
	StatusSigned    = "signed"
	StatusCancelled = "cancelled"
)

// Payment milestone kinds.
const (
	MilestoneDeposit  = "deposit"
	MilestoneProgress = "progress"
	MilestoneFinal    = "final"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Contract struct {
	ID             uuid.UUID
	ContractNumber string
	LeadID         uuid.UUID
	EstimateID     *uuid.UUID
	Status         string
	ScopeOfWork    string
	TotalCents     int64
	SignerName     string
	SentAt         *time.Time
	SignedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PaymentMilestone is one entry of a contract's payment schedule.
type PaymentMilestone struct {
	ID          uuid.UUID
	ContractID  uuid.UUID
	Kind        string
	Description string
	AmountCents int64
	Position    int
}

// NextContractNumber atomically generates the next contract number for the
// current year, e.g. CON-2026-0007.
func (r *Repository) NextContractNumber(ctx context.Context) (string, error) {
	year := time.Now().Year()
	var nextNum int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO document_counters (kind, year, last_number)
		VALUES ('contract', $1, 1)
		ON CONFLICT (kind, year) DO UPDATE SET last_number = document_counters.last_number + 1
		RETURNING last_number
	`, year).Scan(&nextNum)
	if err != nil {
		return "", fmt.Errorf("failed to generate contract number: %w", err)
	}
	return fmt.Sprintf("CON-%d-%04d", year, nextNum), nil
}

// CreateWithSchedule inserts a contract and its payment schedule in a single
// transaction.
func (r *Repository) CreateWithSchedule(ctx context.Context, contract *Contract, schedule []PaymentMilestone) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO contracts (contract_number, lead_id, estimate_id, status, scope_of_work, total_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`,
		contract.ContractNumber, contract.LeadID, contract.EstimateID,
		contract.Status, contract.ScopeOfWork, contract.TotalCents,
	).Scan(&contract.ID, &contract.CreatedAt, &contract.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert contract: %w", err)
	}

	for i := range schedule {
		schedule[i].ContractID = contract.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO contract_payment_milestones (contract_id, kind, description, amount_cents, position)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, schedule[i].ContractID, schedule[i].Kind, schedule[i].Description,
			schedule[i].AmountCents, schedule[i].Position,
		).Scan(&schedule[i].ID)
		if err != nil {
			return fmt.Errorf("failed to insert payment milestone: %w", err)
		}
	}

	return tx.Commit(ctx)
}

const contractColumns = `id, contract_number, lead_id, estimate_id, status, scope_of_work,
	total_cents, signer_name, sent_at, signed_at, created_at, updated_at`

func scanContract(row pgx.Row) (Contract, error) {
	var con Contract
	err := row.Scan(
		&con.ID, &con.ContractNumber, &con.LeadID, &con.EstimateID, &con.Status,
		&con.ScopeOfWork, &con.TotalCents, &con.SignerName,
		&con.SentAt, &con.SignedAt, &con.CreatedAt, &con.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contract{}, ErrNotFound
	}
	return con, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Contract, error) {
	return scanContract(r.pool.QueryRow(ctx, `
		SELECT `+contractColumns+` FROM contracts WHERE id = $1
	`, id))
}

func (r *Repository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]Contract, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+contractColumns+`
		FROM contracts
		WHERE lead_id = $1
		ORDER BY created_at DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contracts := make([]Contract, 0)
	for rows.Next() {
		con, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, con)
	}
	return contracts, rows.Err()
}

func (r *Repository) ListSchedule(ctx context.Context, contractID uuid.UUID) ([]PaymentMilestone, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, contract_id, kind, description, amount_cents, position
		FROM contract_payment_milestones
		WHERE contract_id = $1
		ORDER BY position ASC
	`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedule := make([]PaymentMilestone, 0)
	for rows.Next() {
		var m PaymentMilestone
		if err := rows.Scan(&m.ID, &m.ContractID, &m.Kind, &m.Description, &m.AmountCents, &m.Position); err != nil {
			return nil, err
		}
		schedule = append(schedule, m)
	}
	return schedule, rows.Err()
}

// MarkSent transitions a draft contract to sent.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contracts SET status = $1, sent_at = $2, updated_at = now()
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

// MarkSigned records the signature on a sent contract.
func (r *Repository) MarkSigned(ctx context.Context, id uuid.UUID, signerName string, signedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contracts SET status = $1, signer_name = $2, signed_at = $3, updated_at = now()
		WHERE id = $4 AND status = $5
	`, StatusSigned, signerName, signedAt, id, StatusSent)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Cancel voids a contract that has not been signed.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contracts SET status = $1, updated_at = now()
		WHERE id = $2 AND status IN ($3, $4)
	`, StatusCancelled, id, StatusDraft, StatusSent)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
