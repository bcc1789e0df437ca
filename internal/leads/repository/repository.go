// Package repository provides PostgreSQL persistence for leads and clients.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Lead is a row in the clients table. Leads and converted clients share the
// table; ProjectStatus tracks where they are in the pipeline.
type Lead struct {
	ID                 uuid.UUID
	Name               string
	Email              string
	Phone              string
	Address            string
	ProjectType        string
	ProjectDescription string
	BudgetRange        string
	Timeline           string
	LeadSource         string
	LeadScore          int
	ProjectStatus      string
	AssignedRep        *string
	IsActive           bool
	IPAddress          *string
	UserAgent          *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type CreateLeadParams struct {
	Name               string
	Email              string
	Phone              string
	Address            string
	ProjectType        string
	ProjectDescription string
	BudgetRange        string
	Timeline           string
	LeadSource         string
	LeadScore          int
	ProjectStatus      string
	IPAddress          *string
	UserAgent          *string
}

const leadColumns = `id, name, email, phone, address, project_type, project_description,
	budget_range, timeline, lead_source, lead_score, project_status, assigned_rep,
	is_active, ip_address, user_agent, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.Name, &lead.Email, &lead.Phone, &lead.Address,
		&lead.ProjectType, &lead.ProjectDescription, &lead.BudgetRange, &lead.Timeline,
		&lead.LeadSource, &lead.LeadScore, &lead.ProjectStatus, &lead.AssignedRep,
		&lead.IsActive, &lead.IPAddress, &lead.UserAgent,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO clients (
			name, email, phone, address, project_type, project_description,
			budget_range, timeline, lead_source, lead_score, project_status,
			ip_address, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+leadColumns,
		params.Name, params.Email, params.Phone, params.Address,
		params.ProjectType, params.ProjectDescription, params.BudgetRange, params.Timeline,
		params.LeadSource, params.LeadScore, params.ProjectStatus,
		params.IPAddress, params.UserAgent,
	)
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM clients WHERE id = $1 AND is_active = true
	`, id)
	return scanLead(row)
}

type ListLeadsParams struct {
	ProjectStatus string
	MinScore      *int
	Limit         int
	Offset        int
}

func (r *Repository) List(ctx context.Context, params ListLeadsParams) ([]Lead, error) {
	conditions := []string{"is_active = true"}
	args := []any{}

	if params.ProjectStatus != "" {
		args = append(args, params.ProjectStatus)
		conditions = append(conditions, fmt.Sprintf("project_status = $%d", len(args)))
	}
	if params.MinScore != nil {
		args = append(args, *params.MinScore)
		conditions = append(conditions, fmt.Sprintf("lead_score >= $%d", len(args)))
	}

	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, params.Offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM clients
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, leadColumns, strings.Join(conditions, " AND "), len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

type UpdateLeadParams struct {
	Name               *string
	Email              *string
	Phone              *string
	Address            *string
	ProjectType        *string
	ProjectDescription *string
	BudgetRange        *string
	Timeline           *string
	ProjectStatus      *string
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error) {
	sets := []string{"updated_at = now()"}
	args := []any{}

	addSet := func(column string, value *string) {
		if value != nil {
			args = append(args, *value)
			sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
		}
	}
	addSet("name", params.Name)
	addSet("email", params.Email)
	addSet("phone", params.Phone)
	addSet("address", params.Address)
	addSet("project_type", params.ProjectType)
	addSet("project_description", params.ProjectDescription)
	addSet("budget_range", params.BudgetRange)
	addSet("timeline", params.Timeline)
	addSet("project_status", params.ProjectStatus)

	args = append(args, id)
	query := fmt.Sprintf(`
		UPDATE clients SET %s
		WHERE id = $%d AND is_active = true
		RETURNING %s
	`, strings.Join(sets, ", "), len(args), leadColumns)

	return scanLead(r.pool.QueryRow(ctx, query, args...))
}

func (r *Repository) UpdateScore(ctx context.Context, id uuid.UUID, score int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients SET lead_score = $1, updated_at = now()
		WHERE id = $2 AND is_active = true
	`, score, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients SET project_status = $1, updated_at = now()
		WHERE id = $2 AND is_active = true
	`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignRep records which sales rep owns the lead.
func (r *Repository) AssignRep(ctx context.Context, id uuid.UUID, rep string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients SET assigned_rep = $1, assigned_at = now(), updated_at = now()
		WHERE id = $2 AND is_active = true
	`, rep, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes a lead. Historical tasks and notifications keep
// their references.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients SET is_active = false, updated_at = now()
		WHERE id = $1 AND is_active = true
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
