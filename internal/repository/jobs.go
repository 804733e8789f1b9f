package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiuth/recruitment-api/internal/model"
)

const jobColumns = `id, title, department, location, type, description, requirements,
		       required_documents, license_label, is_active, created_at, updated_at`

type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

// JobFilter holds query parameters for listing jobs
type JobFilter struct {
	Department      string
	Type            string
	Search          string
	IncludeInactive bool
}

// List returns catalog entries, active only unless the filter says otherwise
func (r *JobRepo) List(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if !filter.IncludeInactive {
		query += " AND is_active = true"
	}
	if filter.Department != "" {
		query += fmt.Sprintf(" AND department = $%d", argIdx)
		args = append(args, filter.Department)
		argIdx++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, filter.Type)
		argIdx++
	}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND (LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		argIdx++
	}

	query += " ORDER BY title ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// FindByID returns a single job, nil when missing
func (r *JobRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding job: %w", err)
	}
	return j, nil
}

// Create inserts a new catalog entry
func (r *JobRepo) Create(ctx context.Context, j *model.Job) (*model.Job, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO jobs (title, department, location, type, description,
		                  requirements, required_documents, license_label, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+jobColumns,
		j.Title, j.Department, j.Location, j.Type, j.Description,
		nonNil(j.Requirements), nonNil(j.RequiredDocuments), j.LicenseLabel, j.IsActive,
	)
	created, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	return created, nil
}

// Update replaces the editable fields of a job
func (r *JobRepo) Update(ctx context.Context, j *model.Job) (*model.Job, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE jobs
		SET title = $2, department = $3, location = $4, type = $5, description = $6,
		    requirements = $7, required_documents = $8, license_label = $9,
		    is_active = $10, updated_at = now()
		WHERE id = $1
		RETURNING `+jobColumns,
		j.ID, j.Title, j.Department, j.Location, j.Type, j.Description,
		nonNil(j.Requirements), nonNil(j.RequiredDocuments), j.LicenseLabel, j.IsActive,
	)
	updated, err := scanJob(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("updating job: %w", err)
	}
	return updated, nil
}

// Deactivate hides a job from the public catalog. Applications keep their snapshot.
func (r *JobRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `UPDATE jobs SET is_active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivating job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	err := row.Scan(
		&j.ID, &j.Title, &j.Department, &j.Location, &j.Type, &j.Description,
		&j.Requirements, &j.RequiredDocuments, &j.LicenseLabel, &j.IsActive,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
