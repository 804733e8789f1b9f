package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiuth/recruitment-api/internal/model"
)

var pg = goqu.Dialect("postgres")

var applicationColumns = []any{
	"id", "reference_number", "idempotency_key", "job_id",
	"full_name", "email", "phone", "date_of_birth", "state_of_origin", "lga", "nin_number", "address",
	"position", "department", "specialty",
	"qualification", "year_of_graduation", "license_number", "institution",
	"cv_url", "photo_url", "status", "created_at", "updated_at",
}

const applicationSelect = `
	SELECT id, reference_number, idempotency_key, job_id,
	       full_name, email, phone, date_of_birth, state_of_origin, lga, nin_number, address,
	       position, department, specialty,
	       qualification, year_of_graduation, license_number, institution,
	       cv_url, photo_url, status, created_at, updated_at
	FROM applications`

// Sortable admin columns
var applicationSorts = map[string]string{
	"created_at":       "created_at",
	"full_name":        "full_name",
	"position":         "position",
	"department":       "department",
	"status":           "status",
	"reference_number": "reference_number",
}

type ApplicationRepo struct {
	pool *pgxpool.Pool
}

func NewApplicationRepo(pool *pgxpool.Pool) *ApplicationRepo {
	return &ApplicationRepo{pool: pool}
}

// ApplicationFilter drives the admin list and export
type ApplicationFilter struct {
	Search     string
	Status     string
	Department string
	Sort       string
	Order      string
}

// CreateWithNotifications inserts the application and its outbox rows in one transaction
func (r *ApplicationRepo) CreateWithNotifications(ctx context.Context, a *model.Application, notes []model.Notification) (*model.Application, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO applications (
			reference_number, idempotency_key, job_id,
			full_name, email, phone, date_of_birth, state_of_origin, lga, nin_number, address,
			position, department, specialty,
			qualification, year_of_graduation, license_number, institution,
			cv_url, photo_url, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id, reference_number, idempotency_key, job_id,
		          full_name, email, phone, date_of_birth, state_of_origin, lga, nin_number, address,
		          position, department, specialty,
		          qualification, year_of_graduation, license_number, institution,
		          cv_url, photo_url, status, created_at, updated_at
	`,
		a.ReferenceNumber, a.IdempotencyKey, a.JobID,
		a.FullName, a.Email, a.Phone, a.DateOfBirth, a.StateOfOrigin, a.LGA, a.NINNumber, a.Address,
		a.Position, a.Department, a.Specialty,
		a.Qualification, a.YearOfGraduation, a.LicenseNumber, a.Institution,
		a.CVURL, a.PhotoURL, a.Status,
	)
	created, err := scanApplication(row)
	if err != nil {
		switch uniqueViolation(err) {
		case referenceConstraint:
			return nil, ErrDuplicateReference
		case idempotencyConstraint:
			return nil, ErrDuplicateIdempotencyKey
		}
		return nil, fmt.Errorf("creating application: %w", err)
	}

	for _, n := range notes {
		if err := insertNotification(ctx, tx, &created.ID, n); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return created, nil
}

func (r *ApplicationRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	return r.findOne(ctx, applicationSelect+` WHERE id = $1`, id)
}

// FindByReference is the public status lookup
func (r *ApplicationRepo) FindByReference(ctx context.Context, reference string) (*model.Application, error) {
	return r.findOne(ctx, applicationSelect+` WHERE reference_number = $1`, strings.ToUpper(strings.TrimSpace(reference)))
}

func (r *ApplicationRepo) FindByIdempotencyKey(ctx context.Context, key string) (*model.Application, error) {
	return r.findOne(ctx, applicationSelect+` WHERE idempotency_key = $1`, key)
}

// FindLatestByEmail backs the applicant dashboard. Emails compare case-insensitively.
func (r *ApplicationRepo) FindLatestByEmail(ctx context.Context, email string) (*model.Application, error) {
	return r.findOne(ctx, applicationSelect+`
		WHERE lower(email) = $1
		ORDER BY created_at DESC
		LIMIT 1`, model.NormalizeEmail(email))
}

func (r *ApplicationRepo) findOne(ctx context.Context, query string, args ...any) (*model.Application, error) {
	a, err := scanApplication(r.pool.QueryRow(ctx, query, args...))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding application: %w", err)
	}
	return a, nil
}

// List returns applications matching the admin filter
func (r *ApplicationRepo) List(ctx context.Context, filter ApplicationFilter) ([]model.Application, error) {
	query, args, err := buildListQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("building application query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	defer rows.Close()

	apps := []model.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning application row: %w", err)
		}
		apps = append(apps, *a)
	}
	return apps, rows.Err()
}

func buildListQuery(filter ApplicationFilter) (string, []any, error) {
	ds := pg.From("applications").Select(applicationColumns...)

	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + s + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("full_name").ILike(pattern),
			goqu.C("email").ILike(pattern),
			goqu.C("reference_number").ILike(pattern),
			goqu.C("position").ILike(pattern),
		))
	}

	switch filter.Status {
	case "":
	case model.StatusPending:
		ds = ds.Where(goqu.Or(goqu.C("status").IsNull(), goqu.C("status").Eq(model.StatusPending)))
	default:
		ds = ds.Where(goqu.C("status").Eq(filter.Status))
	}

	if filter.Department != "" {
		ds = ds.Where(goqu.C("department").Eq(filter.Department))
	}

	col, ok := applicationSorts[filter.Sort]
	if !ok {
		col = "created_at"
	}
	var order exp.OrderedExpression
	if strings.EqualFold(filter.Order, "asc") {
		order = goqu.I(col).Asc()
	} else {
		order = goqu.I(col).Desc()
	}
	ds = ds.Order(order, goqu.I("id").Asc())

	return ds.Prepared(true).ToSQL()
}

// UpdateStatus moves the given applications to status and records one
// history row per changed application, all in one transaction. Only the
// listed rows are touched; the rows are returned as stored.
func (r *ApplicationRepo) UpdateStatus(ctx context.Context, ids []uuid.UUID, status, changedBy string) ([]model.Application, error) {
	if len(ids) == 0 {
		return []model.Application{}, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the rows and capture the previous status
	rows, err := tx.Query(ctx, `
		SELECT id, COALESCE(status, 'Pending') FROM applications
		WHERE id = ANY($1)
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching current status: %w", err)
	}
	previous := make(map[uuid.UUID]string, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var from string
		if err := rows.Scan(&id, &from); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning current status: %w", err)
		}
		previous[id] = from
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetching current status: %w", err)
	}

	query, args, err := buildStatusUpdate(ids, status)
	if err != nil {
		return nil, fmt.Errorf("building status update: %w", err)
	}
	rows, err = tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("updating application status: %w", err)
	}
	updated := []model.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning updated application: %w", err)
		}
		updated = append(updated, *a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("updating application status: %w", err)
	}

	for _, a := range updated {
		from := previous[a.ID]
		if from == status {
			continue
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO status_history (application_id, from_status, to_status, changed_by)
			VALUES ($1, $2, $3, $4)
		`, a.ID, from, status, changedBy)
		if err != nil {
			return nil, fmt.Errorf("recording status history: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return updated, nil
}

func buildStatusUpdate(ids []uuid.UUID, status string) (string, []any, error) {
	idValues := make([]string, len(ids))
	for i, id := range ids {
		idValues[i] = id.String()
	}
	return pg.Update("applications").
		Set(goqu.Record{"status": status, "updated_at": goqu.L("now()")}).
		Where(goqu.C("id").In(idValues)).
		Returning(applicationColumns...).
		Prepared(true).
		ToSQL()
}

// GetHistory returns the audit trail for an application, oldest first
func (r *ApplicationRepo) GetHistory(ctx context.Context, applicationID uuid.UUID) ([]model.StatusHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, application_id, from_status, to_status, changed_by, changed_at
		FROM status_history
		WHERE application_id = $1
		ORDER BY changed_at ASC
	`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("fetching status history: %w", err)
	}
	defer rows.Close()

	history := []model.StatusHistory{}
	for rows.Next() {
		var h model.StatusHistory
		if err := rows.Scan(&h.ID, &h.ApplicationID, &h.FromStatus, &h.ToStatus, &h.ChangedBy, &h.ChangedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// CountByStatus counts applications per status, NULL folded into Pending
func (r *ApplicationRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT COALESCE(status, 'Pending'), COUNT(*) FROM applications
		GROUP BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("counting by status: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{
		model.StatusPending:     0,
		model.StatusShortlisted: 0,
		model.StatusRejected:    0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		counts[status] += count
	}
	return counts, rows.Err()
}

// CountByDepartment returns the busiest departments, empty ones labelled Unspecified
func (r *ApplicationRepo) CountByDepartment(ctx context.Context, limit int) ([]model.DepartmentCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT COALESCE(NULLIF(department, ''), 'Unspecified') AS dept, COUNT(*) AS n
		FROM applications
		GROUP BY dept
		ORDER BY n DESC, dept ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("counting by department: %w", err)
	}
	defer rows.Close()

	depts := []model.DepartmentCount{}
	for rows.Next() {
		var d model.DepartmentCount
		if err := rows.Scan(&d.Department, &d.Count); err != nil {
			return nil, fmt.Errorf("scanning department row: %w", err)
		}
		depts = append(depts, d)
	}
	return depts, rows.Err()
}

func scanApplication(row pgx.Row) (*model.Application, error) {
	var a model.Application
	err := row.Scan(
		&a.ID, &a.ReferenceNumber, &a.IdempotencyKey, &a.JobID,
		&a.FullName, &a.Email, &a.Phone, &a.DateOfBirth, &a.StateOfOrigin, &a.LGA, &a.NINNumber, &a.Address,
		&a.Position, &a.Department, &a.Specialty,
		&a.Qualification, &a.YearOfGraduation, &a.LicenseNumber, &a.Institution,
		&a.CVURL, &a.PhotoURL, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
