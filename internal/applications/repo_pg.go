package applications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres. The status history and attachment
// are JSONB columns on the application row so one UPDATE writes them together.
type PGRepo struct {
	DB *sql.DB
}

const applicationColumns = `id, owner_id, company_name, job_role, current_status, status_history, attachment, job_description, salary, location, job_url, application_date, created_at, updated_at`

var pgSortColumns = map[SortField]string{
	SortCreatedAt:       "created_at",
	SortUpdatedAt:       "updated_at",
	SortApplicationDate: "application_date",
	SortCompanyName:     "lower(company_name)",
	SortJobRole:         "lower(job_role)",
	SortCurrentStatus:   "current_status",
}

// Create inserts a new application.
func (r *PGRepo) Create(ctx context.Context, app Application) error {
	const query = `
INSERT INTO job_applications (
    id,
    owner_id,
    company_name,
    job_role,
    current_status,
    status_history,
    attachment,
    job_description,
    salary,
    location,
    job_url,
    application_date,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	history, attachment, err := encodeDocumentParts(app)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(
		ctx,
		query,
		app.ID,
		app.OwnerID,
		app.CompanyName,
		app.JobRole,
		string(app.CurrentStatus),
		history,
		attachment,
		app.JobDescription,
		app.Salary,
		app.Location,
		app.JobURL,
		app.ApplicationDate,
		app.CreatedAt,
		app.UpdatedAt,
	)
	return storageErr("insert application", err)
}

// GetByID fetches an application by id for its owner.
func (r *PGRepo) GetByID(ctx context.Context, ownerID, id string) (Application, error) {
	query := `
SELECT ` + applicationColumns + `
FROM job_applications
WHERE owner_id = $1 AND id = $2
LIMIT 1`
	app, err := scanApplication(r.DB.QueryRowContext(ctx, query, ownerID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Application{}, ErrNotFound
		}
		return Application{}, storageErr("get application", err)
	}
	return app, nil
}

// ListByOwner lists applications filtered by status and ordered per opts.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]Application, error) {
	opts = opts.normalized()
	column, ok := pgSortColumns[opts.SortField]
	if !ok {
		return nil, invalidField("sortBy", "unsupported sort field")
	}
	direction := "DESC"
	if opts.Ascending {
		direction = "ASC"
	}

	query := fmt.Sprintf(`
SELECT %s
FROM job_applications
WHERE owner_id = $1 AND ($2 = '' OR current_status = $2)
ORDER BY %s %s, id %s
LIMIT $3 OFFSET $4`, applicationColumns, column, direction, direction)

	rows, err := r.DB.QueryContext(ctx, query, ownerID, string(opts.Status), opts.Limit, opts.Offset)
	if err != nil {
		return nil, storageErr("list applications", err)
	}
	defer rows.Close()

	out := []Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, storageErr("scan application", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list applications", err)
	}
	return out, nil
}

// Update locks the row, applies fn and writes the full document back in one transaction.
func (r *PGRepo) Update(ctx context.Context, ownerID, id string, fn MutateFunc) (Application, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Application{}, storageErr("begin update", err)
	}
	defer tx.Rollback()

	query := `
SELECT ` + applicationColumns + `
FROM job_applications
WHERE owner_id = $1 AND id = $2
FOR UPDATE`
	app, err := scanApplication(tx.QueryRowContext(ctx, query, ownerID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Application{}, ErrNotFound
		}
		return Application{}, storageErr("load application", err)
	}

	if err := fn(&app); err != nil {
		return Application{}, err
	}

	history, attachment, err := encodeDocumentParts(app)
	if err != nil {
		return Application{}, err
	}
	const update = `
UPDATE job_applications SET
    company_name = $3,
    job_role = $4,
    current_status = $5,
    status_history = $6,
    attachment = $7,
    job_description = $8,
    salary = $9,
    location = $10,
    job_url = $11,
    updated_at = $12
WHERE owner_id = $1 AND id = $2`
	if _, err := tx.ExecContext(ctx, update,
		ownerID,
		id,
		app.CompanyName,
		app.JobRole,
		string(app.CurrentStatus),
		history,
		attachment,
		app.JobDescription,
		app.Salary,
		app.Location,
		app.JobURL,
		app.UpdatedAt,
	); err != nil {
		return Application{}, storageErr("update application", err)
	}
	if err := tx.Commit(); err != nil {
		return Application{}, storageErr("commit update", err)
	}
	return app, nil
}

// Delete removes an application owned by ownerID.
func (r *PGRepo) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM job_applications WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return storageErr("delete application", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("delete application", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus groups the owner's applications by current status.
func (r *PGRepo) CountByStatus(ctx context.Context, ownerID string) (StatusCounts, error) {
	const query = `
SELECT current_status, COUNT(*)
FROM job_applications
WHERE owner_id = $1
GROUP BY current_status`
	rows, err := r.DB.QueryContext(ctx, query, ownerID)
	if err != nil {
		return StatusCounts{}, storageErr("count applications", err)
	}
	defer rows.Close()

	counts := StatusCounts{ByStatus: make(map[Status]int)}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return StatusCounts{}, storageErr("scan counts", err)
		}
		counts.ByStatus[Status(status)] = n
		counts.Total += n
	}
	if err := rows.Err(); err != nil {
		return StatusCounts{}, storageErr("count applications", err)
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (Application, error) {
	var app Application
	var status string
	var historyRaw []byte
	var attachmentRaw []byte
	if err := row.Scan(
		&app.ID,
		&app.OwnerID,
		&app.CompanyName,
		&app.JobRole,
		&status,
		&historyRaw,
		&attachmentRaw,
		&app.JobDescription,
		&app.Salary,
		&app.Location,
		&app.JobURL,
		&app.ApplicationDate,
		&app.CreatedAt,
		&app.UpdatedAt,
	); err != nil {
		return Application{}, err
	}
	app.CurrentStatus = Status(status)

	var events []StatusEvent
	if len(historyRaw) > 0 {
		if err := json.Unmarshal(historyRaw, &events); err != nil {
			return Application{}, fmt.Errorf("decode status history: %w", err)
		}
	}
	app.History = NewHistory(events)

	if len(attachmentRaw) > 0 && string(attachmentRaw) != "null" {
		var att Attachment
		if err := json.Unmarshal(attachmentRaw, &att); err != nil {
			return Application{}, fmt.Errorf("decode attachment: %w", err)
		}
		app.Attachment = &att
	}
	return app, nil
}

func encodeDocumentParts(app Application) (string, any, error) {
	history, err := json.Marshal(app.History.Events())
	if err != nil {
		return "", nil, fmt.Errorf("encode status history: %w", err)
	}
	var attachment any
	if app.Attachment != nil {
		raw, err := json.Marshal(app.Attachment)
		if err != nil {
			return "", nil, fmt.Errorf("encode attachment: %w", err)
		}
		attachment = string(raw)
	}
	return string(history), attachment, nil
}

var _ Repo = (*PGRepo)(nil)
