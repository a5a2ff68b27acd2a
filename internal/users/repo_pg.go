package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PGRepo struct {
	DB *sql.DB
}

const userColumns = `id, email, name, password_hash, picture_url, profile, created_at, updated_at`

func (r *PGRepo) Create(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, name, password_hash, picture_url, profile, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	profile, err := json.Marshal(user.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, query,
		user.ID,
		NormalizeEmail(user.Email),
		user.Name,
		nullableString(user.PasswordHash),
		nullableString(user.PictureURL),
		string(profile),
		user.CreatedAt,
		user.UpdatedAt,
	)
	return translateErr(err)
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	query := `
SELECT ` + userColumns + `
FROM users
WHERE id = $1
LIMIT 1`
	return scanUser(r.DB.QueryRowContext(ctx, query, userID))
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	query := `
SELECT ` + userColumns + `
FROM users
WHERE email = $1
LIMIT 1`
	return scanUser(r.DB.QueryRowContext(ctx, query, NormalizeEmail(email)))
}

func (r *PGRepo) Update(ctx context.Context, user User) error {
	const query = `
UPDATE users SET
  email = $2,
  name = $3,
  password_hash = $4,
  picture_url = $5,
  profile = $6,
  updated_at = $7
WHERE id = $1`
	profile, err := json.Marshal(user.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, query,
		user.ID,
		NormalizeEmail(user.Email),
		user.Name,
		nullableString(user.PasswordHash),
		nullableString(user.PictureURL),
		string(profile),
		user.UpdatedAt,
	)
	if err != nil {
		return translateErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (User, error) {
	var user User
	var passwordHash sql.NullString
	var pictureURL sql.NullString
	var profileRaw []byte
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&passwordHash,
		&pictureURL,
		&profileRaw,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	if passwordHash.Valid {
		user.PasswordHash = passwordHash.String
	}
	if pictureURL.Valid {
		user.PictureURL = pictureURL.String
	}
	if len(profileRaw) > 0 {
		if err := json.Unmarshal(profileRaw, &user.Profile); err != nil {
			return User{}, fmt.Errorf("decode profile: %w", err)
		}
	}
	return user, nil
}

func translateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailTaken
	}
	return err
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
