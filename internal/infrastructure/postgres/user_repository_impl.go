package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blanjamart/account-service/internal/domain/entity"
	"github.com/blanjamart/account-service/internal/domain/repository"
)

const userColumns = `id, username, email, password_hash, photo_url, photo_handle, level,
	fullname, phone, city, address, post_code, credit_card, gender, balance,
	created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row, u *entity.User) error {
	return row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.PhotoURL,
		&u.PhotoHandle, &u.Level, &u.Fullname, &u.Phone, &u.City, &u.Address,
		&u.PostCode, &u.CreditCard, &u.Gender, &u.Balance, &u.CreatedAt, &u.UpdatedAt)
}

// mapConstraint turns unique-constraint violations into the repository's
// duplicate sentinels. The schema is the authoritative guard; the service's
// pre-checks are only the friendly fast path.
func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch {
		case strings.Contains(pgErr.ConstraintName, "email"):
			return repository.ErrDuplicateEmail
		case strings.Contains(pgErr.ConstraintName, "username"):
			return repository.ErrDuplicateUsername
		}
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	u := &entity.User{}
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]entity.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []entity.User
	for rows.Next() {
		var u entity.User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SearchByUsername matches the fragment as a case-insensitive substring
// and orders by id so pagination is deterministic.
func (r *UserRepository) SearchByUsername(ctx context.Context, fragment string, limit, offset int) ([]entity.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username ILIKE '%' || $1 || '%'
		ORDER BY id
		LIMIT $2 OFFSET $3
	`, fragment, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []entity.User
	for rows.Next() {
		var u entity.User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	u := &entity.User{}
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	u := &entity.User{}
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) Insert(ctx context.Context, u *entity.User) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, photo_url, photo_handle, level)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, u.Username, u.Email, u.PasswordHash, u.PhotoURL, u.PhotoHandle, u.Level)

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapConstraint(err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, id string, ch repository.ProfileChanges) error {
	var (
		sets []string
		args []any
	)
	add := func(col string, v *string) {
		if v != nil {
			args = append(args, *v)
			sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
		}
	}
	add("username", ch.Username)
	add("fullname", ch.Fullname)
	add("email", ch.Email)
	add("phone", ch.Phone)
	add("city", ch.City)
	add("address", ch.Address)
	add("post_code", ch.PostCode)
	add("credit_card", ch.CreditCard)
	add("gender", ch.Gender)
	add("level", ch.Level)
	if ch.Balance.Set {
		if ch.Balance.Valid {
			args = append(args, ch.Balance.Value)
			sets = append(sets, fmt.Sprintf("balance = $%d", len(args)))
		} else {
			sets = append(sets, "balance = NULL")
		}
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	res, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapConstraint(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, email, hash string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $1, updated_at = now() WHERE email = $2
	`, hash, email)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePhoto(ctx context.Context, id, url, handle string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE users SET photo_url = $1, photo_handle = $2, updated_at = now() WHERE id = $3
	`, url, handle, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
