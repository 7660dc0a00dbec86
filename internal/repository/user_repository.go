package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/train-ticket-market/internal/model"
)

// UserRepo loads account holders for the `me` query.  Accounts are
// reference data to this service: registration, login and sessions live in
// an external identity provider that mints the bearer tokens we verify.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// GetByID returns the user with its passport, or ErrNotFound.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	const q = `SELECT u.id, u.first_name, u.last_name, u.sex, u.date_of_birth, u.email, u.phone,
	                  p.id, p.series, p.issue_date, p.issue_place
	           FROM users u
	           JOIN passports p ON p.id = u.passport_id
	           WHERE u.id = ?`
	var u model.User
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Sex, &u.DateOfBirth, &u.Email, &u.Phone,
		&u.Passport.ID, &u.Passport.Series, &u.Passport.IssueDate, &u.Passport.IssuePlace,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

// LoadAll returns every account holder, for seeding the in-memory user
// directory at startup.
func (r *UserRepo) LoadAll(ctx context.Context) ([]model.User, error) {
	const q = `SELECT u.id, u.first_name, u.last_name, u.sex, u.date_of_birth, u.email, u.phone,
	                  p.id, p.series, p.issue_date, p.issue_place
	           FROM users u
	           JOIN passports p ON p.id = u.passport_id
	           ORDER BY u.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.User, 0, 32)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(
			&u.ID, &u.FirstName, &u.LastName, &u.Sex, &u.DateOfBirth, &u.Email, &u.Phone,
			&u.Passport.ID, &u.Passport.Series, &u.Passport.IssueDate, &u.Passport.IssuePlace,
		); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
