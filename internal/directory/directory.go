// Package directory is the read side of the shared employee directory. The
// guard consults it only to resolve credentials and a human-readable identity
// for block records and audit entries; it never writes.
package directory

import (
	"context"

	"github.com/opsdeck/authguard/internal/database"
	"github.com/opsdeck/authguard/internal/models"
)

// Repository resolves identities from the relational directory
type Repository struct {
	db *database.DB
}

// NewRepository creates a directory Repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// GetByEmail resolves an identity by its login email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	query := `
		SELECT id, email, name, role, password_hash, active, created_at
		FROM employees
		WHERE email = $1
	`

	var id models.Identity
	err := r.db.Pool.QueryRow(ctx, query, email).Scan(
		&id.ID,
		&id.Email,
		&id.Name,
		&id.Role,
		&id.PasswordHash,
		&id.Active,
		&id.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &id, nil
}

// GetByID resolves an identity by its numeric id
func (r *Repository) GetByID(ctx context.Context, userID int64) (*models.Identity, error) {
	query := `
		SELECT id, email, name, role, password_hash, active, created_at
		FROM employees
		WHERE id = $1
	`

	var id models.Identity
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&id.ID,
		&id.Email,
		&id.Name,
		&id.Role,
		&id.PasswordHash,
		&id.Active,
		&id.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &id, nil
}
