// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/escrowlabs/escrowd/internal/models"
)

// Store defines the interface for escrow persistence operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the ledger or service layers.
type Store interface {
	// SaveProject upserts a project snapshot keyed by its id.
	SaveProject(ctx context.Context, project models.Project) error

	// GetProject retrieves a project snapshot by id.
	GetProject(ctx context.Context, id uint64) (models.Project, error)

	// ListProjects returns all persisted project snapshots ordered by id.
	ListProjects(ctx context.Context) ([]models.Project, error)

	// AppendEvent records one audit event. Events are append-only.
	AppendEvent(ctx context.Context, ev models.Event) error

	// ListEventsByProject returns a project's events oldest first.
	ListEventsByProject(ctx context.Context, projectID uint64) ([]models.Event, error)

	// CreateUser persists a new registered user.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves a user by email.
	// Returns (nil, nil) if no such user exists.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves a user by id.
	// Returns (nil, nil) if no such user exists.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Close releases any resources held by the store.
	Close() error
}
