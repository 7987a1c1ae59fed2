package user

import (
	"context"

	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/pagination"
)

// Filter represents criteria for filtering users.
type Filter struct {
	Email  *string
	Status *Status
}

// WithEmail sets the email filter.
func (f Filter) WithEmail(email string) Filter {
	f.Email = &email
	return f
}

// WithStatus sets the status filter.
func (f Filter) WithStatus(status Status) Filter {
	f.Status = &status
	return f
}

// Repository defines the interface for user persistence.
type Repository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id shared.ID) (*User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// List lists users with filters and pagination.
	List(ctx context.Context, filter Filter, page pagination.Pagination) (pagination.Result[*User], error)

	// Update updates a user.
	Update(ctx context.Context, user *User) error

	// Delete deletes a user.
	Delete(ctx context.Context, id shared.ID) error

	// ExistsByEmail checks whether a user with the email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Count counts users matching the filter.
	Count(ctx context.Context, filter Filter) (int64, error)
}
