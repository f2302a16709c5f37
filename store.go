package authgate

import (
	"context"

	"github.com/google/uuid"
)

// UserStore is the persistence collaborator behind the users service
// and the credential verifier. Lookups of missing records return
// ErrRecordNotFound.
type UserStore interface {
	Create(ctx context.Context, user *User) (*User, error)
	Find(ctx context.Context, query UserQuery) ([]*User, int, error)
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) (*User, error)
	Remove(ctx context.Context, id uuid.UUID) (*User, error)
}

// UserQuery filters and pages a Find
type UserQuery struct {
	Email string
	Limit int
	Skip  int
}

// Page is the paginated result of a find
type Page[T any] struct {
	Total int `json:"total"`
	Limit int `json:"limit"`
	Skip  int `json:"skip"`
	Data  []T `json:"data"`
}
