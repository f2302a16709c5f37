package repository

import (
	"context"
	"errors"
	"time"

	"github.com/antarasi/authgate"
	goerrors "github.com/goliatone/go-errors"
	gorepo "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users implements authgate.UserStore on a generic bun repository
type Users struct {
	gorepo.Repository[*authgate.User]
	db *bun.DB
}

var _ authgate.UserStore = (*Users)(nil)

// NewUsers creates a users store over db. Lookups by identifier use
// the email column.
func NewUsers(db *bun.DB) *Users {
	repo := gorepo.NewRepository[*authgate.User](db, gorepo.ModelHandlers[*authgate.User]{
		NewRecord: func() *authgate.User { return &authgate.User{} },
		GetID: func(u *authgate.User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *authgate.User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &Users{
		Repository: repo,
		db:         db,
	}
}

// Create inserts user. The email check and the insert share a
// transaction.
func (r *Users) Create(ctx context.Context, user *authgate.User) (*authgate.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	now := time.Now().UTC()
	user.CreatedAt = &now
	user.UpdatedAt = &now

	var created *authgate.User
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := r.emailFreeTx(ctx, tx, user.Email, uuid.Nil); err != nil {
			return err
		}

		var err error
		created, err = r.Repository.CreateTx(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, storeError(err, "failed to insert user")
	}

	return created, nil
}

func (r *Users) Find(ctx context.Context, q authgate.UserQuery) ([]*authgate.User, int, error) {
	users := []*authgate.User{}

	query := r.db.NewSelect().Model(&users)
	if q.Email != "" {
		query = query.Where("?TableAlias.email = ?", q.Email)
	}

	// bun treats a zero limit as unbounded
	if q.Limit <= 0 {
		total, err := query.Count(ctx)
		if err != nil {
			return nil, 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count users")
		}
		return users, total, nil
	}

	total, err := query.
		OrderExpr("?TableAlias.created_at ASC, ?TableAlias.email ASC").
		Limit(q.Limit).
		Offset(q.Skip).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to find users")
	}

	return users, total, nil
}

func (r *Users) Get(ctx context.Context, id uuid.UUID) (*authgate.User, error) {
	return r.getTx(ctx, r.db, id)
}

func (r *Users) GetByEmail(ctx context.Context, email string) (*authgate.User, error) {
	user, err := r.Repository.GetByIdentifierTx(ctx, r.db, authgate.NormalizeEmail(email))
	if err != nil {
		return nil, storeError(err, "failed to get user by email")
	}
	return user, nil
}

// Update writes email and password hash of an existing user
func (r *Users) Update(ctx context.Context, user *authgate.User) (*authgate.User, error) {
	var updated *authgate.User
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := r.getTx(ctx, tx, user.ID)
		if err != nil {
			return err
		}

		if err := r.emailFreeTx(ctx, tx, user.Email, user.ID); err != nil {
			return err
		}

		now := time.Now().UTC()
		user.CreatedAt = current.CreatedAt
		user.UpdatedAt = &now

		if _, err := r.Repository.UpdateTx(ctx, tx, user, gorepo.UpdateByID(user.ID.String())); err != nil {
			return err
		}

		updated, err = r.getTx(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return nil, storeError(err, "failed to update user")
	}

	return updated, nil
}

func (r *Users) Remove(ctx context.Context, id uuid.UUID) (*authgate.User, error) {
	user, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := r.db.NewDelete().Model(user).WherePK().Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove user")
	}

	return user, nil
}

func (r *Users) getTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*authgate.User, error) {
	user := new(authgate.User)
	err := tx.NewSelect().
		Model(user).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, storeError(err, "failed to get user")
	}
	return user, nil
}

// emailFreeTx fails with ErrEmailExists when email belongs to a user
// other than self
func (r *Users) emailFreeTx(ctx context.Context, tx bun.IDB, email string, self uuid.UUID) error {
	existing, err := r.Repository.GetByIdentifierTx(ctx, tx, authgate.NormalizeEmail(email))
	if err != nil {
		if gorepo.IsRecordNotFound(err) {
			return nil
		}
		return err
	}

	if existing.ID != self {
		return authgate.ErrEmailExists
	}

	return nil
}

func storeError(err error, message string) error {
	switch {
	case errors.Is(err, authgate.ErrEmailExists), errors.Is(err, authgate.ErrRecordNotFound):
		return err
	case gorepo.IsRecordNotFound(err):
		return authgate.ErrRecordNotFound
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message)
}
