package authgate

import (
	"context"
	"errors"

	"github.com/google/uuid"
	goerrors "github.com/goliatone/go-errors"
)

// UserProvider is the local strategy credential verifier. It also
// resolves token subjects back to live identities.
type UserProvider struct {
	store      UserStore
	bcryptCost int
	logger     Logger
}

var _ IdentityProvider = (*UserProvider)(nil)

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserStore) *UserProvider {
	return &UserProvider{
		store:      store,
		bcryptCost: DefaultBcryptCost,
		logger:     newDefLogger("authgate.user_provider"),
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = normalizeLogger(l, "authgate.user_provider")
	return u
}

// WithBcryptCost matches the unknown email comparison to the cost
// passwords are hashed with
func (u *UserProvider) WithBcryptCost(cost int) *UserProvider {
	u.bcryptCost = cost
	return u
}

// VerifyIdentity will find the user, compare to the password, and return
// identity. Unknown emails and wrong passwords fail the same way.
func (u *UserProvider) VerifyIdentity(ctx context.Context, email, password string) (Identity, error) {
	user, err := u.store.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if IsNotFound(err) {
			_ = ComparePasswordAndHash(password, dummyHash(u.bcryptCost))
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during verification")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			u.logger.Error("password comparison failed", "error", err)
		}
		return nil, ErrInvalidCredentials
	}

	return user.Identity(), nil
}

// FindIdentityByID resolves a token subject. Missing or unparsable ids
// return ErrSubjectNotFound.
func (u *UserProvider) FindIdentityByID(ctx context.Context, id string) (Identity, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrSubjectNotFound
	}

	user, err := u.store.Get(ctx, uid)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrSubjectNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve token subject")
	}

	return user.Identity(), nil
}
