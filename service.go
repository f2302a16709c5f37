package authgate

import (
	"context"
	"encoding/json"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

// UserPayload is the body of create, update and patch on users
type UserPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will validate a full payload
func (r UserPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
	)
}

// ValidatePartial validates only the fields that are set
func (r UserPayload) ValidatePartial() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Length(8, 128)),
	)
}

// UsersService exposes the user store as a resource service
type UsersService struct {
	store      UserStore
	paginate   Paginate
	bcryptCost int
	useHashid  bool
	logger     Logger
}

var _ Service = (*UsersService)(nil)

// NewUsersService creates the users resource service
func NewUsersService(store UserStore, cfg Config) *UsersService {
	return &UsersService{
		store:      store,
		paginate:   cfg.GetPaginate(),
		bcryptCost: cfg.GetBcryptCost(),
		logger:     newDefLogger("authgate.users"),
	}
}

func (s *UsersService) WithLogger(logger Logger) *UsersService {
	s.logger = normalizeLogger(logger, "authgate.users")
	return s
}

// WithHashid derives user ids from the email instead of random uuids
func (s *UsersService) WithHashid(enabled bool) *UsersService {
	s.useHashid = enabled
	return s
}

func (s *UsersService) Find(ctx context.Context, params *Params) (any, error) {
	q, err := s.userQuery(params)
	if err != nil {
		return nil, err
	}

	users, total, err := s.store.Find(ctx, q)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to find users")
	}

	if users == nil {
		users = []*User{}
	}

	return &Page[*User]{
		Total: total,
		Limit: q.Limit,
		Skip:  q.Skip,
		Data:  users,
	}, nil
}

func (s *UsersService) Get(ctx context.Context, id string, _ *Params) (any, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, uid)
}

func (s *UsersService) Create(ctx context.Context, data json.RawMessage, _ *Params) (any, error) {
	payload, err := decodePayload(data)
	if err != nil {
		return nil, err
	}

	payload.Email = NormalizeEmail(payload.Email)
	if err := payload.Validate(); err != nil {
		return nil, validationError(err)
	}

	if err := s.ensureEmailFree(ctx, payload.Email, uuid.Nil); err != nil {
		return nil, err
	}

	hash, err := HashPassword(payload.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:           uuid.New(),
		Email:        payload.Email,
		PasswordHash: hash,
	}

	if s.useHashid {
		if id, err := hashid.NewUUID(payload.Email); err == nil {
			user.ID = id
		}
	}

	created, err := s.store.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created", "user_id", created.ID.String())
	return created, nil
}

func (s *UsersService) Update(ctx context.Context, id string, data json.RawMessage, _ *Params) (any, error) {
	payload, err := decodePayload(data)
	if err != nil {
		return nil, err
	}

	payload.Email = NormalizeEmail(payload.Email)
	if err := payload.Validate(); err != nil {
		return nil, validationError(err)
	}

	return s.save(ctx, id, payload)
}

func (s *UsersService) Patch(ctx context.Context, id string, data json.RawMessage, _ *Params) (any, error) {
	payload, err := decodePayload(data)
	if err != nil {
		return nil, err
	}

	payload.Email = NormalizeEmail(payload.Email)
	if err := payload.ValidatePartial(); err != nil {
		return nil, validationError(err)
	}

	return s.save(ctx, id, payload)
}

func (s *UsersService) Remove(ctx context.Context, id string, _ *Params) (any, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	removed, err := s.store.Remove(ctx, uid)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user removed", "user_id", removed.ID.String())
	return removed, nil
}

func (s *UsersService) save(ctx context.Context, id string, payload *UserPayload) (*User, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	user, err := s.store.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	if payload.Email != "" && payload.Email != user.Email {
		if err := s.ensureEmailFree(ctx, payload.Email, user.ID); err != nil {
			return nil, err
		}
		user.Email = payload.Email
	}

	if payload.Password != "" {
		hash, err := HashPassword(payload.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	return s.store.Update(ctx, user)
}

func (s *UsersService) ensureEmailFree(ctx context.Context, email string, owner uuid.UUID) error {
	existing, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email")
	}

	if existing != nil && existing.ID != owner {
		return ErrEmailExists
	}
	return nil
}

func (s *UsersService) userQuery(params *Params) (UserQuery, error) {
	q := UserQuery{Limit: s.paginate.Default}
	if params == nil || params.Query == nil {
		return q, nil
	}

	if raw, ok := params.Query["$limit"]; ok && raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, withMetadata(badRequest("invalid $limit"), map[string]any{
				"errors": map[string]any{"$limit": "must be a non negative integer"},
			})
		}
		q.Limit = n
	}

	if q.Limit > s.paginate.Max {
		q.Limit = s.paginate.Max
	}

	if raw, ok := params.Query["$skip"]; ok && raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, withMetadata(badRequest("invalid $skip"), map[string]any{
				"errors": map[string]any{"$skip": "must be a non negative integer"},
			})
		}
		q.Skip = n
	}

	q.Email = NormalizeEmail(params.Query["email"])
	return q, nil
}

func decodePayload(data json.RawMessage) (*UserPayload, error) {
	payload := &UserPayload{}
	if len(data) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, badRequest("invalid JSON body")
	}
	return payload, nil
}

func parseID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, withMetadata(ErrRecordNotFound, map[string]any{"id": id})
	}
	return uid, nil
}

func badRequest(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithTextCode(KindBadRequest).
		WithCode(goerrors.CodeBadRequest)
}

func validationError(err error) error {
	fields := map[string]any{}
	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			fields[field] = ferr.Error()
		}
	}

	return badRequest("Invalid user data").WithMetadata(map[string]any{"errors": fields})
}
