package authgate

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Failure kinds, exposed as the TextCode of every error below.
const (
	KindInvalidCredentials = "InvalidCredentials"
	KindInvalidStrategy    = "InvalidStrategy"
	KindNoAuthToken        = "NoAuthToken"
	KindNotAuthenticated   = "NotAuthenticated"
	KindMalformed          = "Malformed"
	KindInvalidSignature   = "InvalidSignature"
	KindExpired            = "Expired"
	KindInvalidClaims      = "InvalidClaims"
	KindSubjectNotFound    = "SubjectNotFound"
	KindForbidden          = "Forbidden"
	KindNotFound           = "NotFound"
	KindMethodNotAllowed   = "MethodNotAllowed"
	KindBadRequest         = "BadRequest"
	KindConflict           = "Conflict"
	KindGeneral            = "GeneralError"
)

// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike
var ErrInvalidCredentials = goerrors.New("Invalid login", goerrors.CategoryAuth).
	WithTextCode(KindInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidStrategy is returned when a login names an unsupported strategy
var ErrInvalidStrategy = goerrors.New("Invalid authentication strategy", goerrors.CategoryAuth).
	WithTextCode(KindInvalidStrategy).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoAuthToken is returned when a protected call carries no token
var ErrNoAuthToken = goerrors.New("No auth token", goerrors.CategoryAuth).
	WithTextCode(KindNoAuthToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrNotAuthenticated is returned when no verified identity is bound to the call
var ErrNotAuthenticated = goerrors.New("You are not authenticated", goerrors.CategoryAuth).
	WithTextCode(KindNotAuthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed token has the wrong shape or does not decode
var ErrTokenMalformed = goerrors.New("jwt malformed", goerrors.CategoryAuth).
	WithTextCode(KindMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenInvalidSignature token decodes but the signature does not match
var ErrTokenInvalidSignature = goerrors.New("invalid signature", goerrors.CategoryAuth).
	WithTextCode(KindInvalidSignature).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenInvalidAlgorithm token is signed with an algorithm we do not accept
var ErrTokenInvalidAlgorithm = goerrors.New("invalid algorithm", goerrors.CategoryAuth).
	WithTextCode(KindInvalidSignature).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired signature is valid but exp is in the past
var ErrTokenExpired = goerrors.New("jwt expired", goerrors.CategoryAuth).
	WithTextCode(KindExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenInvalidIssuer iss claim does not match
var ErrTokenInvalidIssuer = goerrors.New("jwt issuer invalid", goerrors.CategoryAuth).
	WithTextCode(KindInvalidClaims).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenInvalidAudience aud claim does not match
var ErrTokenInvalidAudience = goerrors.New("jwt audience invalid", goerrors.CategoryAuth).
	WithTextCode(KindInvalidClaims).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenInvalidClaims any other registered claim failed validation
var ErrTokenInvalidClaims = goerrors.New("jwt claims invalid", goerrors.CategoryAuth).
	WithTextCode(KindInvalidClaims).
	WithCode(goerrors.CodeUnauthorized)

// ErrSubjectNotFound token is valid but its subject no longer exists
var ErrSubjectNotFound = goerrors.New("User not found", goerrors.CategoryAuth).
	WithTextCode(KindSubjectNotFound).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden identity may not act on the target record
var ErrForbidden = goerrors.New("You do not have the permissions to access this", goerrors.CategoryAuthz).
	WithTextCode(KindForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrPageNotFound is the routing level not found error
var ErrPageNotFound = goerrors.New("Page not found", goerrors.CategoryNotFound).
	WithTextCode(KindNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrRecordNotFound is returned by stores for missing records
var ErrRecordNotFound = goerrors.New("No record found", goerrors.CategoryNotFound).
	WithTextCode(KindNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrMethodNotAllowed the service does not implement the method
var ErrMethodNotAllowed = goerrors.New("Method is not supported by this endpoint", goerrors.CategoryBadInput).
	WithTextCode(KindMethodNotAllowed).
	WithCode(http.StatusMethodNotAllowed)

// ErrEmailExists registration with an email already on record
var ErrEmailExists = goerrors.New("email already exists", goerrors.CategoryConflict).
	WithTextCode(KindConflict).
	WithCode(goerrors.CodeConflict)

// ErrNoEmptyString empty passwords are never hashed
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(KindBadRequest).
	WithCode(goerrors.CodeBadRequest)

// WireError is the body both transports send for a failed call
type WireError struct {
	Name      string         `json:"name"`
	Message   string         `json:"message"`
	Code      int            `json:"code"`
	ClassName string         `json:"className"`
	Errors    map[string]any `json:"errors,omitempty"`
}

var wireNames = map[int][2]string{
	http.StatusBadRequest:          {"BadRequest", "bad-request"},
	http.StatusUnauthorized:        {"NotAuthenticated", "not-authenticated"},
	http.StatusForbidden:           {"Forbidden", "forbidden"},
	http.StatusNotFound:            {"NotFound", "not-found"},
	http.StatusMethodNotAllowed:    {"MethodNotAllowed", "method-not-allowed"},
	http.StatusConflict:            {"Conflict", "conflict"},
	http.StatusUnprocessableEntity: {"Unprocessable", "unprocessable"},
	http.StatusUpgradeRequired:     {"UpgradeRequired", "upgrade-required"},
	http.StatusInternalServerError: {"GeneralError", "general-error"},
}

// ToWireError maps any error into the user safe wire body. Errors that
// are not rich errors never leak their text.
func ToWireError(err error) *WireError {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if !errors.As(err, &richErr) || richErr == nil {
		return newWireError(http.StatusInternalServerError, "An unexpected server error occurred")
	}

	code := richErr.Code
	if _, ok := wireNames[code]; !ok {
		code = http.StatusInternalServerError
	}

	message := richErr.Message
	if code == http.StatusInternalServerError {
		message = "An unexpected server error occurred"
	}

	out := newWireError(code, message)
	if fields, ok := richErr.Metadata["errors"].(map[string]any); ok && len(fields) > 0 {
		out.Errors = fields
	}
	return out
}

func newWireError(code int, message string) *WireError {
	names := wireNames[code]
	return &WireError{
		Name:      names[0],
		Message:   message,
		Code:      code,
		ClassName: names[1],
	}
}

// KindOf returns the failure kind carried by err
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if errors.As(err, &richErr) && richErr != nil && richErr.TextCode != "" {
		return richErr.TextCode
	}
	return KindGeneral
}

// StatusOf returns the HTTP equivalent status for err
func StatusOf(err error) int {
	return ToWireError(err).Code
}

// IsNotFound reports whether err is a missing record or route
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRecordNotFound) || errors.Is(err, ErrPageNotFound) {
		return true
	}
	return goerrors.IsNotFound(err)
}

func withMetadata(base *goerrors.Error, meta map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	return clone.WithMetadata(meta)
}
