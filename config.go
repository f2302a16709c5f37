package authgate

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/golang-jwt/jwt/v5"
)

// Defaults applied by AuthConfig getters when a field is left empty.
const (
	DefaultSigningMethod = "HS256"
	DefaultIssuer        = "authgate"
	DefaultAudience      = "https://yourdomain.com"
	DefaultTokenLifetime = 24 * time.Hour
	DefaultAuthScheme    = "Bearer"
	DefaultBcryptCost    = 10
	DefaultPageSize      = 10
	DefaultMaxPageSize   = 50
)

// Paginate bounds find results
type Paginate struct {
	Default int `yaml:"default" json:"default"`
	Max     int `yaml:"max" json:"max"`
}

// AuthConfig is the YAML backed implementation of Config
type AuthConfig struct {
	SigningKey    string        `yaml:"signing_key" json:"-"`
	SigningMethod string        `yaml:"signing_method" json:"signing_method"`
	Issuer        string        `yaml:"issuer" json:"issuer"`
	Audience      []string      `yaml:"audience" json:"audience"`
	TokenLifetime time.Duration `yaml:"token_lifetime" json:"token_lifetime"`
	AuthScheme    string        `yaml:"auth_scheme" json:"auth_scheme"`
	BcryptCost    int           `yaml:"bcrypt_cost" json:"bcrypt_cost"`
	Paginate      Paginate      `yaml:"paginate" json:"paginate"`
}

var _ Config = AuthConfig{}

func (c AuthConfig) GetSigningKey() string {
	return c.SigningKey
}

func (c AuthConfig) GetSigningMethod() string {
	if c.SigningMethod == "" {
		return DefaultSigningMethod
	}
	return c.SigningMethod
}

func (c AuthConfig) GetIssuer() string {
	if c.Issuer == "" {
		return DefaultIssuer
	}
	return c.Issuer
}

func (c AuthConfig) GetAudience() []string {
	if len(c.Audience) == 0 {
		return []string{DefaultAudience}
	}
	return c.Audience
}

func (c AuthConfig) GetTokenLifetime() time.Duration {
	if c.TokenLifetime == 0 {
		return DefaultTokenLifetime
	}
	return c.TokenLifetime
}

func (c AuthConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return DefaultAuthScheme
	}
	return c.AuthScheme
}

func (c AuthConfig) GetBcryptCost() int {
	if c.BcryptCost == 0 {
		return DefaultBcryptCost
	}
	return c.BcryptCost
}

func (c AuthConfig) GetPaginate() Paginate {
	p := c.Paginate
	if p.Default <= 0 {
		p.Default = DefaultPageSize
	}
	if p.Max <= 0 {
		p.Max = DefaultMaxPageSize
	}
	if p.Default > p.Max {
		p.Default = p.Max
	}
	return p
}

// Validate checks the configuration can be used to sign tokens
func (c AuthConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.SigningMethod, validation.In("", "HS256", "HS384", "HS512")),
		validation.Field(&c.TokenLifetime, validation.Min(time.Duration(0))),
		validation.Field(&c.BcryptCost, validation.Min(0), validation.Max(31)),
	)
}

func signingMethod(name string) (jwt.SigningMethod, bool) {
	method, ok := jwt.GetSigningMethod(name).(*jwt.SigningMethodHMAC)
	if !ok || method == nil {
		return nil, false
	}
	return method, true
}
