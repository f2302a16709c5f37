package repository

import (
	"context"
	"errors"
	"log"

	"github.com/antarasi/authgate"
	"github.com/uptrace/bun"
)

// Manager groups the stores sharing one database
type Manager struct {
	db    *bun.DB
	users *Users
}

// NewRepositoryManager creates the stores over db
func NewRepositoryManager(db *bun.DB) *Manager {
	return &Manager{
		db:    db,
		users: NewUsers(db),
	}
}

func (m *Manager) Validate() error {
	if m.db == nil {
		return errors.New("repository db should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

// Migrate creates the schema if it is missing
func (m *Manager) Migrate(ctx context.Context) error {
	return CreateSchema(ctx, m.db)
}

func (m *Manager) Users() authgate.UserStore {
	return m.users
}
