package repository

import (
	"context"

	"github.com/antarasi/authgate"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// CreateSchema creates the users table and its indexes when missing
func CreateSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().
		Model((*authgate.User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create users table")
	}

	if _, err := db.NewCreateIndex().
		Model((*authgate.User)(nil)).
		Index("users_created_at_idx").
		Column("created_at").
		IfNotExists().
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create users index")
	}

	return nil
}
