package data

import (
	"context"

	"gorm.io/gorm"

	"github.com/bytevault/bytevault/internal/pkg/database"
	"github.com/bytevault/bytevault/internal/storage/biz"
)

// Transactor implements biz.Transactor on top of the database wrapper. Repo
// calls inside fn pick the transaction up from the context.
type Transactor struct {
	db *database.DB
}

func NewTransactor(db *database.DB) biz.Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		return fn(database.ContextWithTransaction(ctx, tx))
	})
}
