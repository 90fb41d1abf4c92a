package data

import (
	"context"

	"github.com/reelvault/reelvault/internal/biz"

	"gorm.io/gorm"
)

type transaction struct {
	data *Data
}

// NewTransaction exposes gorm transactions to the biz layer. The open
// transaction travels in the context so repository calls join it without
// knowing about gorm.
func NewTransaction(data *Data) biz.Transaction {
	return &transaction{data: data}
}

func (t *transaction) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}
