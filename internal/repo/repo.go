package repo

import (
	"context"

	"gorm.io/gorm"
)

type GormRepo struct {
	DB *gorm.DB
}

// Transaction runs fn against a repo bound to a single database transaction.
// Returning an error from fn rolls every statement back.
func (r *GormRepo) Transaction(ctx context.Context, fn func(tx *GormRepo) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepo{DB: tx})
	})
}
