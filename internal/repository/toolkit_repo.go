package repository

import (
	"context"
	"errors"
	"time"

	"fieldops/internal/apierror"
	"fieldops/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ToolkitRepository defines the data access contract for the inventory
// aggregate. Services depend on this interface, not on the concrete GORM
// implementation, enabling clean unit testing via stubs.
//
// Save and RemoveVariant are the units of atomicity: one call persists the
// toolkit and all nested variants/ledger entries in a single transaction,
// guarded by the aggregate version. No partial writes are exposed to callers.
type ToolkitRepository interface {
	Create(ctx context.Context, t *model.Toolkit) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Toolkit, error)
	// FindByName is a case-insensitive exact match on the toolkit name.
	FindByName(ctx context.Context, name string) (*model.Toolkit, error)
	// FindAll returns every toolkit, newest-created first.
	FindAll(ctx context.Context) ([]model.Toolkit, error)
	// SearchByName is a case-insensitive substring match, newest-created first.
	SearchByName(ctx context.Context, term string) ([]model.Toolkit, error)
	// Save upserts the whole aggregate. Returns apierror.ErrVersionConflict
	// when the stored version no longer matches t.Version.
	Save(ctx context.Context, t *model.Toolkit) error
	// RemoveVariant deletes one variant row (its ledger cascades) and persists
	// the recomputed aggregate fields, all under the same version guard.
	RemoveVariant(ctx context.Context, t *model.Toolkit, variantID uuid.UUID) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

type toolkitRepo struct{ db *gorm.DB }

func NewToolkitRepository(db *gorm.DB) ToolkitRepository { return &toolkitRepo{db: db} }

// preloaded attaches the variant and ledger associations. Variants come back
// in insertion order (first_added_date); ledger rows in append order — the
// newest-first contract is applied at read time, not here.
func (r *toolkitRepo) preloaded(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("variants.first_added_date ASC")
		}).
		Preload("Variants.History", func(db *gorm.DB) *gorm.DB {
			return db.Order("stock_history.created_at ASC")
		})
}

func (r *toolkitRepo) Create(ctx context.Context, t *model.Toolkit) error {
	err := r.db.WithContext(ctx).Create(t).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apierror.ErrDuplicateName
	}
	return err
}

func (r *toolkitRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Toolkit, error) {
	var t model.Toolkit
	err := r.preloaded(r.db.WithContext(ctx)).First(&t, "toolkits.id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierror.ErrToolkitNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *toolkitRepo) FindByName(ctx context.Context, name string) (*model.Toolkit, error) {
	var t model.Toolkit
	err := r.preloaded(r.db.WithContext(ctx)).
		Where("LOWER(name) = LOWER(?)", name).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierror.ErrToolkitNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *toolkitRepo) FindAll(ctx context.Context) ([]model.Toolkit, error) {
	var toolkits []model.Toolkit
	err := r.preloaded(r.db.WithContext(ctx)).
		Order("created_at DESC").
		Find(&toolkits).Error
	return toolkits, err
}

func (r *toolkitRepo) SearchByName(ctx context.Context, term string) ([]model.Toolkit, error) {
	var toolkits []model.Toolkit
	err := r.preloaded(r.db.WithContext(ctx)).
		Where("name ILIKE ?", "%"+term+"%").
		Order("created_at DESC").
		Find(&toolkits).Error
	return toolkits, err
}

func (r *toolkitRepo) Save(ctx context.Context, t *model.Toolkit) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.saveAggregateTx(tx, t); err != nil {
			return err
		}
		for i := range t.Variants {
			if err := saveVariantTx(tx, &t.Variants[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *toolkitRepo) RemoveVariant(ctx context.Context, t *model.Toolkit, variantID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.saveAggregateTx(tx, t); err != nil {
			return err
		}
		res := tx.Delete(&model.Variant{}, "id = ? AND toolkit_id = ?", variantID, t.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apierror.ErrVariantNotFound
		}
		// Remaining variants keep their recomputed status
		for i := range t.Variants {
			if err := saveVariantTx(tx, &t.Variants[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *toolkitRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.Toolkit{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierror.ErrToolkitNotFound
	}
	return nil
}

// saveAggregateTx writes the toolkit row under the optimistic version guard.
// Zero rows affected means another writer got there first.
func (r *toolkitRepo) saveAggregateTx(tx *gorm.DB, t *model.Toolkit) error {
	res := tx.Model(&model.Toolkit{}).
		Where("id = ? AND version = ?", t.ID, t.Version).
		Updates(map[string]interface{}{
			"name":           t.Name,
			"type":           t.Type,
			"total_stock":    t.TotalStock,
			"overall_status": t.OverallStatus,
			"version":        t.Version + 1,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return apierror.ErrDuplicateName
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierror.ErrVersionConflict
	}
	t.Version++
	return nil
}

// saveVariantTx upserts the variant row and inserts any ledger entries
// appended since load (id still unset). Existing entries are never touched.
func saveVariantTx(tx *gorm.DB, v *model.Variant) error {
	if err := tx.Omit("History").
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(v).Error; err != nil {
		return err
	}
	for j := range v.History {
		e := &v.History[j]
		if e.ID != uuid.Nil {
			continue
		}
		if err := tx.Create(e).Error; err != nil {
			return err
		}
	}
	return nil
}
