package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/school_canteen/internal/models"
)

func (r *GormRepo) ListCategories(ctx context.Context) ([]models.MealCategory, error) {
	var cats []models.MealCategory
	if err := r.DB.WithContext(ctx).Order("sort_order ASC, id ASC").Find(&cats).Error; err != nil {
		return nil, err
	}
	return cats, nil
}

func (r *GormRepo) GetCategory(ctx context.Context, id uint) (*models.MealCategory, error) {
	var cat models.MealCategory
	if err := r.DB.WithContext(ctx).First(&cat, id).Error; err != nil {
		return nil, err
	}
	return &cat, nil
}

func (r *GormRepo) CreateCategory(ctx context.Context, cat *models.MealCategory) error {
	return r.DB.WithContext(ctx).Create(cat).Error
}

func (r *GormRepo) UpdateCategory(ctx context.Context, id uint, fields map[string]any) (*models.MealCategory, error) {
	if len(fields) > 0 {
		res := r.DB.WithContext(ctx).Model(&models.MealCategory{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, gorm.ErrRecordNotFound
		}
	}
	return r.GetCategory(ctx, id)
}

func (r *GormRepo) CountMealsInCategory(ctx context.Context, id uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Meal{}).Where("category_id = ?", id).Count(&n).Error
	return n, err
}

func (r *GormRepo) DeleteCategory(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&models.MealCategory{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) ListMeals(ctx context.Context, onlyAvailable bool) ([]models.Meal, error) {
	q := r.DB.WithContext(ctx).Preload("Category").Model(&models.Meal{})
	if onlyAvailable {
		q = q.Where("available = ?", true)
	}

	var meals []models.Meal
	if err := q.Order("category_id ASC, name ASC").Find(&meals).Error; err != nil {
		return nil, err
	}
	return meals, nil
}

func (r *GormRepo) GetMeal(ctx context.Context, id uint) (*models.Meal, error) {
	var meal models.Meal
	if err := r.DB.WithContext(ctx).Preload("Category").First(&meal, id).Error; err != nil {
		return nil, err
	}
	return &meal, nil
}

// GetMealsByIDs returns the meals found, keyed by id. Missing ids are absent.
func (r *GormRepo) GetMealsByIDs(ctx context.Context, ids []uint) (map[uint]models.Meal, error) {
	var meals []models.Meal
	if len(ids) > 0 {
		if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&meals).Error; err != nil {
			return nil, err
		}
	}
	out := make(map[uint]models.Meal, len(meals))
	for _, m := range meals {
		out[m.ID] = m
	}
	return out, nil
}

func (r *GormRepo) CreateMeal(ctx context.Context, meal *models.Meal) error {
	return r.DB.WithContext(ctx).Create(meal).Error
}

func (r *GormRepo) UpdateMeal(ctx context.Context, id uint, fields map[string]any) (*models.Meal, error) {
	if len(fields) > 0 {
		res := r.DB.WithContext(ctx).Model(&models.Meal{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, gorm.ErrRecordNotFound
		}
	}
	return r.GetMeal(ctx, id)
}

func (r *GormRepo) MealOrdered(ctx context.Context, id uint) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.OrderItem{}).Where("meal_id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *GormRepo) DeleteMeal(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("meal_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Meal{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// SearchMeals is the database fallback used when no search index is configured.
func (r *GormRepo) SearchMeals(ctx context.Context, q string, offset, limit int) (int64, []models.Meal, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
	where := "available = ? AND (LOWER(name) LIKE ? OR LOWER(description) LIKE ?)"

	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Meal{}).
		Where(where, true, pattern, pattern).
		Count(&total).Error; err != nil {
		return 0, nil, err
	}

	meals := make([]models.Meal, 0, limit)
	if err := r.DB.WithContext(ctx).Model(&models.Meal{}).
		Where(where, true, pattern, pattern).
		Order("name ASC").Offset(offset).Limit(limit).
		Find(&meals).Error; err != nil {
		return 0, nil, err
	}
	return total, meals, nil
}
