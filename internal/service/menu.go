package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Skotchmaster/school_canteen/internal/cache"
	"github.com/Skotchmaster/school_canteen/internal/events"
	"github.com/Skotchmaster/school_canteen/internal/logging"
	"github.com/Skotchmaster/school_canteen/internal/models"
	"github.com/Skotchmaster/school_canteen/internal/money"
	"github.com/Skotchmaster/school_canteen/internal/repo"
	"github.com/Skotchmaster/school_canteen/internal/search"
)

// MealIndex is the full-text index kept in sync with the meals table.
type MealIndex interface {
	IndexMeal(ctx context.Context, doc search.MealDoc) error
	DeleteMeal(ctx context.Context, id uint) error
	Search(ctx context.Context, query string, from, size int) (int64, []uint, error)
}

type MenuService struct {
	Repo   *repo.GormRepo
	Cache  *cache.Cache
	Index  MealIndex
	Events events.Publisher
}

type MenuSection struct {
	Category models.MealCategory `json:"category"`
	Meals    []models.Meal       `json:"meals"`
}

// Menu returns available meals grouped by category in category sort order.
func (s *MenuService) Menu(ctx context.Context) ([]MenuSection, error) {
	return cache.Fetch(s.Cache, cache.MenuKey(), func() ([]MenuSection, error) {
		cats, err := s.Repo.ListCategories(ctx)
		if err != nil {
			return nil, storeErr(err, "categories")
		}
		meals, err := s.Repo.ListMeals(ctx, true)
		if err != nil {
			return nil, storeErr(err, "meals")
		}

		byCat := make(map[uint][]models.Meal, len(cats))
		for _, m := range meals {
			m.Category = nil
			byCat[m.CategoryID] = append(byCat[m.CategoryID], m)
		}
		sections := make([]MenuSection, 0, len(cats))
		for _, c := range cats {
			if len(byCat[c.ID]) == 0 {
				continue
			}
			sections = append(sections, MenuSection{Category: c, Meals: byCat[c.ID]})
		}
		return sections, nil
	})
}

func (s *MenuService) Categories(ctx context.Context) ([]models.MealCategory, error) {
	return cache.Fetch(s.Cache, cache.CategoriesKey(), func() ([]models.MealCategory, error) {
		cats, err := s.Repo.ListCategories(ctx)
		if err != nil {
			return nil, storeErr(err, "categories")
		}
		return cats, nil
	})
}

func (s *MenuService) Meal(ctx context.Context, id uint) (*models.Meal, error) {
	meal, err := s.Repo.GetMeal(ctx, id)
	if err != nil {
		return nil, storeErr(err, "meal")
	}
	return meal, nil
}

// AllMeals includes unavailable meals, for the admin view.
func (s *MenuService) AllMeals(ctx context.Context) ([]models.Meal, error) {
	meals, err := s.Repo.ListMeals(ctx, false)
	if err != nil {
		return nil, storeErr(err, "meals")
	}
	return meals, nil
}

type SearchResult struct {
	Total int64         `json:"total"`
	Meals []models.Meal `json:"meals"`
}

// Search queries the index and falls back to a database LIKE match when the
// index is absent or failing.
func (s *MenuService) Search(ctx context.Context, q string, offset, limit int) (*SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("%w: query is required", ErrValidation)
	}

	if s.Index != nil {
		total, ids, err := s.Index.Search(ctx, q, offset, limit)
		if err == nil {
			meals, err := s.Repo.GetMealsByIDs(ctx, ids)
			if err != nil {
				return nil, storeErr(err, "meals")
			}
			out := make([]models.Meal, 0, len(ids))
			for _, id := range ids {
				if m, ok := meals[id]; ok && m.Available {
					out = append(out, m)
				}
			}
			return &SearchResult{Total: total, Meals: out}, nil
		}
		if !errors.Is(err, search.ErrDisabled) {
			logging.FromContext(ctx).Warn("search_index_failed", slog.Any("error", err))
		}
	}

	total, meals, err := s.Repo.SearchMeals(ctx, q, offset, limit)
	if err != nil {
		return nil, storeErr(err, "meals")
	}
	return &SearchResult{Total: total, Meals: meals}, nil
}

type MealInput struct {
	Name        string
	Description string
	Price       money.Amount
	CategoryID  uint
	Available   *bool
	Calories    int
	Proteins    float64
	Fats        float64
	Carbs       float64
	ImageURL    string
}

func (in MealInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	if in.CategoryID == 0 {
		return fmt.Errorf("%w: category_id is required", ErrValidation)
	}
	if in.Calories < 0 || in.Proteins < 0 || in.Fats < 0 || in.Carbs < 0 {
		return fmt.Errorf("%w: nutrition values must not be negative", ErrValidation)
	}
	return nil
}

func (s *MenuService) CreateMeal(ctx context.Context, in MealInput) (*models.Meal, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.Repo.GetCategory(ctx, in.CategoryID); err != nil {
		return nil, storeErr(err, "category")
	}

	meal := &models.Meal{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		CategoryID:  in.CategoryID,
		Available:   true,
		Calories:    in.Calories,
		Proteins:    in.Proteins,
		Fats:        in.Fats,
		Carbs:       in.Carbs,
		ImageURL:    in.ImageURL,
	}
	if in.Available != nil {
		meal.Available = *in.Available
	}
	if err := s.Repo.CreateMeal(ctx, meal); err != nil {
		return nil, storeErr(err, "meal")
	}

	meal, err := s.Repo.GetMeal(ctx, meal.ID)
	if err != nil {
		return nil, storeErr(err, "meal")
	}
	s.mealChanged(ctx, meal)
	return meal, nil
}

func (s *MenuService) UpdateMeal(ctx context.Context, id uint, in MealInput) (*models.Meal, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.Repo.GetCategory(ctx, in.CategoryID); err != nil {
		return nil, storeErr(err, "category")
	}

	fields := map[string]any{
		"name":        strings.TrimSpace(in.Name),
		"description": in.Description,
		"price":       in.Price,
		"category_id": in.CategoryID,
		"calories":    in.Calories,
		"proteins":    in.Proteins,
		"fats":        in.Fats,
		"carbs":       in.Carbs,
		"image_url":   in.ImageURL,
	}
	if in.Available != nil {
		fields["available"] = *in.Available
	}
	meal, err := s.Repo.UpdateMeal(ctx, id, fields)
	if err != nil {
		return nil, storeErr(err, "meal")
	}
	s.mealChanged(ctx, meal)
	return meal, nil
}

// SetAvailability hides or shows a meal without touching order history.
func (s *MenuService) SetAvailability(ctx context.Context, id uint, available bool) (*models.Meal, error) {
	meal, err := s.Repo.UpdateMeal(ctx, id, map[string]any{"available": available})
	if err != nil {
		return nil, storeErr(err, "meal")
	}
	s.mealChanged(ctx, meal)
	return meal, nil
}

// DeleteMeal removes a meal that was never ordered. Ordered meals must be
// marked unavailable instead.
func (s *MenuService) DeleteMeal(ctx context.Context, id uint) error {
	ordered, err := s.Repo.MealOrdered(ctx, id)
	if err != nil {
		return storeErr(err, "meal")
	}
	if ordered {
		return fmt.Errorf("%w: meal %d has orders, mark it unavailable instead", ErrConflict, id)
	}
	if err := s.Repo.DeleteMeal(ctx, id); err != nil {
		return storeErr(err, "meal")
	}

	s.Cache.InvalidateMenu()
	if s.Index != nil {
		if err := s.Index.DeleteMeal(ctx, id); err != nil && !errors.Is(err, search.ErrDisabled) {
			logging.FromContext(ctx).Warn("search_delete_failed", slog.Uint64("meal_id", uint64(id)), slog.Any("error", err))
		}
	}
	publish(ctx, s.Events, events.TopicMenu, events.Key(id), events.MealChanged{
		Type: events.TypeMealDeleted, MealID: id, At: time.Now().UTC(),
	})
	return nil
}

func (s *MenuService) mealChanged(ctx context.Context, meal *models.Meal) {
	s.Cache.InvalidateMenu()
	if s.Index != nil {
		if err := s.Index.IndexMeal(ctx, search.DocFromMeal(meal)); err != nil && !errors.Is(err, search.ErrDisabled) {
			logging.FromContext(ctx).Warn("search_index_failed", slog.Uint64("meal_id", uint64(meal.ID)), slog.Any("error", err))
		}
	}
	publish(ctx, s.Events, events.TopicMenu, events.Key(meal.ID), events.MealChanged{
		Type: events.TypeMealUpserted, MealID: meal.ID, At: time.Now().UTC(),
	})
}

// Reindex pushes every meal into the search index and returns how many were
// written.
func (s *MenuService) Reindex(ctx context.Context) (int, error) {
	if s.Index == nil {
		return 0, search.ErrDisabled
	}
	meals, err := s.Repo.ListMeals(ctx, false)
	if err != nil {
		return 0, storeErr(err, "meals")
	}
	n := 0
	for i := range meals {
		if err := s.Index.IndexMeal(ctx, search.DocFromMeal(&meals[i])); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

type CategoryInput struct {
	Name      string
	SortOrder int
}

func (s *MenuService) CreateCategory(ctx context.Context, in CategoryInput) (*models.MealCategory, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	cat := &models.MealCategory{Name: name, SortOrder: in.SortOrder}
	if err := s.Repo.CreateCategory(ctx, cat); err != nil {
		return nil, storeErr(err, "category "+name)
	}
	s.Cache.InvalidateMenu()
	return cat, nil
}

func (s *MenuService) UpdateCategory(ctx context.Context, id uint, in CategoryInput) (*models.MealCategory, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	cat, err := s.Repo.UpdateCategory(ctx, id, map[string]any{"name": name, "sort_order": in.SortOrder})
	if err != nil {
		return nil, storeErr(err, "category")
	}
	s.Cache.InvalidateMenu()
	return cat, nil
}

// DeleteCategory refuses while meals still reference the category.
func (s *MenuService) DeleteCategory(ctx context.Context, id uint) error {
	n, err := s.Repo.CountMealsInCategory(ctx, id)
	if err != nil {
		return storeErr(err, "category")
	}
	if n > 0 {
		return fmt.Errorf("%w: category %d still has %d meals", ErrConflict, id, n)
	}
	if err := s.Repo.DeleteCategory(ctx, id); err != nil {
		return storeErr(err, "category")
	}
	s.Cache.InvalidateMenu()
	return nil
}
