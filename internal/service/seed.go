package service

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"github.com/Skotchmaster/school_canteen/internal/logging"
	"github.com/Skotchmaster/school_canteen/internal/money"
)

const welcomePromo = "WELCOME10"

type seedMeal struct {
	name     string
	price    int64
	calories int
	desc     string
}

var seedMenu = []struct {
	category string
	meals    []seedMeal
}{
	{"Breakfast", []seedMeal{
		{"Oatmeal with berries", 45, 320, "Oat porridge with seasonal berries"},
		{"Cheese pancakes", 60, 410, "Syrniki with sour cream"},
	}},
	{"Soups", []seedMeal{
		{"Borscht", 25, 250, "Beetroot soup with sour cream"},
		{"Chicken noodle soup", 30, 220, "Chicken broth with noodles"},
	}},
	{"Main courses", []seedMeal{
		{"Chicken cutlet with buckwheat", 85, 520, "Steamed cutlet and buckwheat"},
		{"Pasta with meat sauce", 75, 560, "Pasta bolognese"},
	}},
	{"Drinks", []seedMeal{
		{"Compote", 15, 90, "Dried fruit compote"},
		{"Tea", 10, 40, "Black tea"},
	}},
}

// Seeder fills an empty database with a starter menu, the WELCOME10 promo and
// an admin account. Running it twice changes nothing.
type Seeder struct {
	Menu   *MenuService
	Promos *PromoService
	Auth   *AuthService
}

func (s *Seeder) Seed(ctx context.Context, adminUsername, adminPassword string) error {
	l := logging.FromContext(ctx).With("service", "seed")

	cats, err := s.Menu.Categories(ctx)
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		for i, section := range seedMenu {
			cat, err := s.Menu.CreateCategory(ctx, CategoryInput{Name: section.category, SortOrder: i + 1})
			if err != nil {
				return err
			}
			for _, m := range section.meals {
				if _, err := s.Menu.CreateMeal(ctx, MealInput{
					Name:        m.name,
					Description: m.desc,
					Price:       money.FromUnits(m.price),
					CategoryID:  cat.ID,
					Calories:    m.calories,
				}); err != nil {
					return err
				}
			}
		}
		l.Info("seed_menu_created", slog.Int("categories", len(seedMenu)))
	}

	if _, err := s.Promos.Repo.GetPromoByCode(ctx, welcomePromo); errors.Is(err, gorm.ErrRecordNotFound) {
		if _, err := s.Promos.Create(ctx, PromoInput{Code: welcomePromo, DiscountPercent: 10}); err != nil {
			return err
		}
		l.Info("seed_promo_created", slog.String("code", welcomePromo))
	} else if err != nil {
		return storeErr(err, "promo")
	}

	if adminUsername != "" && adminPassword != "" {
		if _, err := s.Auth.EnsureAdmin(ctx, adminUsername, adminPassword); err != nil {
			return err
		}
		l.Info("seed_admin_ready", slog.String("username", adminUsername))
	}
	return nil
}
