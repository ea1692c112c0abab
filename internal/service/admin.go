package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/school_canteen/internal/cache"
	"github.com/Skotchmaster/school_canteen/internal/repo"
)

const popularMealsLimit = 5

type AdminService struct {
	Repo  *repo.GormRepo
	Stats *repo.StatsRepo
	Cache *cache.Cache
	Now   func() time.Time
}

// Dashboard returns today's figures, cached for the cache TTL.
func (s *AdminService) Dashboard(ctx context.Context) (*repo.DashboardStats, error) {
	return cache.Fetch(s.Cache, cache.StatsKey(), func() (*repo.DashboardStats, error) {
		now := time.Now().UTC()
		if s.Now != nil {
			now = s.Now().UTC()
		}
		since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		st, err := s.Stats.Dashboard(ctx, since, popularMealsLimit)
		if err != nil {
			return nil, storeErr(err, "stats")
		}
		return st, nil
	})
}

type UserPage struct {
	Total int64          `json:"total"`
	Users []*ProfileView `json:"users"`
}

func (s *AdminService) Users(ctx context.Context, offset, limit int) (*UserPage, error) {
	total, users, err := s.Repo.ListUsers(ctx, offset, limit)
	if err != nil {
		return nil, storeErr(err, "users")
	}
	page := &UserPage{Total: total, Users: make([]*ProfileView, len(users))}
	for i := range users {
		page.Users[i] = viewOf(&users[i])
	}
	return page, nil
}
