package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/souq/services/storefront/internal/models"
	"github.com/Skotchmaster/souq/services/storefront/internal/repo"
	"github.com/Skotchmaster/souq/services/storefront/internal/transport"
)

type DashboardService struct {
	Repo     *repo.GormRepo
	Now      func() time.Time
	Location *time.Location
}

// Stats recomputes every rollup from order rows on each call.
func (s *DashboardService) Stats(ctx context.Context) (transport.DashboardStats, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	now = now.UTC()
	today := StartOfDay(now, loc)
	week := now.Add(-7 * 24 * time.Hour)
	month := now.AddDate(0, 0, -30)

	var (
		out transport.DashboardStats
		err error
	)
	if out.TodayOrders, err = s.Repo.CountOrders(ctx, today, ""); err != nil {
		return out, err
	}
	if out.TodayRevenue, err = s.Repo.RevenueSince(ctx, today); err != nil {
		return out, err
	}
	if out.WeekOrders, err = s.Repo.CountOrders(ctx, week, ""); err != nil {
		return out, err
	}
	if out.MonthRevenue, err = s.Repo.RevenueSince(ctx, month); err != nil {
		return out, err
	}
	if out.PendingOrders, err = s.Repo.CountOrders(ctx, time.Time{}, models.StatusPending); err != nil {
		return out, err
	}
	if out.TotalOrders, err = s.Repo.CountOrders(ctx, time.Time{}, ""); err != nil {
		return out, err
	}
	return out, nil
}
