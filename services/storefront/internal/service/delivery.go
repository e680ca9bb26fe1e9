package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/souq/pkg/apperr"
	"github.com/Skotchmaster/souq/pkg/logging"
	"github.com/Skotchmaster/souq/services/storefront/internal/models"
	"github.com/Skotchmaster/souq/services/storefront/internal/repo"
	"github.com/Skotchmaster/souq/services/storefront/internal/transport"
)

const defaultEstimatedTime = "60-90 min"

var estimatedTimes = map[string]string{
	"casablanca": "30-45 min",
	"rabat":      "45-60 min",
	"mohammedia": "35-50 min",
	"sale":       "50-65 min",
	"temara":     "60-75 min",
	"kenitra":    "90-120 min",
}

// ZoneCache holds the active zone list between requests. Implementations must be safe for concurrent use.
type ZoneCache interface {
	Get(ctx context.Context) ([]models.DeliveryZone, bool)
	Set(ctx context.Context, zones []models.DeliveryZone)
	Invalidate(ctx context.Context)
}

type DeliveryService struct {
	Repo  *repo.GormRepo
	Cache ZoneCache
}

// WithRepo returns a resolver reading through r, typically a transaction-bound repo.
func (s *DeliveryService) WithRepo(r *repo.GormRepo) *DeliveryService {
	return &DeliveryService{Repo: r, Cache: s.Cache}
}

func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

func (s *DeliveryService) activeZones(ctx context.Context) ([]models.DeliveryZone, error) {
	if s.Cache != nil {
		if zones, ok := s.Cache.Get(ctx); ok {
			return zones, nil
		}
	}
	zones, err := s.Repo.ActiveZones(ctx)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		s.Cache.Set(ctx, zones)
	}
	return zones, nil
}

// MatchZone returns the first zone listing city; zones must already be in a stable order.
func MatchZone(zones []models.DeliveryZone, city string) (*models.DeliveryZone, bool) {
	c := normalizeCity(city)
	if c == "" {
		return nil, false
	}
	for i := range zones {
		for _, token := range zones[i].Cities {
			if normalizeCity(token) == c {
				return &zones[i], true
			}
		}
	}
	return nil, false
}

// FeeForZone waives the flat fee once amount reaches the zone minimum; no minimum means the fee always applies.
func FeeForZone(z *models.DeliveryZone, amount decimal.Decimal) decimal.Decimal {
	if z.MinOrder.Valid && amount.GreaterThanOrEqual(z.MinOrder.Decimal) {
		return decimal.Zero
	}
	return z.Price
}

func EstimatedTime(city string) string {
	if t, ok := estimatedTimes[normalizeCity(city)]; ok {
		return t
	}
	return defaultEstimatedTime
}

func (s *DeliveryService) resolve(ctx context.Context, city string) (*models.DeliveryZone, error) {
	zones, err := s.activeZones(ctx)
	if err != nil {
		return nil, err
	}
	z, ok := MatchZone(zones, city)
	if !ok {
		return nil, fmt.Errorf("%w: no delivery zone for %q", apperr.ErrZoneUnavailable, city)
	}
	return z, nil
}

func (s *DeliveryService) FeeFor(ctx context.Context, city string, amount decimal.Decimal) (decimal.Decimal, error) {
	z, err := s.resolve(ctx, city)
	if err != nil {
		return decimal.Zero, err
	}
	return FeeForZone(z, amount), nil
}

func (s *DeliveryService) IsAvailable(ctx context.Context, city string) (transport.CheckDeliveryResponse, error) {
	z, err := s.resolve(ctx, city)
	if err != nil {
		if errors.Is(err, apperr.ErrZoneUnavailable) {
			return transport.CheckDeliveryResponse{Available: false, Message: "delivery zone unavailable"}, nil
		}
		return transport.CheckDeliveryResponse{}, err
	}
	return transport.CheckDeliveryResponse{
		Available: true,
		Zone: &transport.ZoneInfo{
			Name:          z.Name,
			Price:         z.Price,
			MinOrder:      z.MinOrder,
			EstimatedTime: EstimatedTime(city),
		},
	}, nil
}

func (s *DeliveryService) Calculate(ctx context.Context, city string, amount decimal.Decimal) (transport.CalculateDeliveryResponse, error) {
	l := logging.FromContext(ctx).With("svc", "delivery.calculate")

	fee, err := s.FeeFor(ctx, city, amount)
	if err != nil {
		l.Warn("delivery_calculate_failed", "city", city, "error", err)
		return transport.CalculateDeliveryResponse{}, err
	}
	return transport.CalculateDeliveryResponse{
		DeliveryFee:   fee,
		EstimatedTime: EstimatedTime(city),
		FreeDelivery:  fee.IsZero(),
	}, nil
}

func (s *DeliveryService) Zones(ctx context.Context) ([]models.DeliveryZone, error) {
	return s.activeZones(ctx)
}

func (s *DeliveryService) CitiesByZone(ctx context.Context) ([]transport.ZoneCities, error) {
	zones, err := s.activeZones(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]transport.ZoneCities, 0, len(zones))
	for _, z := range zones {
		cities := make([]transport.CityETA, 0, len(z.Cities))
		for _, c := range z.Cities {
			cities = append(cities, transport.CityETA{Name: c, EstimatedTime: EstimatedTime(c)})
		}
		out = append(out, transport.ZoneCities{
			ID:       z.ID,
			Name:     z.Name,
			Price:    z.Price,
			MinOrder: z.MinOrder,
			Cities:   cities,
		})
	}
	return out, nil
}
