package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/souq/pkg/apperr"
	"github.com/Skotchmaster/souq/pkg/events"
	"github.com/Skotchmaster/souq/services/storefront/internal/models"
	"github.com/Skotchmaster/souq/services/storefront/internal/repo"
	"github.com/Skotchmaster/souq/services/storefront/internal/repo/repotest"
	"github.com/Skotchmaster/souq/services/storefront/internal/transport"
	"github.com/Skotchmaster/souq/services/storefront/internal/util"
)

var jan15 = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	full   bool
}

func (p *recordingPublisher) Enqueue(e events.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.full {
		return false
	}
	p.events = append(p.events, e)
	return true
}

func (p *recordingPublisher) ofType(t events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type orderFixture struct {
	repo   *repo.GormRepo
	svc    *OrderService
	pub    *recordingPublisher
	cat    *models.Category
	msemen *models.Product
	khubz  *models.Product
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	return newOrderFixtureOn(t, repotest.New(t))
}

func newOrderFixtureOn(t *testing.T, r *repo.GormRepo) *orderFixture {
	t.Helper()
	cat := repotest.Category(t, r, "crepes")
	repotest.Zone(t, r, "Casablanca Centre", 20, repotest.Min(100), "casablanca", "casa")
	repotest.Zone(t, r, "Kenitra", 35, repotest.Min(250), "kenitra")

	pub := &recordingPublisher{}
	return &orderFixture{
		repo: r,
		pub:  pub,
		cat:  cat,
		svc: &OrderService{
			Repo:              r,
			Delivery:          &DeliveryService{Repo: r},
			Events:            pub,
			Now:               func() time.Time { return jan15 },
			Location:          time.UTC,
			LowStockThreshold: 5,
		},
		msemen: repotest.Product(t, r, cat, "Msemmen", 25, 50),
		khubz:  repotest.Product(t, r, cat, "Khubz", 15, 40),
	}
}

func price(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func orderRequest(city string, items ...transport.OrderItemRequest) transport.CreateOrderRequest {
	return transport.CreateOrderRequest{
		CustomerName:    "Fatima",
		CustomerPhone:   "+212612345678",
		DeliveryAddress: "12 Rue Ibn Batouta",
		City:            city,
		Items:           items,
	}
}

func item(p *models.Product, qty int, unit int64) transport.OrderItemRequest {
	return transport.OrderItemRequest{ProductID: p.ID.String(), Quantity: qty, Price: price(unit)}
}

func stockOf(t *testing.T, r *repo.GormRepo, id uuid.UUID) int {
	t.Helper()
	p, err := r.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func countOrders(t *testing.T, r *repo.GormRepo) int64 {
	t.Helper()
	n, err := r.CountOrders(context.Background(), time.Time{}, "")
	require.NoError(t, err)
	return n
}

func TestFormatOrderNumber(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "CMD250115003", FormatOrderNumber(jan15, 3))
	assert.Equal(t, "CMD250115999", FormatOrderNumber(jan15, 999))
	assert.Equal(t, "CMD2501151000", FormatOrderNumber(jan15, 1000))
}

func TestCreateOrder_TotalsStockAndHistory(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	o, err := f.svc.CreateOrder(ctx, orderRequest("Casablanca", item(f.msemen, 2, 25), item(f.khubz, 1, 15)), nil)
	require.NoError(t, err)

	assert.Equal(t, "CMD250115001", o.OrderNumber)
	assert.True(t, o.Subtotal.Equal(decimal.NewFromInt(65)), o.Subtotal.String())
	assert.True(t, o.DeliveryFee.Equal(decimal.NewFromInt(20)), o.DeliveryFee.String())
	assert.True(t, o.Total.Equal(o.Subtotal.Add(o.DeliveryFee)))
	assert.Equal(t, models.StatusPending, o.Status)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)

	assert.Equal(t, 48, stockOf(t, f.repo, f.msemen.ID))
	assert.Equal(t, 39, stockOf(t, f.repo, f.khubz.ID))

	stored, err := f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	require.Len(t, stored.StatusHistory, 1)
	assert.Equal(t, models.StatusPending, stored.StatusHistory[0].Status)
	assert.Equal(t, "order created", stored.StatusHistory[0].Notes)
	assert.True(t, stored.Total.Equal(decimal.NewFromInt(85)))

	created := f.pub.ofType(events.OrderCreated)
	require.Len(t, created, 1)
	assert.Equal(t, o.OrderNumber, created[0].Order.OrderNumber)
}

func TestCreateOrder_CallerPriceIsKept(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	o, err := f.svc.CreateOrder(ctx, orderRequest("casa", item(f.msemen, 4, 30)), nil)
	require.NoError(t, err)
	assert.True(t, o.Subtotal.Equal(decimal.NewFromInt(120)))
	assert.True(t, o.DeliveryFee.IsZero(), "fee waived at the zone minimum")
	assert.True(t, o.Items[0].Price.Equal(decimal.NewFromInt(30)))
}

func TestCreateOrder_InsufficientStockRollsBack(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	scarce := repotest.Product(t, f.repo, f.cat, "Chebakia", 40, 1)

	_, err := f.svc.CreateOrder(ctx, orderRequest("casablanca", item(f.msemen, 2, 25), item(scarce, 2, 40)), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Chebakia")

	assert.Equal(t, 50, stockOf(t, f.repo, f.msemen.ID))
	assert.Equal(t, 1, stockOf(t, f.repo, scarce.ID))
	assert.EqualValues(t, 0, countOrders(t, f.repo))
	assert.Empty(t, f.pub.ofType(events.OrderCreated))
}

func TestCreateOrder_Rejections(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	off := repotest.Product(t, f.repo, f.cat, "Off", 10, 10, repotest.Inactive)

	cases := []struct {
		name string
		req  transport.CreateOrderRequest
		want error
	}{
		{"no zone", orderRequest("Agadir", item(f.msemen, 1, 25)), apperr.ErrZoneUnavailable},
		{"no items", orderRequest("casablanca"), apperr.ErrValidation},
		{"missing name", func() transport.CreateOrderRequest {
			r := orderRequest("casablanca", item(f.msemen, 1, 25))
			r.CustomerName = " "
			return r
		}(), apperr.ErrValidation},
		{"zero quantity", orderRequest("casablanca", item(f.msemen, 0, 25)), apperr.ErrValidation},
		{"missing price", orderRequest("casablanca", transport.OrderItemRequest{ProductID: f.msemen.ID.String(), Quantity: 1}), apperr.ErrValidation},
		{"bad product id", orderRequest("casablanca", transport.OrderItemRequest{ProductID: "x", Quantity: 1, Price: price(1)}), apperr.ErrValidation},
		{"unknown product", orderRequest("casablanca", transport.OrderItemRequest{ProductID: uuid.NewString(), Quantity: 1, Price: price(1)}), apperr.ErrValidation},
		{"inactive product", orderRequest("casablanca", item(off, 1, 10)), apperr.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateOrder(ctx, tc.req, nil)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, 400, apperr.Status(err))
		})
	}
	assert.EqualValues(t, 0, countOrders(t, f.repo))
	assert.Equal(t, 50, stockOf(t, f.repo, f.msemen.ID))
}

func TestCreateOrder_DailySequence(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	yesterday := jan15.AddDate(0, 0, -1)
	f.svc.Now = func() time.Time { return yesterday }
	o, err := f.svc.CreateOrder(ctx, orderRequest("casablanca", item(f.khubz, 1, 15)), nil)
	require.NoError(t, err)
	assert.Equal(t, "CMD250114001", o.OrderNumber)

	f.svc.Now = func() time.Time { return jan15 }
	for i := 1; i <= 3; i++ {
		o, err := f.svc.CreateOrder(ctx, orderRequest("casablanca", item(f.khubz, 1, 15)), nil)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("CMD250115%03d", i), o.OrderNumber)
	}
}

func TestCreateOrder_LocalMidnight(t *testing.T) {
	f := newOrderFixture(t)
	f.svc.Location = time.FixedZone("UTC+1", 3600)
	f.svc.Now = func() time.Time { return time.Date(2025, 1, 15, 23, 30, 0, 0, time.UTC) }

	o, err := f.svc.CreateOrder(context.Background(), orderRequest("casablanca", item(f.khubz, 1, 15)), nil)
	require.NoError(t, err)
	assert.Equal(t, "CMD250116001", o.OrderNumber)
}

func TestCreateOrder_SkipsNumbersAlreadyTaken(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	// a row dated the day before already owns today's first number
	stray := &models.Order{
		OrderNumber: "CMD250115001", CustomerName: "x", CustomerPhone: "x", DeliveryAddress: "x", City: "x",
		Status: models.StatusPending, PaymentStatus: models.PaymentPending,
		CreatedAt: jan15.AddDate(0, 0, -1), UpdatedAt: jan15.AddDate(0, 0, -1),
	}
	require.NoError(t, f.repo.CreateOrder(ctx, stray))

	o, err := f.svc.CreateOrder(ctx, orderRequest("casablanca", item(f.khubz, 2, 15)), nil)
	require.NoError(t, err)
	assert.Equal(t, "CMD250115002", o.OrderNumber)
}

// clashOnInsert makes the next n order inserts hit the unique index: a row with the same
// number is written inside the inserting transaction just before the insert runs.
func clashOnInsert(t *testing.T, r *repo.GormRepo, n int32) *atomic.Int32 {
	t.Helper()
	var (
		clashes atomic.Int32
		nested  bool
	)
	err := r.DB.Callback().Create().Before("gorm:create").Register("test:order_clash", func(tx *gorm.DB) {
		o, ok := tx.Statement.Dest.(*models.Order)
		if !ok || nested || clashes.Load() >= n {
			return
		}
		clashes.Add(1)
		nested = true
		defer func() { nested = false }()

		clash := &models.Order{
			OrderNumber: o.OrderNumber, CustomerName: "x", CustomerPhone: "x", DeliveryAddress: "x", City: "x",
			Status: models.StatusPending, PaymentStatus: models.PaymentPending,
		}
		if err := tx.Session(&gorm.Session{NewDB: true}).Omit(clause.Associations).Create(clash).Error; err != nil {
			_ = tx.AddError(err)
		}
	})
	require.NoError(t, err)
	return &clashes
}

func TestCreateOrder_RetriesAfterUniqueViolation(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	clashes := clashOnInsert(t, f.repo, 1)

	o, err := f.svc.CreateOrder(ctx, orderRequest("casablanca", item(f.khubz, 2, 15)), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, clashes.Load())
	assert.Equal(t, "CMD250115001", o.OrderNumber, "the failed attempt gives its number back")
	assert.Equal(t, 38, stockOf(t, f.repo, f.khubz.ID), "the failed attempt must not keep its decrement")
	assert.EqualValues(t, 1, countOrders(t, f.repo))
}

func TestCreateOrder_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.svc.MaxAttempts = 3
	clashes := clashOnInsert(t, f.repo, 100)

	_, err := f.svc.CreateOrder(ctx, orderRequest("casablanca", item(f.khubz, 1, 15)), nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, 500, apperr.Status(err))
	assert.Contains(t, err.Error(), "3 attempts")
	assert.EqualValues(t, 3, clashes.Load())
	assert.Equal(t, 40, stockOf(t, f.repo, f.khubz.ID))
	assert.EqualValues(t, 0, countOrders(t, f.repo))
}

func assertNoOversell(t *testing.T, f *orderFixture) {
	t.Helper()
	ctx := context.Background()
	five := repotest.Product(t, f.repo, f.cat, "Pastilla", 35, 5)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateOrder(ctx, orderRequest("casablanca", item(five, 3, 35)), nil)
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, 2, stockOf(t, f.repo, five.ID))
}

func assertGaplessNumbers(t *testing.T, f *orderFixture, n int) {
	t.Helper()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := f.svc.CreateOrder(ctx, orderRequest("casablanca", item(f.msemen, 1, 25)), nil)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers[o.OrderNumber] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, numbers, n)
	for i := 1; i <= n; i++ {
		assert.True(t, numbers[fmt.Sprintf("CMD250115%03d", i)], "missing sequence %d", i)
	}
}

func TestCreateOrder_ConcurrentOrdersCannotOversell(t *testing.T) {
	assertNoOversell(t, newOrderFixture(t))
}

func TestCreateOrder_ConcurrentNumbersAreGapless(t *testing.T) {
	assertGaplessNumbers(t, newOrderFixture(t), 8)
}

// Runs only against a scratch database: DATABASE_TEST_URL=postgres://.../souq_test
func TestCreateOrder_PostgresConcurrency(t *testing.T) {
	t.Run("stock five, two orders of three", func(t *testing.T) {
		assertNoOversell(t, newOrderFixtureOn(t, repotest.Postgres(t)))
	})
	t.Run("burst beyond the retry budget stays gapless", func(t *testing.T) {
		f := newOrderFixtureOn(t, repotest.Postgres(t))
		assertGaplessNumbers(t, f, 4*defaultMaxOrderAttempts)
		assert.Equal(t, 50-4*defaultMaxOrderAttempts, stockOf(t, f.repo, f.msemen.ID))
	})
}

func TestCreateOrder_CanonicalizesMoroccanPhone(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	req := orderRequest("casablanca", item(f.khubz, 1, 15))
	req.CustomerPhone = "06 12 34 56 78"
	o, err := f.svc.CreateOrder(ctx, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "+212612345678", o.CustomerPhone)

	stored, err := f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "+212612345678", stored.CustomerPhone)
	assert.Equal(t, "+212612345678", f.pub.ofType(events.OrderCreated)[0].Order.CustomerPhone)

	req.CustomerPhone = "+33 6 12 34 56 78"
	o, err = f.svc.CreateOrder(ctx, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "+33 6 12 34 56 78", o.CustomerPhone)
}

func TestCreateOrder_LowStockEventAndFullOutbox(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	few := repotest.Product(t, f.repo, f.cat, "Mlawi", 22, 7)

	_, err := f.svc.CreateOrder(ctx, orderRequest("casablanca", item(few, 3, 22), item(f.msemen, 1, 25)), nil)
	require.NoError(t, err)

	low := f.pub.ofType(events.LowStock)
	require.Len(t, low, 1)
	require.Len(t, low[0].Products, 1)
	assert.Equal(t, "Mlawi", low[0].Products[0].Name)
	assert.Equal(t, 4, low[0].Products[0].Stock)

	f.pub.full = true
	_, err = f.svc.CreateOrder(ctx, orderRequest("casablanca", item(f.msemen, 1, 25)), nil)
	assert.NoError(t, err, "a dropped event must not fail the order")
}

func TestCreateOrder_AttachesUser(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	u, _, err := f.repo.FindOrCreateUserByPhone(ctx, "+212612345678", "Fatima")
	require.NoError(t, err)

	_, err = f.svc.CreateOrder(ctx, orderRequest("casablanca", item(f.khubz, 1, 15)), &u.ID)
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(ctx, orderRequest("casablanca", item(f.khubz, 1, 15)), nil)
	require.NoError(t, err)

	mine, err := f.svc.MyOrders(ctx, u.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, mine.Pagination.Total)
	require.Len(t, mine.Orders, 1)
	assert.Equal(t, u.ID, *mine.Orders[0].UserID)

	mine, err = f.svc.MyOrders(ctx, u.ID, math.MaxInt, 10)
	require.NoError(t, err)
	assert.Empty(t, mine.Orders)
	assert.Equal(t, util.MaxPage, mine.Pagination.Page)
}

func TestUpdateStatus(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, orderRequest("casablanca", item(f.khubz, 1, 15)), nil)
	require.NoError(t, err)

	got, err := f.svc.UpdateStatus(ctx, o.ID, "Confirmed", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.Equal(t, models.PaymentPending, got.PaymentStatus)

	// no transition guard: straight to delivered
	got, err = f.svc.UpdateStatus(ctx, o.ID, "delivered", "remis au client")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, got.Status)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
	require.Len(t, got.StatusHistory, 3)

	_, err = f.svc.UpdateStatus(ctx, o.ID, "shipped", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus)

	_, err = f.svc.UpdateStatus(ctx, uuid.New(), "confirmed", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	changed := f.pub.ofType(events.OrderStatusChanged)
	require.Len(t, changed, 2)
	assert.Equal(t, "remis au client", changed[1].Note)
}

func TestOrdersByStatus(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	a, err := f.svc.CreateOrder(ctx, orderRequest("casablanca", item(f.khubz, 1, 15)), nil)
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(ctx, orderRequest("casablanca", item(f.khubz, 1, 15)), nil)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, a.ID, "cancelled", "")
	require.NoError(t, err)

	pending, err := f.svc.OrdersByStatus(ctx, "PENDING")
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = f.svc.OrdersByStatus(ctx, "lost")
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus)

	recent, err := f.svc.RecentOrders(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
