package orders

import (
	"context"
	"discord-store-bot/internal/affiliate"
	"discord-store-bot/internal/catalog"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/store/jsonfile"
	"errors"
	"fmt"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"regexp"
	"strings"
	"testing"
	"time"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, models.Product) (string, error) {
	return "msg", nil
}

func (nopPublisher) Refresh(context.Context, models.Product) error { return nil }

func (nopPublisher) Remove(context.Context, models.Product) error { return nil }

type fakeTickets struct {
	opened  []TicketRequest
	deleted []string
	listed  []Ticket
	cats    TicketCategories
	n       int
}

func (f *fakeTickets) OpenTicket(_ context.Context, req TicketRequest) (string, error) {
	f.n++
	f.opened = append(f.opened, req)
	return fmt.Sprintf("chan-%d", f.n), nil
}

func (f *fakeTickets) DeleteChannel(_ context.Context, channelID string) error {
	f.deleted = append(f.deleted, channelID)
	return nil
}

func (f *fakeTickets) ListTickets(_ context.Context, _ string, cats TicketCategories) ([]Ticket, error) {
	f.cats = cats
	return f.listed, nil
}

type fakeFulfillment struct {
	transcripts []string
	invoices    []string
	logged      []string
	granted     []string
	failInvoice bool
}

func (f *fakeFulfillment) PostTranscript(_ context.Context, channelID string, _ models.Order) error {
	f.transcripts = append(f.transcripts, channelID)
	return nil
}

func (f *fakeFulfillment) SendInvoice(_ context.Context, o models.Order) error {
	if f.failInvoice {
		return errors.New("cannot send messages to this user")
	}
	f.invoices = append(f.invoices, o.OrderID)
	return nil
}

func (f *fakeFulfillment) LogOrder(_ context.Context, o models.Order) error {
	f.logged = append(f.logged, o.OrderID)
	return nil
}

func (f *fakeFulfillment) GrantTrustedBuyer(_ context.Context, _, userID string, _ int) error {
	f.granted = append(f.granted, userID)
	return nil
}

type harness struct {
	engine  *Engine
	store   *jsonfile.Store
	catalog *catalog.Manager
	tickets *fakeTickets
	fulfil  *fakeFulfillment
	timers  []func()
	now     time.Time
}

func newHarness(t *testing.T, stock int) *harness {
	t.Helper()
	s, err := jsonfile.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	log := zap.NewNop()
	h := &harness{
		store:   s,
		catalog: catalog.NewManager(s, nopPublisher{}, log),
		tickets: &fakeTickets{},
		fulfil:  &fakeFulfillment{},
		now:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	h.engine = NewEngine(s, h.catalog, affiliate.NewLedger(s, s, log), h.tickets, h.fulfil, Config{
		DiscountRate:     decimal.RequireFromString("0.05"),
		GraceDelay:       10 * time.Second,
		IdleAfter:        72 * time.Hour,
		TrustedThreshold: 2,
	}, log)
	h.engine.now = func() time.Time { return h.now }
	h.engine.afterFunc = func(_ time.Duration, f func()) { h.timers = append(h.timers, f) }

	_, err = h.catalog.Create(context.Background(), widgetInput(stock))
	require.NoError(t, err)
	return h
}

func widgetInput(stock int) catalog.CreateInput {
	return catalog.CreateInput{
		ChannelID:   "shop",
		Title:       "Widget",
		Description: "A widget",
		Variants:    fmt.Sprintf("Basic,10000,%d", stock),
	}
}

func (h *harness) buy(t *testing.T, userID string, qty int, code string) models.PendingOrder {
	t.Helper()
	p, err := h.engine.Purchase(context.Background(), PurchaseRequest{
		QuoteRequest: QuoteRequest{UserID: userID, Username: userID, ProductID: "widget", Variant: "Basic", Quantity: qty, AffiliateCode: code},
		GuildID:      "g1",
	})
	require.NoError(t, err)
	return p
}

func (h *harness) close(t *testing.T, channelID string, status models.OrderStatus) (CloseResult, error) {
	t.Helper()
	return h.engine.Close(context.Background(), CloseRequest{
		ChannelID:   channelID,
		ChannelName: TicketPrefix + "buyer",
		ClosedBy:    "admin",
		Status:      status,
	})
}

func (h *harness) runTimers() {
	for _, f := range h.timers {
		f()
	}
	h.timers = nil
}

func TestNewOrderIDFormat(t *testing.T) {
	id := NewOrderID(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	assert.Regexp(t, regexp.MustCompile(`^ORD-20240501-[0-9A-Z]{4}$`), id)
}

func TestPurchaseAndCompleteClose(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	p := h.buy(t, "u1", 2, "")
	assert.Equal(t, "Widget - Basic", p.ProductName)
	assert.True(t, p.FinalPrice.Equal(decimal.NewFromInt(20000)))
	assert.True(t, p.Discount.IsZero())

	res, err := h.close(t, p.ChannelID, models.StatusCompleted)
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.Empty(t, res.Failed())
	assert.True(t, res.Order.FinalPrice.Equal(decimal.NewFromInt(20000)))
	assert.True(t, strings.HasPrefix(res.Order.OrderID, "ORD-20240501-"))

	prod, err := h.catalog.Get(ctx, "widget")
	require.NoError(t, err)
	assert.Equal(t, 0, prod.Variants[0].Stock)
	assert.Equal(t, 2, prod.TotalSold)

	stored, err := h.engine.FindOrder(ctx, strings.ToLower(res.Order.OrderID))
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.UserID)

	_, err = h.engine.Pending(ctx, p.ChannelID)
	assert.ErrorIs(t, err, ErrNoPendingOrder)
	assert.Equal(t, []string{p.ChannelID}, h.fulfil.transcripts)
	assert.Equal(t, []string{res.Order.OrderID}, h.fulfil.invoices)

	h.runTimers()
	assert.Equal(t, []string{p.ChannelID}, h.tickets.deleted)
}

func TestAffiliateDiscountAndCredit(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	require.NoError(t, h.store.SaveAffiliate(ctx, models.Affiliate{UserID: "a1", Username: "alice", Code: "alice-123"}))

	p := h.buy(t, "u1", 2, "ALICE-123")
	assert.Equal(t, "alice-123", p.AffiliateCode)
	assert.True(t, p.Discount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, p.FinalPrice.Equal(decimal.NewFromInt(19000)))

	res, err := h.close(t, p.ChannelID, models.StatusCompleted)
	require.NoError(t, err)

	a, err := h.store.GetAffiliate(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{res.Order.OrderID}, a.Referrals)
}

func TestQuantityOverStockCreatesNothing(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()

	_, err := h.engine.Purchase(ctx, PurchaseRequest{
		QuoteRequest: QuoteRequest{UserID: "u1", ProductID: "widget", Variant: "Basic", Quantity: 5},
		GuildID:      "g1",
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Empty(t, h.tickets.opened)
	pend, err := h.store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pend)
}

func TestOutOfStock(t *testing.T) {
	h := newHarness(t, 0)
	_, _, err := h.engine.Initiate(context.Background(), "widget")
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestSelfRedeemRejected(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	require.NoError(t, h.store.SaveAffiliate(ctx, models.Affiliate{UserID: "u1", Username: "me", Code: "me-100"}))

	p := h.buy(t, "u1", 1, "")
	_, err := h.engine.Redeem(ctx, p.ChannelID, "u1", "me-100")
	assert.ErrorIs(t, err, affiliate.ErrSelfReferral)

	got, err := h.engine.Pending(ctx, p.ChannelID)
	require.NoError(t, err)
	assert.Empty(t, got.AffiliateCode)
	assert.True(t, got.FinalPrice.Equal(decimal.NewFromInt(10000)))
}

func TestRedeemOnce(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	require.NoError(t, h.store.SaveAffiliate(ctx, models.Affiliate{UserID: "a1", Username: "alice", Code: "alice-123"}))

	p := h.buy(t, "u1", 1, "")
	_, err := h.engine.Redeem(ctx, p.ChannelID, "u2", "alice-123")
	assert.ErrorIs(t, err, ErrNotOwner)

	got, err := h.engine.Redeem(ctx, p.ChannelID, "u1", "alice-123")
	require.NoError(t, err)
	assert.True(t, got.FinalPrice.Equal(decimal.NewFromInt(9500)))

	_, err = h.engine.Redeem(ctx, p.ChannelID, "u1", "alice-123")
	assert.ErrorIs(t, err, ErrCodeAlreadyApplied)
}

func TestCloseTwiceRecordsOneOrder(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	p := h.buy(t, "u1", 1, "")

	_, err := h.close(t, p.ChannelID, models.StatusCompleted)
	require.NoError(t, err)
	_, err = h.close(t, p.ChannelID, models.StatusCompleted)
	assert.ErrorIs(t, err, ErrTicketClosed)

	h.runTimers()
	_, err = h.close(t, p.ChannelID, models.StatusCompleted)
	require.NoError(t, err)

	all, err := h.store.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCloseOutsideTicket(t *testing.T) {
	h := newHarness(t, 1)
	_, err := h.engine.Close(context.Background(), CloseRequest{ChannelID: "c", ChannelName: "general", Status: models.StatusCompleted})
	assert.ErrorIs(t, err, ErrNotTicket)
}

func TestTestModeRecordsNothing(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	require.NoError(t, h.store.SaveSettings(ctx, models.Settings{TestMode: true}))
	p := h.buy(t, "u1", 1, "")

	res, err := h.close(t, p.ChannelID, models.StatusCompleted)
	require.NoError(t, err)
	assert.True(t, res.TestMode)
	assert.Nil(t, res.Order)
	assert.NotEmpty(t, res.Warning)

	prod, err := h.catalog.Get(ctx, "widget")
	require.NoError(t, err)
	assert.Equal(t, 3, prod.Variants[0].Stock)
	all, err := h.store.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, h.fulfil.invoices)
}

func TestCancelledCloseKeepsStock(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	p := h.buy(t, "u1", 2, "")

	res, err := h.close(t, p.ChannelID, models.StatusCancelled)
	require.NoError(t, err)
	assert.Nil(t, res.Order)
	assert.Empty(t, res.Steps)

	prod, err := h.catalog.Get(ctx, "widget")
	require.NoError(t, err)
	assert.Equal(t, 3, prod.Variants[0].Stock)
	_, err = h.engine.Pending(ctx, p.ChannelID)
	assert.ErrorIs(t, err, ErrNoPendingOrder)
}

func TestCloseWithoutPendingWarns(t *testing.T) {
	h := newHarness(t, 1)
	res, err := h.close(t, "orphan", models.StatusCompleted)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warning)
	assert.Nil(t, res.Order)
	assert.Len(t, h.timers, 1)
}

func TestCloseFailsWhenStockGone(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	p := h.buy(t, "u1", 2, "")

	one := 1
	_, err := h.catalog.EditVariant(ctx, "widget", "Basic", catalog.VariantEdit{Stock: &one})
	require.NoError(t, err)

	_, err = h.close(t, p.ChannelID, models.StatusCompleted)
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)

	_, err = h.engine.Pending(ctx, p.ChannelID)
	assert.NoError(t, err)
	assert.Empty(t, h.timers)
}

func TestFailedStepDoesNotUndoOrder(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	h.fulfil.failInvoice = true
	p := h.buy(t, "u1", 1, "")

	res, err := h.close(t, p.ChannelID, models.StatusCompleted)
	require.NoError(t, err)
	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "invoice", failed[0].Name)
	assert.Len(t, h.fulfil.logged, 1)

	all, err := h.store.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTrustedBuyerGrantedAtThreshold(t *testing.T) {
	h := newHarness(t, 5)
	for i := 0; i < 2; i++ {
		p := h.buy(t, "u1", 1, "")
		_, err := h.close(t, p.ChannelID, models.StatusCompleted)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"u1"}, h.fulfil.granted)
}

func TestSweepIdle(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	p := h.buy(t, "u1", 1, "")

	h.tickets.listed = []Ticket{
		{ID: p.ChannelID, Name: TicketPrefix + "u1", LastActivity: h.now.Add(-73 * time.Hour)},
		{ID: "fresh", Name: TicketPrefix + "u2", LastActivity: h.now.Add(-time.Hour)},
		{ID: "general", Name: "general", LastActivity: h.now.Add(-1000 * time.Hour)},
	}
	n, err := h.engine.SweepIdle(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{p.ChannelID}, h.tickets.deleted)
	_, err = h.engine.Pending(ctx, p.ChannelID)
	assert.ErrorIs(t, err, ErrNoPendingOrder)
}

func TestSweepIdlePassesEachCategory(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	require.NoError(t, h.store.SaveSettings(ctx, models.Settings{TicketCategoryID: "cat-tickets"}))

	_, err := h.engine.SweepIdle(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, TicketCategories{Ticket: "cat-tickets"}, h.tickets.cats, "support falls back to the default")
}

func TestSupportTicketOwnership(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	p := h.buy(t, "u1", 1, "")
	res, err := h.close(t, p.ChannelID, models.StatusCompleted)
	require.NoError(t, err)

	req := SupportRequest{GuildID: "g1", UserID: "u2", OrderID: res.Order.OrderID, Issue: "not delivered"}
	_, _, err = h.engine.OpenSupport(ctx, req)
	assert.ErrorIs(t, err, ErrNotOwner)

	req.OrderID = "ORD-20000101-ZZZZ"
	req.UserID = "u1"
	_, _, err = h.engine.OpenSupport(ctx, req)
	assert.ErrorIs(t, err, ErrUnknownOrder)

	req.OrderID = strings.ToLower(res.Order.OrderID)
	ch, o, err := h.engine.OpenSupport(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, res.Order.OrderID, o.OrderID)
	owner, err := h.engine.Owner(ctx, ch)
	require.NoError(t, err)
	assert.Equal(t, models.TicketSupport, owner.Kind)

	assert.ErrorIs(t, h.engine.CloseSupport(ctx, ch, TicketPrefix+"x", "admin"), ErrNotTicket)
	require.NoError(t, h.engine.CloseSupport(ctx, ch, SupportPrefix+"u1", "admin"))
	assert.ErrorIs(t, h.engine.CloseSupport(ctx, ch, SupportPrefix+"u1", "admin"), ErrTicketClosed)
}

func TestOrdersForNewestFirst(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		p := h.buy(t, "u1", 1, "")
		res, err := h.close(t, p.ChannelID, models.StatusCompleted)
		require.NoError(t, err)
		ids = append(ids, res.Order.OrderID)
		h.now = h.now.Add(time.Minute)
	}
	got, err := h.engine.OrdersFor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, ids[2], got[0].OrderID)
	assert.Equal(t, ids[0], got[2].OrderID)

	n, err := h.engine.CompletedCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
