package db

import (
	"context"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/store"
	"fmt"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"strings"
	"testing"
	"time"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := OpenDialector(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProductUpsertKeepsVariants(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	p := models.Product{
		ID:        "widget",
		Title:     "Widget",
		Features:  []string{"fast"},
		Variants:  []models.Variant{{Name: "Basic", Price: decimal.NewFromInt(10000), Stock: 2}},
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.SaveProduct(ctx, p))
	p.Variants[0].Stock = 0
	p.TotalSold = 2
	require.NoError(t, s.SaveProduct(ctx, p))

	got, err := s.GetProduct(ctx, "widget")
	require.NoError(t, err)
	require.Equal(t, 0, got.Variants[0].Stock)
	require.Equal(t, 2, got.TotalSold)
	require.True(t, got.Variants[0].Price.Equal(decimal.NewFromInt(10000)))

	require.NoError(t, s.DeleteProduct(ctx, "widget"))
	_, err = s.GetProduct(ctx, "widget")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAppendOrderIsInsertOnly(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	o := models.Order{OrderID: "ORD-20240101-AAAA", FinalPrice: decimal.NewFromInt(19000), Status: models.StatusCompleted, ClosedAt: time.Now()}
	require.NoError(t, s.AppendOrder(ctx, o))

	o.FinalPrice = decimal.NewFromInt(1)
	require.ErrorIs(t, s.AppendOrder(ctx, o), store.ErrExists)

	got, err := s.GetOrder(ctx, "ORD-20240101-AAAA")
	require.NoError(t, err)
	require.True(t, got.FinalPrice.Equal(decimal.NewFromInt(19000)))
}

func TestAffiliateCodeUnique(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	require.NoError(t, s.SaveAffiliate(ctx, models.Affiliate{UserID: "a", Code: "alice-123", RegisteredAt: time.Now()}))
	require.ErrorIs(t, s.SaveAffiliate(ctx, models.Affiliate{UserID: "b", Code: "alice-123"}), store.ErrExists)

	require.NoError(t, s.SaveAffiliate(ctx, models.Affiliate{UserID: "a", Code: "alice-123", Referrals: []string{"ORD-1"}}))
	a, err := s.GetAffiliate(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, []string{"ORD-1"}, a.Referrals)
}

func TestSettingsDefaultAndSave(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	st, err := s.GetSettings(ctx)
	require.NoError(t, err)
	require.False(t, st.TestMode)

	require.NoError(t, s.SaveSettings(ctx, models.Settings{TicketCategoryID: "cat", TestMode: true}))
	require.NoError(t, s.SaveSettings(ctx, models.Settings{TicketCategoryID: "cat2", TestMode: false}))
	st, err = s.GetSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, "cat2", st.TicketCategoryID)
	require.False(t, st.TestMode)
}

func TestWarningsAndDomains(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	require.NoError(t, s.SaveWarnings(ctx, "u", models.Warnings{models.ViolationSpam: 2, models.ViolationPhishing: 1}))
	w, err := s.GetWarnings(ctx, "u")
	require.NoError(t, err)
	require.Equal(t, 3, w.Total())
	require.NoError(t, s.ClearWarnings(ctx, "u"))
	w, err = s.GetWarnings(ctx, "u")
	require.NoError(t, err)
	require.Zero(t, w.Total())

	require.NoError(t, s.SavePhishingDomains(ctx, []string{"b.example", "a.example"}))
	d, err := s.ListPhishingDomains(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a.example", "b.example"}, d)
}

func TestTierReplaceIgnoresCase(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	require.NoError(t, s.SaveTier(ctx, models.Tier{Name: "Gold", Percentage: decimal.NewFromInt(10)}))
	require.NoError(t, s.SaveTier(ctx, models.Tier{Name: "GOLD", Percentage: decimal.NewFromInt(15)}))
	tiers, err := s.ListTiers(ctx)
	require.NoError(t, err)
	require.Len(t, tiers, 1)
	require.True(t, tiers[0].Percentage.Equal(decimal.NewFromInt(15)))
}
