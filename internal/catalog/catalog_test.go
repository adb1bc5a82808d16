package catalog

import (
	"context"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/store"
	"discord-store-bot/internal/store/jsonfile"
	"discord-store-bot/internal/validation"
	"errors"
	"fmt"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"strings"
	"testing"
)

type fakePublisher struct {
	published   int
	refreshed   []models.Product
	removed     []string
	failRefresh bool
	failRemove  bool
}

func (f *fakePublisher) Publish(_ context.Context, channelID string, p models.Product) (string, error) {
	f.published++
	return fmt.Sprintf("msg-%d", f.published), nil
}

func (f *fakePublisher) Refresh(_ context.Context, p models.Product) error {
	if f.failRefresh {
		return errors.New("missing permissions")
	}
	f.refreshed = append(f.refreshed, p)
	return nil
}

func (f *fakePublisher) Remove(_ context.Context, p models.Product) error {
	if f.failRemove {
		return errors.New("unknown message")
	}
	f.removed = append(f.removed, p.MessageID)
	return nil
}

func newManager(t *testing.T) (*Manager, *fakePublisher, store.Products) {
	t.Helper()
	s, err := jsonfile.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	pub := &fakePublisher{}
	return NewManager(s, pub, zap.NewNop()), pub, s
}

func widget(t *testing.T, m *Manager) models.Product {
	t.Helper()
	p, err := m.Create(context.Background(), CreateInput{
		ChannelID:   "shop",
		Title:       "Widget",
		Description: "A widget",
		Features:    "fast; reliable ;",
		Variants:    "Basic,10000,2; Pro,25000,1",
	})
	require.NoError(t, err)
	return p
}

func TestParseVariants(t *testing.T) {
	tests := []struct {
		desc    string
		in      string
		want    int
		wantErr bool
	}{
		{"two variants", "Basic,10000,2;Pro,25000,0", 2, false},
		{"trailing separator", "Basic,1,1;", 1, false},
		{"missing field", "Basic,1", 0, true},
		{"bad price", "Basic,abc,1", 0, true},
		{"negative stock", "Basic,1,-1", 0, true},
		{"duplicate name", "Basic,1,1;basic,2,2", 0, true},
		{"empty", " ; ", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseVariants(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.desc)
			continue
		}
		require.NoError(t, err, tt.desc)
		require.Len(t, got, tt.want, tt.desc)
	}
}

func TestCreateRejectsDuplicateSlug(t *testing.T) {
	m, pub, _ := newManager(t)
	p := widget(t, m)
	require.Equal(t, "widget", p.ID)
	require.Equal(t, "msg-1", p.MessageID)
	require.Equal(t, []string{"fast", "reliable"}, p.Features)

	_, err := m.Create(context.Background(), CreateInput{ChannelID: "shop", Title: "WIDGET", Description: "again", Variants: "A,1,1"})
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, 1, pub.published)
}

func TestLongTitleAndVariantNamesAreCapped(t *testing.T) {
	m, _, _ := newManager(t)
	p, err := m.Create(context.Background(), CreateInput{
		ChannelID:   "shop",
		Title:       strings.Repeat("Premium Netflix Account ", 6),
		Description: "Shared plan",
		Variants:    strings.Repeat("v", MaxVariantLength) + ",10000,1",
	})
	require.NoError(t, err)
	require.Equal(t, "premium-netflix-account-premium-netflix", p.ID)
	require.LessOrEqual(t, len(p.ID), MaxIDLength)

	_, err = NewVariant(strings.Repeat("v", MaxVariantLength+1), "1", "1")
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	_, err = m.AddVariant(context.Background(), p.ID, models.Variant{Name: strings.Repeat("w", 60), Price: decimal.NewFromInt(1), Stock: 1})
	require.ErrorAs(t, err, &verr)
}

func TestAddAndEditVariant(t *testing.T) {
	ctx := context.Background()
	m, pub, _ := newManager(t)
	widget(t, m)

	_, err := m.AddVariant(ctx, "widget", models.Variant{Name: "basic", Price: decimal.NewFromInt(1), Stock: 1})
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))

	p, err := m.AddVariant(ctx, "widget", models.Variant{Name: "Max", Price: decimal.NewFromInt(50000), Stock: 3})
	require.NoError(t, err)
	require.Len(t, p.Variants, 3)

	stock := 7
	p, err = m.EditVariant(ctx, "widget", "MAX", VariantEdit{Stock: &stock})
	require.NoError(t, err)
	require.Equal(t, 7, p.Variants[2].Stock)
	require.Len(t, pub.refreshed, 2)

	_, err = m.EditVariant(ctx, "widget", "Nope", VariantEdit{Stock: &stock})
	require.ErrorIs(t, err, ErrUnknownVariant)
}

func TestRemoveLastVariantRejected(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t)
	widget(t, m)

	_, err := m.RemoveVariant(ctx, "widget", "Pro")
	require.NoError(t, err)
	_, err = m.RemoveVariant(ctx, "widget", "Basic")
	require.Error(t, err)
}

func TestRefreshFailureIsPartialButSaved(t *testing.T) {
	ctx := context.Background()
	m, pub, repo := newManager(t)
	widget(t, m)
	pub.failRefresh = true

	title := "Widget v2"
	p, err := m.Update(ctx, "widget", UpdateInput{Title: &title})
	require.ErrorIs(t, err, ErrPartial)
	require.Equal(t, "Widget v2", p.Title)

	stored, err := repo.GetProduct(ctx, "widget")
	require.NoError(t, err)
	require.Equal(t, "Widget v2", stored.Title)
	require.Equal(t, "widget", stored.ID)
}

func TestDeletePartialWhenMessageGone(t *testing.T) {
	ctx := context.Background()
	m, pub, repo := newManager(t)
	widget(t, m)
	pub.failRemove = true

	_, err := m.Delete(ctx, "widget")
	require.ErrorIs(t, err, ErrPartial)
	_, err = repo.GetProduct(ctx, "widget")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordSaleNeverNegative(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t)
	widget(t, m)

	p, err := m.RecordSale(ctx, "widget", "Basic", 2)
	require.NoError(t, err)
	require.Equal(t, 0, p.Variants[0].Stock)
	require.Equal(t, 2, p.TotalSold)

	_, err = m.RecordSale(ctx, "widget", "Basic", 1)
	require.ErrorIs(t, err, ErrInsufficientStock)

	p, err = m.Get(ctx, "widget")
	require.NoError(t, err)
	require.Equal(t, 0, p.Variants[0].Stock)
	require.Equal(t, 2, p.TotalSold)

	p, err = m.ReverseSale(ctx, "widget", "Basic", 2)
	require.NoError(t, err)
	require.Equal(t, 2, p.Variants[0].Stock)
	require.Equal(t, 0, p.TotalSold)
}

func TestAddRatingUpserts(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t)
	widget(t, m)

	_, err := m.AddRating(ctx, "widget", models.Rating{UserID: "u1", Rating: 6})
	require.Error(t, err)

	_, err = m.AddRating(ctx, "widget", models.Rating{UserID: "u1", Rating: 3})
	require.NoError(t, err)
	p, err := m.AddRating(ctx, "widget", models.Rating{UserID: "u1", Rating: 5, Comment: "great"})
	require.NoError(t, err)
	require.Len(t, p.Ratings, 1)
	require.Equal(t, "great", p.Ratings[0].Comment)

	p, err = m.AddRating(ctx, "widget", models.Rating{UserID: "u2", Rating: 4})
	require.NoError(t, err)
	require.Equal(t, "GG", p.Ratings[1].Comment)
	avg, n := p.AverageRating()
	require.Equal(t, 2, n)
	require.InDelta(t, 4.5, avg, 0.001)
}

func TestTopSellers(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t)
	widget(t, m)
	_, err := m.Create(ctx, CreateInput{ChannelID: "shop", Title: "Gadget", Description: "g", Variants: "One,5,10"})
	require.NoError(t, err)
	_, err = m.RecordSale(ctx, "gadget", "One", 4)
	require.NoError(t, err)
	_, err = m.RecordSale(ctx, "widget", "Basic", 1)
	require.NoError(t, err)

	top, err := m.TopSellers(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, "gadget", top[0].ID)
}
