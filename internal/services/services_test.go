package services

import (
	"bytes"
	"context"
	"discord-store-bot/internal/models"
	"encoding/csv"
	"encoding/json"
	"errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatRupiah(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "Rp 0"},
		{"999", "Rp 999"},
		{"1000", "Rp 1.000"},
		{"20000", "Rp 20.000"},
		{"1250000", "Rp 1.250.000"},
		{"9999.5", "Rp 9.999,50"},
		{"10.05", "Rp 10,05"},
		{"-1500", "Rp -1.500"},
	}
	for _, tt := range tests {
		if got := FormatRupiah(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func order(id string, status models.OrderStatus, product string, qty int, price int64, closed time.Time) models.Order {
	return models.Order{
		OrderID:     id,
		Status:      status,
		ProductName: product,
		Quantity:    qty,
		FinalPrice:  decimal.NewFromInt(price),
		CreatedAt:   closed.Add(-time.Hour),
		ClosedAt:    closed,
	}
}

func TestParseRange(t *testing.T) {
	from, to, err := ParseRange("2024-05-01", "2024-05-01", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 5, 1, 23, 59, 59, 999999999, time.UTC), to)

	_, _, err = ParseRange("2024/05/01", "2024-05-02", time.UTC)
	assert.Error(t, err)
	_, _, err = ParseRange("2024-05-03", "2024-05-02", time.UTC)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	day := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	all := []models.Order{
		order("1", models.StatusCompleted, "Widget - Basic", 2, 20000, day),
		order("2", models.StatusCompleted, "Gadget - Pro", 1, 5000, day.Add(time.Hour)),
		order("3", models.StatusCompleted, "Widget - Basic", 1, 10000, day.AddDate(0, 0, 3)),
		order("4", models.StatusCancelled, "Gadget - Pro", 9, 1, day),
	}
	from, to, err := ParseRange("2024-05-01", "2024-05-02", time.UTC)
	require.NoError(t, err)

	s := Summarize(all, from, to)
	assert.Equal(t, 2, s.Orders)
	assert.True(t, s.Revenue.Equal(decimal.NewFromInt(25000)))
	assert.Equal(t, "Widget - Basic", s.TopSeller)
	assert.Equal(t, 2, s.TopSellerQty)

	empty := Summarize(nil, from, to)
	assert.Equal(t, 0, empty.Orders)
	assert.Empty(t, empty.TopSeller)
}

func TestDailySummaryUsesLocation(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	// 2024-05-01 20:00 UTC is already 2024-05-02 in Jakarta
	late := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	early := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	all := []models.Order{
		order("a", models.StatusCompleted, "X", 1, 100, late),
		order("b", models.StatusCompleted, "X", 1, 100, early),
	}
	s := DailySummary(all, time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC), jakarta)
	assert.Equal(t, 1, s.Orders)
}

func TestComputeTicketStats(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	all := []models.Order{
		order("1", models.StatusCompleted, "X", 1, 1, now.AddDate(0, 0, -1)),
		order("2", models.StatusCompleted, "X", 1, 1, now.AddDate(0, 0, -45)),
	}
	pending := []models.PendingOrder{{ChannelID: "c1"}, {ChannelID: "c2"}}
	st := ComputeTicketStats(all, pending, now)
	assert.Equal(t, TicketStats{Completed: 1, Open: 2, Total: 3}, st)
}

func TestExportOrders(t *testing.T) {
	closed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	o := order("ORD-20240501-AB12", models.StatusCompleted, "Widget, Basic", 2, 19000, closed)
	o.AffiliateCode = "alice-123"
	o.UnitPrice = decimal.NewFromInt(10000)
	o.Discount = decimal.NewFromInt(1000)
	plain := order("ORD-20240501-CD34", models.StatusCompleted, "Gadget", 1, 5000, closed)

	var buf bytes.Buffer
	require.NoError(t, ExportOrders(&buf, []models.Order{o, plain}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, orderHeaders, rows[0])
	assert.Equal(t, "Widget, Basic", rows[1][4])
	assert.Equal(t, "19000", rows[1][9])
	assert.Equal(t, "alice-123", rows[1][10])
	assert.Equal(t, "2024-05-01T10:00:00Z", rows[1][12])
	assert.Equal(t, "N/A", rows[2][10])
}

func TestExportProducts(t *testing.T) {
	p := models.Product{
		ID:    "widget",
		Title: "Widget",
		Variants: []models.Variant{
			{Name: "Basic", Price: decimal.NewFromInt(10000), Stock: 2},
			{Name: "Pro", Price: decimal.NewFromInt(25000), Stock: 0},
		},
		Ratings:   []models.Rating{{UserID: "u", Rating: 4}},
		TotalSold: 7,
	}
	var buf bytes.Buffer
	require.NoError(t, ExportProducts(&buf, []models.Product{p}))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"widget", "Widget", "Pro", "25000", "0", "7", "4.00", "1"}, rows[2])
	assert.Equal(t, "orders_export_20240501.csv", ExportName("Orders", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRenderTranscriptEscapes(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	out, err := RenderTranscript("ticket-bob", []TranscriptMessage{
		{Author: "staff", Timestamp: t0.Add(time.Minute), Content: "paid?", Embeds: []TranscriptEmbed{{Description: "line1\nline2"}}},
		{Author: "bob", Timestamp: t0, Content: "<script>alert(1)</script>"},
	})
	require.NoError(t, err)
	html := string(out)
	assert.Contains(t, html, "Transcript for Ticket: #ticket-bob")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "line1<br>line2")
	assert.Contains(t, html, "<strong>Embed</strong>")
	assert.Less(t, strings.Index(html, "bob<span"), strings.Index(html, "staff<span"))
	assert.Equal(t, "transcript-42.html", TranscriptFileName("42"))
}

type memArchiver struct {
	objects map[string][]byte
}

func (m *memArchiver) Put(_ context.Context, key string, body io.Reader, _ string) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[key] = b
	return nil
}

func TestArchiveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup_1.zip")
	require.NoError(t, os.WriteFile(path, []byte("zip"), 0o644))
	a := &memArchiver{objects: map[string][]byte{}}

	key, err := ArchiveFile(context.Background(), a, "backups", path, "application/zip")
	require.NoError(t, err)
	assert.Equal(t, "backups/backup_1.zip", key)
	assert.Equal(t, []byte("zip"), a.objects[key])
}

func TestHealthHandler(t *testing.T) {
	var storeErr error
	board := NewStatusBoard(
		Probe{Name: "gateway", Check: func(context.Context) error { return nil }},
		Probe{Name: "store", Check: func(context.Context) error { return storeErr }},
	)
	board.Update(context.Background())
	h := HealthHandler(board, "1.2.0")

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.0", resp.Version)
	assert.Len(t, resp.Components, 2)

	storeErr = errors.New("disk full")
	board.Update(context.Background())
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk full")

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
