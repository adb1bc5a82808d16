package services

import (
	"discord-store-bot/internal/models"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"
)

var orderHeaders = []string{
	"OrderID", "Timestamp", "UserID", "Username", "Product", "Variant", "Price",
	"Quantity", "Discount", "FinalPrice", "AffiliateCode", "Status", "ClosedAt", "ClosedBy",
}

var productHeaders = []string{
	"ProductID", "Title", "Variant", "Price", "Stock", "TotalSold", "AverageRating", "Ratings",
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ExportOrders пишет журнал заказов в CSV
func ExportOrders(w io.Writer, orders []models.Order) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(orderHeaders); err != nil {
		return err
	}
	for _, o := range orders {
		code := o.AffiliateCode
		if code == "" {
			code = "N/A"
		}
		row := []string{
			o.OrderID,
			stamp(o.CreatedAt),
			o.UserID,
			o.Username,
			o.ProductName,
			o.VariantName,
			o.UnitPrice.String(),
			strconv.Itoa(o.Quantity),
			o.Discount.String(),
			o.FinalPrice.String(),
			code,
			string(o.Status),
			stamp(o.ClosedAt),
			o.ClosedBy,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportProducts пишет по строке на каждый вариант
func ExportProducts(w io.Writer, products []models.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(productHeaders); err != nil {
		return err
	}
	for _, p := range products {
		avg, n := p.AverageRating()
		for _, v := range p.Variants {
			row := []string{
				p.ID,
				p.Title,
				v.Name,
				v.Price.String(),
				strconv.Itoa(v.Stock),
				strconv.Itoa(p.TotalSold),
				strconv.FormatFloat(avg, 'f', 2, 64),
				strconv.Itoa(n),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportName имя файла выгрузки, например orders_export_20240501.csv
func ExportName(kind string, now time.Time) string {
	return strings.ToLower(kind) + "_export_" + now.Format("20060102") + ".csv"
}
