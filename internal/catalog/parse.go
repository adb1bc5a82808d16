package catalog

import (
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/validation"
	"github.com/shopspring/decimal"
	"strconv"
	"strings"
)

// ParseFeatures splits a ";"-separated feature list, dropping empty entries.
func ParseFeatures(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ";") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ParseVariants reads "Name,Price,Stock; Name,Price,Stock".
func ParseVariants(s string) ([]models.Variant, error) {
	var out []models.Variant
	for _, chunk := range strings.Split(s, ";") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		parts := strings.Split(chunk, ",")
		if len(parts) != 3 {
			return nil, validation.Errorf("variant %q must look like Name,Price,Stock", chunk)
		}
		v, err := NewVariant(parts[0], parts[1], parts[2])
		if err != nil {
			return nil, err
		}
		for _, prev := range out {
			if strings.EqualFold(prev.Name, v.Name) {
				return nil, validation.Errorf("variant %q is listed twice", v.Name)
			}
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, validation.Errorf("at least one variant is required")
	}
	return out, nil
}

type variantInput struct {
	Name  string          `validate:"required,max=35"`
	Price decimal.Decimal `validate:"money"`
	Stock int             `validate:"gte=0"`
}

// NewVariant parses and validates raw text fields.
func NewVariant(name, price, stock string) (models.Variant, error) {
	p, err := ParsePrice(price)
	if err != nil {
		return models.Variant{}, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(stock))
	if err != nil {
		return models.Variant{}, validation.Errorf("stock %q is not a whole number", strings.TrimSpace(stock))
	}
	in := variantInput{Name: strings.TrimSpace(name), Price: p, Stock: n}
	if err := validation.Struct(in); err != nil {
		return models.Variant{}, err
	}
	return models.Variant{Name: in.Name, Price: in.Price, Stock: in.Stock}, nil
}

// ParsePrice accepts plain numbers; thousands separators are not supported.
func ParsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, validation.Errorf("price %q is not a number", strings.TrimSpace(s))
	}
	if d.IsNegative() {
		return decimal.Zero, validation.Errorf("price must not be negative")
	}
	return d, nil
}
