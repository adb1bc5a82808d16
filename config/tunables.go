package config

import (
	"errors"
	"fmt"
	"github.com/BurntSushi/toml"
	"io/fs"
	"os"
	"strings"
	"time"
)

// Duration позволяет писать в TOML значения вида "10s", "1h"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

type SecurityTunables struct {
	SpamThreshold       int      `toml:"spam_threshold"`
	SpamWindow          Duration `toml:"spam_window"`
	WarningLimit        int      `toml:"warning_limit"`
	TimeoutDuration     Duration `toml:"timeout_duration"`
	DangerousExtensions []string `toml:"dangerous_extensions"`
}

type TicketTunables struct {
	GraceDelay       Duration `toml:"grace_delay"`
	IdleAfter        Duration `toml:"idle_after"`
	PurchaseCooldown Duration `toml:"purchase_cooldown"`
}

type AffiliateTunables struct {
	DiscountRate float64 `toml:"discount_rate"`
}

// PaymentMethod показывается по команде !pay <name>
type PaymentMethod struct {
	Name     string `toml:"name"`
	Title    string `toml:"title"`
	Details  string `toml:"details"`
	ImageURL string `toml:"image_url"`
}

type Tunables struct {
	Security  SecurityTunables  `toml:"security"`
	Tickets   TicketTunables    `toml:"tickets"`
	Affiliate AffiliateTunables `toml:"affiliate"`
	Payments  []PaymentMethod   `toml:"payment"`
}

func DefaultTunables() Tunables {
	return Tunables{
		Security: SecurityTunables{
			SpamThreshold:       5,
			SpamWindow:          Duration{5 * time.Second},
			WarningLimit:        3,
			TimeoutDuration:     Duration{time.Hour},
			DangerousExtensions: []string{".exe", ".bat", ".cmd", ".scr", ".vbs", ".js", ".jar"},
		},
		Tickets: TicketTunables{
			GraceDelay:       Duration{10 * time.Second},
			IdleAfter:        Duration{72 * time.Hour},
			PurchaseCooldown: Duration{30 * time.Second},
		},
		Affiliate: AffiliateTunables{DiscountRate: 0.05},
	}
}

// LoadTunables накладывает значения из TOML-файла на значения по умолчанию.
// Отсутствующий файл не считается ошибкой.
func LoadTunables(path string) (Tunables, error) {
	t := DefaultTunables()
	if path == "" {
		return t, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return t, nil
	}
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return t, fmt.Errorf("decode %s: %w", path, err)
	}
	if t.Affiliate.DiscountRate < 0 || t.Affiliate.DiscountRate >= 1 {
		return t, fmt.Errorf("affiliate.discount_rate must be in [0,1), got %v", t.Affiliate.DiscountRate)
	}
	return t, nil
}

// PaymentMethod возвращает способ оплаты по имени
func (t Tunables) PaymentMethod(name string) (PaymentMethod, bool) {
	for _, p := range t.Payments {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return PaymentMethod{}, false
}
