package db

import (
	"context"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/store"
	"errors"
	"fmt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"strings"
)

// Store реализует store.Store поверх GORM (PostgreSQL в проде, SQLite в тестах)
type Store struct {
	DB *gorm.DB
}

var _ store.Store = (*Store)(nil)

// Open подключается к PostgreSQL по DATABASE_URL
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL not set")
	}
	return OpenDialector(postgres.Open(dsn))
}

// OpenDialector открывает БД и выполняет миграции
func OpenDialector(d gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(d, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	err = db.AutoMigrate(
		&models.Product{}, &models.Order{}, &models.PendingOrder{}, &models.TicketOwner{},
		&models.Affiliate{}, &models.Tier{}, &models.Giveaway{}, &models.Settings{},
		&models.Violation{}, &WarningRow{}, &PhishingDomain{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, kind, key string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %q: %w", kind, key, store.ErrNotFound)
	}
	return err
}

func upsert(db *gorm.DB, v any) error {
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(v).Error
}

// --- products ---

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	err := s.DB.WithContext(ctx).Order("created_at").Find(&out).Error
	return out, err
}

func (s *Store) GetProduct(ctx context.Context, id string) (models.Product, error) {
	var p models.Product
	err := s.DB.WithContext(ctx).First(&p, "id = ?", id).Error
	return p, notFound(err, "product", id)
}

func (s *Store) SaveProduct(ctx context.Context, p models.Product) error {
	return upsert(s.DB.WithContext(ctx), &p)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "product", id)
	}
	return nil
}

// --- orders ---

// AppendOrder только вставляет: существующий заказ не перезаписывается
func (s *Store) AppendOrder(ctx context.Context, o models.Order) error {
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&o)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %q: %w", o.OrderID, store.ErrExists)
	}
	return nil
}

func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	err := s.DB.WithContext(ctx).Order("closed_at").Find(&out).Error
	return out, err
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	var o models.Order
	err := s.DB.WithContext(ctx).First(&o, "order_id = ?", orderID).Error
	return o, notFound(err, "order", orderID)
}

// --- pending orders ---

func (s *Store) ListPending(ctx context.Context) ([]models.PendingOrder, error) {
	var out []models.PendingOrder
	err := s.DB.WithContext(ctx).Order("created_at").Find(&out).Error
	return out, err
}

func (s *Store) GetPending(ctx context.Context, channelID string) (models.PendingOrder, error) {
	var p models.PendingOrder
	err := s.DB.WithContext(ctx).First(&p, "channel_id = ?", channelID).Error
	return p, notFound(err, "pending order", channelID)
}

func (s *Store) SavePending(ctx context.Context, p models.PendingOrder) error {
	return upsert(s.DB.WithContext(ctx), &p)
}

func (s *Store) DeletePending(ctx context.Context, channelID string) error {
	res := s.DB.WithContext(ctx).Delete(&models.PendingOrder{}, "channel_id = ?", channelID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "pending order", channelID)
	}
	return nil
}

// --- ticket owners ---

func (s *Store) ListOwners(ctx context.Context) ([]models.TicketOwner, error) {
	var out []models.TicketOwner
	err := s.DB.WithContext(ctx).Order("created_at").Find(&out).Error
	return out, err
}

func (s *Store) GetOwner(ctx context.Context, channelID string) (models.TicketOwner, error) {
	var o models.TicketOwner
	err := s.DB.WithContext(ctx).First(&o, "channel_id = ?", channelID).Error
	return o, notFound(err, "ticket owner", channelID)
}

func (s *Store) SaveOwner(ctx context.Context, o models.TicketOwner) error {
	return upsert(s.DB.WithContext(ctx), &o)
}

func (s *Store) DeleteOwner(ctx context.Context, channelID string) error {
	res := s.DB.WithContext(ctx).Delete(&models.TicketOwner{}, "channel_id = ?", channelID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "ticket owner", channelID)
	}
	return nil
}

// --- affiliates ---

func (s *Store) ListAffiliates(ctx context.Context) ([]models.Affiliate, error) {
	var out []models.Affiliate
	err := s.DB.WithContext(ctx).Order("registered_at").Find(&out).Error
	return out, err
}

func (s *Store) GetAffiliate(ctx context.Context, userID string) (models.Affiliate, error) {
	var a models.Affiliate
	err := s.DB.WithContext(ctx).First(&a, "user_id = ?", userID).Error
	return a, notFound(err, "affiliate", userID)
}

func (s *Store) SaveAffiliate(ctx context.Context, a models.Affiliate) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.Affiliate{}).Where("code = ? AND user_id <> ?", a.Code, a.UserID).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return fmt.Errorf("affiliate code %q: %w", a.Code, store.ErrExists)
		}
		return upsert(tx, &a)
	})
}

func (s *Store) ListTiers(ctx context.Context) ([]models.Tier, error) {
	var out []models.Tier
	err := s.DB.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}

func (s *Store) SaveTier(ctx context.Context, t models.Tier) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("LOWER(name) = ?", strings.ToLower(t.Name)).Delete(&models.Tier{}).Error; err != nil {
			return err
		}
		return tx.Create(&t).Error
	})
}

func (s *Store) DeleteTier(ctx context.Context, name string) error {
	res := s.DB.WithContext(ctx).Where("LOWER(name) = ?", strings.ToLower(name)).Delete(&models.Tier{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "tier", name)
	}
	return nil
}

// --- giveaways ---

func (s *Store) ListGiveaways(ctx context.Context) ([]models.Giveaway, error) {
	var out []models.Giveaway
	err := s.DB.WithContext(ctx).Order("end_time").Find(&out).Error
	return out, err
}

func (s *Store) GetGiveaway(ctx context.Context, messageID string) (models.Giveaway, error) {
	var g models.Giveaway
	err := s.DB.WithContext(ctx).First(&g, "message_id = ?", messageID).Error
	return g, notFound(err, "giveaway", messageID)
}

func (s *Store) SaveGiveaway(ctx context.Context, g models.Giveaway) error {
	return upsert(s.DB.WithContext(ctx), &g)
}

// --- settings ---

const settingsRowID = 1

func (s *Store) GetSettings(ctx context.Context) (models.Settings, error) {
	var st models.Settings
	err := s.DB.WithContext(ctx).First(&st, settingsRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Settings{}, nil
	}
	return st, err
}

func (s *Store) SaveSettings(ctx context.Context, st models.Settings) error {
	st.ID = settingsRowID
	return upsert(s.DB.WithContext(ctx), &st)
}

// --- security ---

func (s *Store) GetWarnings(ctx context.Context, userID string) (models.Warnings, error) {
	var rows []WarningRow
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	w := models.Warnings{}
	for _, r := range rows {
		w[models.ViolationType(r.Type)] = r.Count
	}
	return w, nil
}

func (s *Store) SaveWarnings(ctx context.Context, userID string, w models.Warnings) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&WarningRow{}).Error; err != nil {
			return err
		}
		for t, c := range w {
			if err := tx.Create(&WarningRow{UserID: userID, Type: string(t), Count: c}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ClearWarnings(ctx context.Context, userID string) error {
	return s.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&WarningRow{}).Error
}

func (s *Store) AppendViolation(ctx context.Context, v models.Violation) error {
	return s.DB.WithContext(ctx).Create(&v).Error
}

func (s *Store) ListViolations(ctx context.Context, userID string) ([]models.Violation, error) {
	var out []models.Violation
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("timestamp").Find(&out).Error
	return out, err
}

func (s *Store) ListPhishingDomains(ctx context.Context) ([]string, error) {
	var rows []PhishingDomain
	if err := s.DB.WithContext(ctx).Order("domain").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Domain)
	}
	return out, nil
}

func (s *Store) SavePhishingDomains(ctx context.Context, domains []string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&PhishingDomain{}).Error; err != nil {
			return err
		}
		for _, d := range domains {
			if err := tx.Create(&PhishingDomain{Domain: d}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
