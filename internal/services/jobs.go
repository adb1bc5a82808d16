package services

import (
	"context"
	"discord-store-bot/internal/giveaway"
	"discord-store-bot/internal/logger"
	"discord-store-bot/internal/orders"
	"discord-store-bot/internal/security"
	"discord-store-bot/internal/store"
	"fmt"
	"go.uber.org/zap"
	"time"
)

// SummaryPoster публикует дневную сводку в лог-канал заказов
type SummaryPoster interface {
	PostSummary(ctx context.Context, s Summary) error
}

// Jobs собирает фоновые задачи, которые запускает cron
type Jobs struct {
	GuildID   string
	Giveaways *giveaway.Scheduler
	Engine    *orders.Engine
	Security  *security.Monitor
	Orders    store.Orders
	Poster    SummaryPoster
	Status    *StatusBoard
	Location  *time.Location
	Now       func() time.Time
}

func (j *Jobs) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

// FinishGiveaways подводит итоги истёкших розыгрышей
func (j *Jobs) FinishGiveaways() {
	defer logger.NotifyOnPanic("FinishGiveaways")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := j.Giveaways.Tick(ctx); err != nil {
		logger.Error("giveaway tick failed", zap.Error(err))
	}
}

// SweepTickets удаляет тикеты без активности
func (j *Jobs) SweepTickets() {
	defer logger.NotifyOnPanic("SweepTickets")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	n, err := j.Engine.SweepIdle(ctx, j.GuildID)
	if err != nil {
		logger.Error("ticket sweep failed", zap.Error(err))
		logger.NotifyAdmin("Не удалось очистить неактивные тикеты: " + err.Error())
		return
	}
	if n > 0 {
		logger.Info("ticket sweep done", zap.Int("removed", n))
	}
}

// PruneSpamTracker чистит историю сообщений антиспама
func (j *Jobs) PruneSpamTracker() {
	if n := j.Security.PruneTracker(); n > 0 {
		logger.Info("spam tracker pruned", zap.Int("keys", n))
	}
}

// PostDailySummary отправляет итоги дня в часовом поясе Location
func (j *Jobs) PostDailySummary() {
	defer logger.NotifyOnPanic("PostDailySummary")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	all, err := j.Orders.ListOrders(ctx)
	if err != nil {
		logger.Error("daily summary failed", zap.Error(err))
		return
	}
	loc := j.Location
	if loc == nil {
		loc = time.UTC
	}
	s := DailySummary(all, j.now(), loc)
	if err := j.Poster.PostSummary(ctx, s); err != nil {
		logger.NotifyAdmin(fmt.Sprintf("Не удалось отправить дневную сводку: %v", err))
		return
	}
	logger.Info("daily summary posted", zap.Int("orders", s.Orders), zap.String("revenue", s.Revenue.String()))
}

// CheckStatus обновляет состояние для /health
func (j *Jobs) CheckStatus() {
	defer logger.NotifyOnPanic("CheckStatus")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	j.Status.Update(ctx)
}
