package services

import (
	"context"
	"discord-store-bot/internal/logger"
	"sync"
	"time"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

type ComponentStatus struct {
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Detail      string    `json:"detail,omitempty"`
	LastChecked time.Time `json:"lastChecked"`
}

// Probe проверяет одну зависимость бота: шлюз Discord, хранилище и т.п.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// StatusBoard хранит результаты последней проверки для /health
type StatusBoard struct {
	mu     sync.RWMutex
	probes []Probe
	last   []ComponentStatus
	now    func() time.Time
}

func NewStatusBoard(probes ...Probe) *StatusBoard {
	return &StatusBoard{probes: probes, now: time.Now}
}

// Update опрашивает все зависимости; админ получает уведомление при переходе в offline
func (b *StatusBoard) Update(ctx context.Context) {
	statuses := make([]ComponentStatus, 0, len(b.probes))
	for _, p := range b.probes {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := p.Check(pctx)
		cancel()

		st := ComponentStatus{Name: p.Name, Status: StatusOnline, LastChecked: b.now()}
		if err != nil {
			st.Status = StatusOffline
			st.Detail = err.Error()
			if b.wasOnline(p.Name) {
				logger.NotifyAdmin("Компонент " + p.Name + " недоступен: " + err.Error())
			}
		}
		statuses = append(statuses, st)
	}
	b.mu.Lock()
	b.last = statuses
	b.mu.Unlock()
}

func (b *StatusBoard) wasOnline(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.last {
		if s.Name == name {
			return s.Status == StatusOnline
		}
	}
	return true
}

func (b *StatusBoard) Statuses() []ComponentStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]ComponentStatus(nil), b.last...)
}

// Healthy true, пока ни одна проверка не завершилась ошибкой
func (b *StatusBoard) Healthy() bool {
	for _, s := range b.Statuses() {
		if s.Status != StatusOnline {
			return false
		}
	}
	return true
}
