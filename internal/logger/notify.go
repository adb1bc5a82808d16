package logger

import (
	"fmt"
	"go.uber.org/zap"
	"sync"
)

// Sender отправляет текст в канал. *discordgo.Session подходит через адаптер в пакете bot.
type Sender interface {
	SendText(channelID, content string) error
}

var (
	sender    Sender
	channelID string
	once      sync.Once
)

// InitNotifier инициализирует уведомления об ошибках в лог-канал Discord
func InitNotifier(s Sender, logChannelID string) {
	once.Do(func() {
		sender = s
		channelID = logChannelID
	})
}

// NotifyAdmin отправляет критическое уведомление в лог-канал
func NotifyAdmin(msg string) {
	if sender == nil || channelID == "" {
		return
	}
	if err := sender.SendText(channelID, "[ALERT] "+msg); err != nil {
		log.Warn("notify admin failed", zap.Error(err))
	}
}

// NotifyOnPanic ловит панику, логирует и уведомляет
func NotifyOnPanic(context string) {
	if r := recover(); r != nil {
		log.Error("panic recovered", zap.String("context", context), zap.Any("panic", r), zap.Stack("stack"))
		NotifyAdmin("Panic in " + context + ": " + toString(r))
	}
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case error:
		return x.Error()
	default:
		return fmt.Sprintf("%v", x)
	}
}
