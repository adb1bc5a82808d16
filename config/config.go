package config

import (
	"errors"
	"fmt"
	"github.com/joho/godotenv"
	"log"
	"os"
	"strconv"
	"strings"
)

// ErrMissingToken возвращается, если не задан DISCORD_TOKEN
var ErrMissingToken = errors.New("DISCORD_TOKEN is not set")

type AppConfig struct {
	BotToken      string
	ApplicationID string
	GuildID       string
	BotVersion    string

	DataDir     string
	DatabaseURL string
	BackupDir   string
	LogFile     string
	HealthAddr  string
	ConfigFile  string

	LogChannelID           string
	OrderLogChannelID      string
	TranscriptLogChannelID string
	TestimonialChannelID   string
	FeedbackLogChannelID   string
	AuthorizedUsers        []string
	StaffRoleName          string
	BotAdminRoleName       string
	TrustedBuyerRoleID     string
	TrustedBuyerThreshold  int
	SummaryTimezone        string
	Archive                ArchiveConfig
	Tunables               Tunables
}

// ArchiveConfig описывает S3-совместимое хранилище для транскриптов, выгрузок и бэкапов
type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// Load читает .env, переменные окружения и необязательный TOML-файл с настройками
func Load() (*AppConfig, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println(".env file not found, relying on environment variables")
	}

	cfg := &AppConfig{
		BotToken:               os.Getenv("DISCORD_TOKEN"),
		ApplicationID:          os.Getenv("APPLICATION_ID"),
		GuildID:                os.Getenv("GUILD_ID"),
		BotVersion:             envOr("BOT_VERSION", "dev"),
		DataDir:                envOr("DATA_DIR", "data"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		BackupDir:              envOr("BACKUP_DIR", "backups"),
		LogFile:                envOr("LOG_FILE", "bot.log"),
		HealthAddr:             envOr("HEALTH_ADDR", ":8080"),
		ConfigFile:             envOr("CONFIG_FILE", "storebot.toml"),
		LogChannelID:           os.Getenv("LOG_CHANNEL_ID"),
		OrderLogChannelID:      os.Getenv("ORDER_LOG_CHANNEL_ID"),
		TranscriptLogChannelID: os.Getenv("TRANSCRIPT_LOG_CHANNEL_ID"),
		TestimonialChannelID:   os.Getenv("TESTIMONIAL_CHANNEL_ID"),
		FeedbackLogChannelID:   os.Getenv("FEEDBACK_LOG_CHANNEL_ID"),
		AuthorizedUsers:        splitList(os.Getenv("AUTHORIZED_USERS")),
		StaffRoleName:          envOr("STAFF_ROLE_NAME", "Staff"),
		BotAdminRoleName:       envOr("BOT_ADMIN_ROLE_NAME", "Bot Admin"),
		TrustedBuyerRoleID:     os.Getenv("TRUSTED_BUYER_ROLE_ID"),
		SummaryTimezone:        envOr("SUMMARY_TIMEZONE", "Asia/Jakarta"),
		Archive: ArchiveConfig{
			Bucket:          os.Getenv("ARCHIVE_BUCKET"),
			Region:          envOr("ARCHIVE_REGION", "auto"),
			Endpoint:        os.Getenv("ARCHIVE_ENDPOINT"),
			AccessKeyID:     os.Getenv("ARCHIVE_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("ARCHIVE_SECRET_ACCESS_KEY"),
		},
	}

	cfg.TrustedBuyerThreshold = 10
	if v := os.Getenv("TRUSTED_BUYER_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("TRUSTED_BUYER_THRESHOLD must be a positive integer, got %q", v)
		}
		cfg.TrustedBuyerThreshold = n
	}

	tun, err := LoadTunables(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}
	cfg.Tunables = tun

	if cfg.BotToken == "" {
		return nil, ErrMissingToken
	}
	return cfg, nil
}

// IsAuthorized проверяет, входит ли пользователь в AUTHORIZED_USERS
func (c *AppConfig) IsAuthorized(userID string) bool {
	for _, id := range c.AuthorizedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
