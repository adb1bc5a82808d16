package main

import (
	"context"
	"discord-store-bot/config"
	"discord-store-bot/internal/admin"
	"discord-store-bot/internal/affiliate"
	"discord-store-bot/internal/bot"
	"discord-store-bot/internal/catalog"
	"discord-store-bot/internal/db"
	"discord-store-bot/internal/giveaway"
	"discord-store-bot/internal/logger"
	"discord-store-bot/internal/orders"
	"discord-store-bot/internal/security"
	"discord-store-bot/internal/services"
	"discord-store-bot/internal/store"
	"discord-store-bot/internal/store/jsonfile"
	"errors"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const backupRetention = 31 * 24 * time.Hour

// app хранит общие для всех команд зависимости
type app struct {
	cfg      *config.AppConfig
	log      *zap.Logger
	store    store.Store
	archiver services.Archiver
}

func (a *app) loadConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) loadLogger() error {
	l, err := logger.New(a.cfg.LogFile)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logger.SetDefault(l)
	a.log = l
	return nil
}

// loadStore PostgreSQL при заданном DATABASE_URL, иначе JSON-файлы в DATA_DIR
func (a *app) loadStore() error {
	if a.cfg.DatabaseURL != "" {
		s, err := db.Open(a.cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.store = s
		a.log.Info("store opened", zap.String("kind", "postgres"))
		return nil
	}
	s, err := jsonfile.Open(a.cfg.DataDir)
	if err != nil {
		return err
	}
	a.store = s
	a.log.Info("store opened", zap.String("kind", "jsonfile"), zap.String("dir", a.cfg.DataDir))
	return nil
}

func (a *app) loadArchiver(ctx context.Context) error {
	if !a.cfg.Archive.Enabled() {
		return nil
	}
	arc, err := services.NewS3Archiver(ctx, a.cfg.Archive)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	a.archiver = arc
	a.log.Info("archive enabled", zap.String("bucket", a.cfg.Archive.Bucket))
	return nil
}

func (a *app) setup(ctx context.Context, withStore bool) error {
	if err := a.loadConfig(); err != nil {
		return err
	}
	if err := a.loadLogger(); err != nil {
		return err
	}
	if err := a.loadArchiver(ctx); err != nil {
		return err
	}
	if withStore {
		return a.loadStore()
	}
	return nil
}

func (a *app) teardown() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Error("store close failed", zap.Error(err))
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func (a *app) session() (*discordgo.Session, error) {
	return discordgo.New("Bot " + a.cfg.BotToken)
}

func (a *app) backupJob() admin.Backup {
	return admin.Backup{
		Dir:       a.cfg.BackupDir,
		DataDir:   a.cfg.DataDir,
		DSN:       a.cfg.DatabaseURL,
		Retention: backupRetention,
		Archiver:  a.archiver,
	}
}

func (a *app) location() *time.Location {
	if a.cfg.SummaryTimezone != "" {
		if loc, err := time.LoadLocation(a.cfg.SummaryTimezone); err == nil {
			return loc
		}
		a.log.Error("unknown summary timezone, using UTC", zap.String("tz", a.cfg.SummaryTimezone))
	}
	return time.UTC
}

func (a *app) registerCommands(s *discordgo.Session) error {
	appID := a.cfg.ApplicationID
	if appID == "" {
		u, err := s.User("@me")
		if err != nil {
			return fmt.Errorf("resolve application id: %w", err)
		}
		appID = u.ID
	}
	n, err := bot.RegisterCommands(s, appID, a.cfg.GuildID)
	if err != nil {
		return err
	}
	a.log.Info("slash commands registered", zap.Int("count", n), zap.String("guild_id", a.cfg.GuildID))
	return nil
}

func (a *app) run(c *cli.Context) error {
	if err := a.setup(c.Context, true); err != nil {
		return err
	}
	defer a.teardown()
	cfg := a.cfg
	tun := cfg.Tunables

	s, err := a.session()
	if err != nil {
		return err
	}
	discord := bot.NewDiscord(s, cfg, a.archiver)
	logger.InitNotifier(discord, cfg.LogChannelID)

	access := admin.Access{AuthorizedUsers: cfg.AuthorizedUsers, AdminRoleName: cfg.BotAdminRoleName}
	cat := catalog.NewManager(a.store, discord, a.log.Named("catalog"))
	ledger := affiliate.NewLedger(a.store, a.store, a.log.Named("affiliate"))
	engine := orders.NewEngine(a.store, cat, ledger, discord, discord, orders.Config{
		DiscountRate:     decimal.NewFromFloat(tun.Affiliate.DiscountRate),
		GraceDelay:       tun.Tickets.GraceDelay.Duration,
		IdleAfter:        tun.Tickets.IdleAfter.Duration,
		TrustedThreshold: cfg.TrustedBuyerThreshold,
	}, a.log.Named("orders"))
	giveaways := giveaway.NewScheduler(a.store, discord, a.log.Named("giveaway"))
	monitor := security.NewMonitor(a.store, discord, security.Config{
		SpamThreshold:       tun.Security.SpamThreshold,
		SpamWindow:          tun.Security.SpamWindow.Duration,
		WarningLimit:        tun.Security.WarningLimit,
		TimeoutDuration:     tun.Security.TimeoutDuration.Duration,
		DangerousExtensions: tun.Security.DangerousExtensions,
		Exempt:              access.IsAuthorized,
	}, a.log.Named("security"))
	limiter := bot.NewRateLimiter(tun.Tickets.PurchaseCooldown.Duration, access.IsAuthorized)

	board := services.NewStatusBoard(discord.Probe(), services.Probe{
		Name: "store",
		Check: func(ctx context.Context) error {
			_, err := a.store.GetSettings(ctx)
			return err
		},
	})

	b := bot.New(s, bot.Deps{
		Config:    cfg,
		Store:     a.store,
		Catalog:   cat,
		Engine:    engine,
		Ledger:    ledger,
		Giveaways: giveaways,
		Monitor:   monitor,
		Access:    access,
		Limiter:   limiter,
		Discord:   discord,
	})
	if err := b.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	defer b.Close()
	if c.Bool("register") {
		if err := a.registerCommands(s); err != nil {
			return err
		}
	}

	loc := a.location()
	jobs := &services.Jobs{
		GuildID:   cfg.GuildID,
		Giveaways: giveaways,
		Engine:    engine,
		Security:  monitor,
		Orders:    a.store,
		Poster:    discord,
		Status:    board,
		Location:  loc,
	}
	backup := a.backupJob()

	cr := cron.New(cron.WithLocation(loc))
	cr.AddFunc("@every 15s", jobs.FinishGiveaways)
	cr.AddFunc("@every 1h", jobs.SweepTickets)
	cr.AddFunc("@every 1m", func() {
		jobs.PruneSpamTracker()
		limiter.Prune()
	})
	cr.AddFunc("@every 1m", jobs.CheckStatus)
	// Сводка за день перед полуночью по часовому поясу магазина
	cr.AddFunc("59 23 * * *", jobs.PostDailySummary)
	cr.AddFunc("0 3 * * *", func() { admin.AutoBackup(backup) })
	cr.Start()
	defer cr.Stop()
	go jobs.CheckStatus()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", services.HealthHandler(board, cfg.BotVersion))
	srv := &http.Server{Addr: cfg.HealthAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		a.log.Info("health server started", zap.String("addr", cfg.HealthAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("health server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	a.log.Info("bot started", zap.String("version", cfg.BotVersion), zap.String("guild_id", cfg.GuildID))
	<-ctx.Done()

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("health server shutdown failed", zap.Error(err))
	}
	return nil
}

func (a *app) register(c *cli.Context) error {
	if err := a.setup(c.Context, false); err != nil {
		return err
	}
	defer a.teardown()
	s, err := a.session()
	if err != nil {
		return err
	}
	return a.registerCommands(s)
}

func (a *app) export(c *cli.Context) error {
	if err := a.setup(c.Context, true); err != nil {
		return err
	}
	defer a.teardown()
	switch kind := c.String("kind"); kind {
	case "orders":
		all, err := a.store.ListOrders(c.Context)
		if err != nil {
			return err
		}
		return services.ExportOrders(os.Stdout, all)
	case "products":
		all, err := a.store.ListProducts(c.Context)
		if err != nil {
			return err
		}
		return services.ExportProducts(os.Stdout, all)
	default:
		return fmt.Errorf("unknown export kind %q", kind)
	}
}

func (a *app) backup(c *cli.Context) error {
	if err := a.setup(c.Context, false); err != nil {
		return err
	}
	defer a.teardown()
	filename, err := a.backupJob().Run(c.Context, "manual")
	if err != nil {
		return err
	}
	a.log.Info("backup created", zap.String("file", filename))
	return nil
}
