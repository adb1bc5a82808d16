package bot

import (
	"context"
	"discord-store-bot/config"
	"discord-store-bot/internal/admin"
	"discord-store-bot/internal/affiliate"
	"discord-store-bot/internal/catalog"
	"discord-store-bot/internal/giveaway"
	"discord-store-bot/internal/logger"
	"discord-store-bot/internal/orders"
	"discord-store-bot/internal/security"
	"discord-store-bot/internal/store"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"time"
)

// handlerTimeout ограничивает время обработки одного взаимодействия
const handlerTimeout = 2 * time.Minute

type handlerFunc func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, sub string, opts options)

type command struct {
	admin bool
	run   handlerFunc
}

// Deps всё, что бот получает от main
type Deps struct {
	Config    *config.AppConfig
	Store     store.Store
	Catalog   *catalog.Manager
	Engine    *orders.Engine
	Ledger    *affiliate.Ledger
	Giveaways *giveaway.Scheduler
	Monitor   *security.Monitor
	Access    admin.Access
	Limiter   *RateLimiter
	Discord   *Discord
}

type Bot struct {
	s         *discordgo.Session
	cfg       *config.AppConfig
	store     store.Store
	catalog   *catalog.Manager
	engine    *orders.Engine
	ledger    *affiliate.Ledger
	giveaways *giveaway.Scheduler
	monitor   *security.Monitor
	access    admin.Access
	limiter   *RateLimiter
	discord   *Discord
	started   time.Time

	commands map[string]command
}

func New(s *discordgo.Session, d Deps) *Bot {
	b := &Bot{
		s:         s,
		cfg:       d.Config,
		store:     d.Store,
		catalog:   d.Catalog,
		engine:    d.Engine,
		ledger:    d.Ledger,
		giveaways: d.Giveaways,
		monitor:   d.Monitor,
		access:    d.Access,
		limiter:   d.Limiter,
		discord:   d.Discord,
		started:   time.Now(),
	}
	b.commands = map[string]command{
		"listing":          {admin: true, run: b.cmdListing},
		"salestop":         {admin: true, run: b.cmdSalesTop},
		"close":            {admin: true, run: b.cmdClose},
		"close-support":    {admin: true, run: b.cmdCloseSupport},
		"kirim":            {admin: true, run: b.cmdKirim},
		"supportpanel":     {admin: true, run: b.cmdSupportPanel},
		"setting":          {admin: true, run: b.cmdSetting},
		"testmode":         {admin: true, run: b.cmdTestMode},
		"export":           {admin: true, run: b.cmdExport},
		"summary":          {admin: true, run: b.cmdSummary},
		"ticketstats":      {admin: true, run: b.cmdTicketStats},
		"affiliate":        {admin: true, run: b.cmdAffiliate},
		"giveaway":         {admin: true, run: b.cmdGiveaway},
		"addphishing":      {admin: true, run: b.cmdAddPhishing},
		"removephishing":   {admin: true, run: b.cmdRemovePhishing},
		"listphishing":     {admin: true, run: b.cmdListPhishing},
		"warnings":         {admin: true, run: b.cmdWarnings},
		"clearwarnings":    {admin: true, run: b.cmdClearWarnings},
		"violationhistory": {admin: true, run: b.cmdViolationHistory},
		"userinfo":         {admin: true, run: b.cmdUserInfo},
		"ann":              {admin: true, run: b.cmdAnnounce},
		"testimonial":      {admin: true, run: b.cmdTestimonial},

		"daftar-affiliate": {run: b.cmdRegisterAffiliate},
		"commission":       {run: b.cmdCommission},
		"myaffiliate":      {run: b.cmdMyAffiliate},
		"leaderboard":      {run: b.cmdLeaderboard},
		"redeem":           {run: b.cmdRedeem},
		"checkorder":       {run: b.cmdCheckOrder},
		"myorders":         {run: b.cmdMyOrders},
		"avatar":           {run: b.cmdAvatar},
		"coinflip":         {run: b.cmdCoinflip},
		"help":             {run: b.cmdHelp},
		"version":          {run: b.cmdVersion},
	}
	return b
}

// Open подписывается на события и подключается к шлюзу
func (b *Bot) Open() error {
	b.s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent
	b.s.AddHandler(b.onReady)
	b.s.AddHandler(b.onInteraction)
	b.s.AddHandler(b.onMessageCreate)
	return b.s.Open()
}

func (b *Bot) Close() error {
	return b.s.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	logger.Info("bot connected", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
}

// isAdmin проверяет автора взаимодействия
func (b *Bot) isAdmin(i *discordgo.InteractionCreate) bool {
	m := admin.Member{UserID: interactionUser(i).ID}
	if i.Member != nil {
		m.Permissions = i.Member.Permissions
		m.RoleNames = b.discord.roleNames(i.GuildID, i.Member.Roles)
	}
	return b.access.IsAdmin(m)
}

// isStaff админ или участник с правом управлять каналами
func (b *Bot) isStaff(i *discordgo.InteractionCreate) bool {
	if i.Member != nil && i.Member.Permissions&discordgo.PermissionManageChannels != 0 {
		return true
	}
	return b.isAdmin(i)
}

// channelName имя канала из кэша или REST
func (b *Bot) channelName(ctx context.Context, channelID string) string {
	if ch, err := b.s.State.Channel(channelID); err == nil {
		return ch.Name
	}
	ch, err := b.s.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return ""
	}
	return ch.Name
}

func (b *Bot) location() *time.Location {
	loc, err := time.LoadLocation(b.cfg.SummaryTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
