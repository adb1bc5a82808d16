package bot

import (
	"bytes"
	"context"
	"discord-store-bot/config"
	"discord-store-bot/internal/logger"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/orders"
	"discord-store-bot/internal/security"
	"discord-store-bot/internal/services"
	"errors"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"slices"
	"sort"
	"time"
)

const (
	ticketCategoryName  = "TICKETS"
	supportCategoryName = "SUPPORT"
	transcriptLimit     = 1000
)

const (
	memberPerms = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory | discordgo.PermissionAttachFiles
	staffPerms = memberPerms | discordgo.PermissionManageMessages
)

// Discord реализует порты доменных пакетов поверх сессии discordgo
type Discord struct {
	s        *discordgo.Session
	cfg      *config.AppConfig
	archiver services.Archiver
}

// NewDiscord archiver может быть nil, тогда транскрипты не архивируются
func NewDiscord(s *discordgo.Session, cfg *config.AppConfig, archiver services.Archiver) *Discord {
	return &Discord{s: s, cfg: cfg, archiver: archiver}
}

func isRESTCode(err error, code int) bool {
	var rerr *discordgo.RESTError
	return errors.As(err, &rerr) && rerr.Message != nil && rerr.Message.Code == code
}

// SendText нужен логгеру для уведомлений в лог-канал
func (d *Discord) SendText(channelID, content string) error {
	_, err := d.s.ChannelMessageSend(channelID, content)
	return err
}

func (d *Discord) sendEmbed(ctx context.Context, channelID string, e *discordgo.MessageEmbed) error {
	if channelID == "" {
		return nil
	}
	_, err := d.s.ChannelMessageSendEmbed(channelID, e, discordgo.WithContext(ctx))
	return err
}

// --- catalog.Publisher ---

func (d *Discord) Publish(ctx context.Context, channelID string, p models.Product) (string, error) {
	msg, err := d.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{ListingEmbed(p)},
		Components: ListingComponents(p),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (d *Discord) Refresh(ctx context.Context, p models.Product) error {
	if p.ChannelID == "" || p.MessageID == "" {
		return nil
	}
	embeds := []*discordgo.MessageEmbed{ListingEmbed(p)}
	components := ListingComponents(p)
	_, err := d.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         p.MessageID,
		Channel:    p.ChannelID,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	return err
}

func (d *Discord) Remove(ctx context.Context, p models.Product) error {
	if p.ChannelID == "" || p.MessageID == "" {
		return nil
	}
	return d.s.ChannelMessageDelete(p.ChannelID, p.MessageID, discordgo.WithContext(ctx))
}

// --- orders.Tickets ---

func (d *Discord) roleByName(guildID, name string) (*discordgo.Role, error) {
	if name == "" {
		return nil, nil
	}
	roles, err := d.guildRoles(guildID)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, nil
}

func (d *Discord) guildRoles(guildID string) ([]*discordgo.Role, error) {
	if g, err := d.s.State.Guild(guildID); err == nil && len(g.Roles) > 0 {
		return g.Roles, nil
	}
	return d.s.GuildRoles(guildID)
}

// category находит или создаёт категорию с заданным именем
func (d *Discord) category(ctx context.Context, guildID, name string) (string, error) {
	channels, err := d.s.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	for _, c := range channels {
		if c.Type == discordgo.ChannelTypeGuildCategory && c.Name == name {
			return c.ID, nil
		}
	}
	c, err := d.s.GuildChannelCreate(guildID, name, discordgo.ChannelTypeGuildCategory, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

func ticketChannelName(kind models.TicketKind, username, userID string) string {
	prefix := orders.TicketPrefix
	if kind == models.TicketSupport {
		prefix = orders.SupportPrefix
	}
	name := slug.Make(username)
	if name == "" {
		name = userID
	}
	return prefix + name
}

func (d *Discord) OpenTicket(ctx context.Context, req orders.TicketRequest) (string, error) {
	parent := req.CategoryID
	if parent == "" {
		name := ticketCategoryName
		if req.Kind == models.TicketSupport {
			name = supportCategoryName
		}
		id, err := d.category(ctx, req.GuildID, name)
		if err != nil {
			return "", fmt.Errorf("ticket category: %w", err)
		}
		parent = id
	}

	overwrites := []*discordgo.PermissionOverwrite{
		{ID: req.GuildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: req.UserID, Type: discordgo.PermissionOverwriteTypeMember, Allow: memberPerms},
		{ID: d.s.State.User.ID, Type: discordgo.PermissionOverwriteTypeMember, Allow: staffPerms},
	}
	staff, err := d.roleByName(req.GuildID, d.cfg.StaffRoleName)
	if err != nil {
		logger.Error("staff role lookup failed", zap.String("role", d.cfg.StaffRoleName), zap.Error(err))
	}
	if staff != nil {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID: staff.ID, Type: discordgo.PermissionOverwriteTypeRole, Allow: staffPerms,
		})
	}

	ch, err := d.s.GuildChannelCreateComplex(req.GuildID, discordgo.GuildChannelCreateData{
		Name:                 ticketChannelName(req.Kind, req.Username, req.UserID),
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             parent,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return ch.ID, nil
}

func (d *Discord) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := d.s.ChannelDelete(channelID, discordgo.WithContext(ctx))
	if isRESTCode(err, discordgo.ErrCodeUnknownChannel) {
		return orders.ErrUnknownChannel
	}
	return err
}

// lastActivity время последнего сообщения, а если сообщений нет, время создания канала
func lastActivity(c *discordgo.Channel) time.Time {
	id := c.LastMessageID
	if id == "" {
		id = c.ID
	}
	t, err := discordgo.SnowflakeTimestamp(id)
	if err != nil {
		return time.Now()
	}
	return t
}

func (d *Discord) ListTickets(ctx context.Context, guildID string, cats orders.TicketCategories) ([]orders.Ticket, error) {
	channels, err := d.s.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	categoryIDs := ticketParents(channels, cats)
	var out []orders.Ticket
	for _, c := range channels {
		if c.Type != discordgo.ChannelTypeGuildText || !slices.Contains(categoryIDs, c.ParentID) {
			continue
		}
		out = append(out, orders.Ticket{ID: c.ID, Name: c.Name, LastActivity: lastActivity(c)})
	}
	return out, nil
}

// ticketParents подставляет категорию по умолчанию вместо каждой ненастроенной
func ticketParents(channels []*discordgo.Channel, cats orders.TicketCategories) []string {
	var ids []string
	for _, c := range []struct{ id, name string }{
		{cats.Ticket, ticketCategoryName},
		{cats.Support, supportCategoryName},
	} {
		if c.id != "" {
			ids = append(ids, c.id)
			continue
		}
		for _, ch := range channels {
			if ch.Type == discordgo.ChannelTypeGuildCategory && ch.Name == c.name {
				ids = append(ids, ch.ID)
			}
		}
	}
	return ids
}

// --- orders.Fulfillment ---

func (d *Discord) channelMessages(ctx context.Context, channelID string) ([]*discordgo.Message, error) {
	var all []*discordgo.Message
	before := ""
	for len(all) < transcriptLimit {
		batch, err := d.s.ChannelMessages(channelID, 100, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < 100 {
			break
		}
		before = batch[len(batch)-1].ID
	}
	return all, nil
}

func transcriptMessages(msgs []*discordgo.Message) []services.TranscriptMessage {
	out := make([]services.TranscriptMessage, 0, len(msgs))
	for _, m := range msgs {
		tm := services.TranscriptMessage{Timestamp: m.Timestamp, Content: m.Content}
		if m.Author != nil {
			tm.Author = m.Author.Username
			tm.AvatarURL = m.Author.AvatarURL("64")
		}
		for _, e := range m.Embeds {
			tm.Embeds = append(tm.Embeds, services.TranscriptEmbed{Title: e.Title, Description: e.Description})
		}
		out = append(out, tm)
	}
	return out
}

func (d *Discord) PostTranscript(ctx context.Context, channelID string, o models.Order) error {
	if d.cfg.TranscriptLogChannelID == "" && d.archiver == nil {
		return nil
	}
	msgs, err := d.channelMessages(ctx, channelID)
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}
	name := "ticket-" + o.Username
	if ch, err := d.s.State.Channel(channelID); err == nil {
		name = ch.Name
	}
	html, err := services.RenderTranscript(name, transcriptMessages(msgs))
	if err != nil {
		return err
	}
	file := services.TranscriptFileName(channelID)

	if d.archiver != nil {
		if err := d.archiver.Put(ctx, "transcripts/"+file, bytes.NewReader(html), "text/html"); err != nil {
			logger.Error("transcript archive failed", zap.String("order_id", o.OrderID), zap.Error(err))
		}
	}
	if d.cfg.TranscriptLogChannelID == "" {
		return nil
	}
	_, err = d.s.ChannelMessageSendComplex(d.cfg.TranscriptLogChannelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("Transcript for `%s` (order `%s`, buyer <@%s>)", name, o.OrderID, o.UserID),
		Files:   []*discordgo.File{{Name: file, ContentType: "text/html", Reader: bytes.NewReader(html)}},
	}, discordgo.WithContext(ctx))
	return err
}

func (d *Discord) dm(ctx context.Context, userID string, msg *discordgo.MessageSend) error {
	ch, err := d.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	_, err = d.s.ChannelMessageSendComplex(ch.ID, msg, discordgo.WithContext(ctx))
	return err
}

func (d *Discord) SendInvoice(ctx context.Context, o models.Order) error {
	return d.dm(ctx, o.UserID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{InvoiceEmbed(o)},
		Components: feedbackComponents(o.ProductID),
	})
}

func (d *Discord) LogOrder(ctx context.Context, o models.Order) error {
	return d.sendEmbed(ctx, d.cfg.OrderLogChannelID, OrderLogEmbed(o))
}

func (d *Discord) GrantTrustedBuyer(ctx context.Context, guildID, userID string, completed int) error {
	if d.cfg.TrustedBuyerRoleID == "" {
		return nil
	}
	if m, err := d.s.State.Member(guildID, userID); err == nil && slices.Contains(m.Roles, d.cfg.TrustedBuyerRoleID) {
		return nil
	}
	if err := d.s.GuildMemberRoleAdd(guildID, userID, d.cfg.TrustedBuyerRoleID, discordgo.WithContext(ctx)); err != nil {
		return err
	}
	logger.Info("trusted buyer role granted", zap.String("user_id", userID), zap.Int("completed", completed))
	return nil
}

// --- giveaway.Announcer ---

func (d *Discord) Announce(ctx context.Context, channelID string, g models.Giveaway) (string, error) {
	msg, err := d.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{GiveawayEmbed(g)},
		Components: giveawayComponents(false),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (d *Discord) AnnounceWinners(ctx context.Context, g models.Giveaway) error {
	embeds := []*discordgo.MessageEmbed{GiveawayEmbed(g)}
	components := giveawayComponents(true)
	_, editErr := d.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         g.MessageID,
		Channel:    g.ChannelID,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))

	content := fmt.Sprintf("The giveaway for **%s** has ended with no participants.", g.Prize)
	if len(g.Winners) > 0 {
		content = fmt.Sprintf("Congratulations %s! You won the **%s**!", mentions(g.Winners, ""), g.Prize)
	}
	_, sendErr := d.s.ChannelMessageSendComplex(g.ChannelID, &discordgo.MessageSend{
		Content:         content,
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: g.Winners},
	}, discordgo.WithContext(ctx))
	return errors.Join(editErr, sendErr)
}

func (d *Discord) AnnounceReroll(ctx context.Context, channelID string, g models.Giveaway, winnerID string) error {
	_, err := d.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         fmt.Sprintf("🎉 The new winner is <@%s>! You won the **%s**!", winnerID, g.Prize),
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: []string{winnerID}},
	}, discordgo.WithContext(ctx))
	return err
}

// --- security.Enforcer ---

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	err := d.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	if isRESTCode(err, discordgo.ErrCodeUnknownMessage) {
		return nil
	}
	return err
}

func (d *Discord) Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	return d.s.GuildMemberTimeout(guildID, userID, &until, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
}

func (d *Discord) Report(ctx context.Context, r security.Result) error {
	return d.sendEmbed(ctx, d.cfg.LogChannelID, violationEmbed(r))
}

// --- services.SummaryPoster ---

func (d *Discord) PostSummary(ctx context.Context, s services.Summary) error {
	return d.sendEmbed(ctx, d.cfg.OrderLogChannelID, SummaryEmbed("Daily summary", s))
}

// Probe проверяет, что шлюз Discord подключён
func (d *Discord) Probe() services.Probe {
	return services.Probe{Name: "discord", Check: func(ctx context.Context) error {
		if !d.s.DataReady {
			return errors.New("gateway not connected")
		}
		return nil
	}}
}

// roleNames переводит id ролей участника в имена для проверки доступа
func (d *Discord) roleNames(guildID string, ids []string) []string {
	roles, err := d.guildRoles(guildID)
	if err != nil {
		return nil
	}
	var names []string
	for _, r := range roles {
		if slices.Contains(ids, r.ID) {
			names = append(names, r.Name)
		}
	}
	sort.Strings(names)
	return names
}

func (d *Discord) deliverFile(ctx context.Context, userID, productName string, file *discordgo.File) error {
	return d.dm(ctx, userID, &discordgo.MessageSend{
		Content: fmt.Sprintf("Thank you for your purchase! Here is your product: **%s**", productName),
		Files:   []*discordgo.File{file},
	})
}

func (d *Discord) userCreated(userID string) time.Time {
	t, err := discordgo.SnowflakeTimestamp(userID)
	if err != nil {
		return time.Now()
	}
	return t
}
