package bot

import (
	"context"
	"discord-store-bot/internal/admin"
	"discord-store-bot/internal/logger"
	"discord-store-bot/internal/orders"
	"discord-store-bot/internal/security"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"strings"
)

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer logger.NotifyOnPanic("onInteraction")
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, s, i)
	case discordgo.InteractionModalSubmit:
		b.handleModal(ctx, s, i)
	}
}

func (b *Bot) handleCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	cmd, ok := b.commands[data.Name]
	if !ok {
		respond(s, i, "Unknown command. Use /help to see what I can do.")
		return
	}
	userID := interactionUser(i).ID
	isAdmin := b.isAdmin(i)
	if cmd.admin && !isAdmin {
		respond(s, i, "You don't have permission to use this command.")
		return
	}
	if !isAdmin && b.limiter.IsLimited(userID, data.Name) {
		respond(s, i, "Please slow down! Wait a few seconds before using this command again.")
		return
	}
	sub, opts := parseOptions(data.Options)
	if cmd.admin {
		name := data.Name
		if sub != "" {
			name += " " + sub
		}
		admin.Audit(userID, name, opts.Audit())
	}
	cmd.run(ctx, s, i, sub, opts)
}

func (b *Bot) handleComponent(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	id := i.MessageComponentData().CustomID
	userID := interactionUser(i).ID
	switch {
	case strings.HasPrefix(id, idPurchaseInitiate):
		if !b.isAdmin(i) && b.limiter.IsLimited(userID, "purchase") {
			respond(s, i, "You are creating orders too quickly. Please wait a moment and try again.")
			return
		}
		b.onPurchaseInitiate(ctx, s, i, strings.TrimPrefix(id, idPurchaseInitiate))
	case strings.HasPrefix(id, idVariantSelect):
		b.onVariantSelect(ctx, s, i, strings.TrimPrefix(id, idVariantSelect))
	case id == idTicketReady:
		b.onTicketReady(ctx, s, i)
	case id == idGiveawayEnter:
		b.onGiveawayEnter(ctx, s, i)
	case strings.HasPrefix(id, idReviewButton):
		b.onReviewButton(s, i, strings.TrimPrefix(id, idReviewButton))
	case id == idReviewSkip:
		b.onReviewSkip(s, i)
	case id == idSupportCreate:
		if !b.isAdmin(i) && b.limiter.IsLimited(userID, "support") {
			respond(s, i, "You are opening support tickets too quickly. Please wait a moment.")
			return
		}
		b.onSupportCreate(s, i)
	case strings.HasPrefix(id, idOrdersPage):
		b.onOrdersPage(ctx, s, i, id)
	default:
		logger.Info("unhandled component", zap.String("custom_id", id))
	}
}

func (b *Bot) handleModal(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	values := modalValues(data)
	switch {
	case strings.HasPrefix(data.CustomID, idQuantityModal):
		b.onQuantitySubmit(ctx, s, i, data.CustomID, values)
	case strings.HasPrefix(data.CustomID, idReviewModal):
		b.onReviewSubmit(ctx, s, i, strings.TrimPrefix(data.CustomID, idReviewModal), values)
	case data.CustomID == idSupportModal:
		b.onSupportSubmit(ctx, s, i, values)
	default:
		logger.Info("unhandled modal", zap.String("custom_id", data.CustomID))
	}
}

// onMessageCreate проверяет сообщения на нарушения и обрабатывает !pay в тикетах
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	defer logger.NotifyOnPanic("onMessageCreate")
	if m.Author == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	msg := security.Message{
		ID:         m.ID,
		ChannelID:  m.ChannelID,
		GuildID:    m.GuildID,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
		FromBot:    m.Author.Bot,
		Content:    m.Content,
	}
	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, a.Filename)
	}
	res, err := b.monitor.Screen(ctx, msg)
	if err != nil {
		logger.Error("security screen failed", zap.String("message_id", m.ID), zap.Error(err))
	}
	if res != nil || m.Author.Bot {
		return
	}

	if method, ok := strings.CutPrefix(strings.TrimSpace(m.Content), "!pay"); ok {
		b.onPay(ctx, s, m, strings.TrimSpace(method))
	}
}

// onPay показывает реквизиты оплаты; только для персонала и только в тикете
// messageMember в MESSAGE_CREATE нет member.permissions, права считаются по кэшу состояния
func messageMember(s *discordgo.Session, m *discordgo.MessageCreate) admin.Member {
	member := admin.Member{UserID: m.Author.ID}
	if m.Member != nil {
		member.Permissions = m.Member.Permissions
	}
	if s != nil && s.State != nil {
		if perms, err := s.State.UserChannelPermissions(m.Author.ID, m.ChannelID); err == nil {
			member.Permissions = perms
		}
	}
	return member
}

func (b *Bot) onPay(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, method string) {
	if !strings.HasPrefix(b.channelName(ctx, m.ChannelID), orders.TicketPrefix) {
		return
	}
	member := messageMember(s, m)
	if m.Member != nil {
		member.RoleNames = b.discord.roleNames(m.GuildID, m.Member.Roles)
	}
	if !b.access.IsAdmin(member) && member.Permissions&discordgo.PermissionManageChannels == 0 {
		if _, err := s.ChannelMessageSendReply(m.ChannelID, "You don't have permission to use this command.", m.Reference()); err != nil {
			logger.Error("pay reply failed", zap.Error(err))
		}
		return
	}
	pm, ok := b.cfg.Tunables.PaymentMethod(method)
	if !ok {
		names := make([]string, 0, len(b.cfg.Tunables.Payments))
		for _, p := range b.cfg.Tunables.Payments {
			names = append(names, "`"+p.Name+"`")
		}
		text := "No payment methods are configured."
		if len(names) > 0 {
			text = "Usage: `!pay <method>`. Available: " + strings.Join(names, ", ")
		}
		if _, err := s.ChannelMessageSendReply(m.ChannelID, text, m.Reference()); err != nil {
			logger.Error("pay reply failed", zap.Error(err))
		}
		return
	}
	e := &discordgo.MessageEmbed{Title: pm.Title, Description: pm.Details, Color: colorInfo}
	if e.Title == "" {
		e.Title = "Payment: " + pm.Name
	}
	if pm.ImageURL != "" {
		e.Image = &discordgo.MessageEmbedImage{URL: pm.ImageURL}
	}
	if _, err := s.ChannelMessageSendEmbed(m.ChannelID, e, discordgo.WithContext(ctx)); err != nil {
		logger.Error("pay embed failed", zap.String("method", pm.Name), zap.Error(err))
		return
	}
	if err := s.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
		logger.Info("pay command message not deleted", zap.Error(err))
	}
}
