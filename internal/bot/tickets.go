package bot

import (
	"context"
	"discord-store-bot/internal/logger"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/orders"
	"discord-store-bot/internal/services"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"io"
	"net/http"
	"strings"
)

// maxDeliverySize предел Discord для вложений без Nitro
const maxDeliverySize = 25 << 20

func (b *Bot) graceText() string {
	return fmt.Sprintf("This ticket will be deleted in %s.", b.cfg.Tunables.Tickets.GraceDelay.Duration)
}

// cmdClose /close status:done|cancelled
func (b *Bot) cmdClose(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, opts options) {
	status := models.StatusCancelled
	if opts.String("status") == "done" {
		status = models.StatusCompleted
	}
	name := b.channelName(ctx, i.ChannelID)
	if !strings.HasPrefix(name, orders.TicketPrefix) {
		respond(s, i, userMessage(orders.ErrNotTicket))
		return
	}
	deferPublic(s, i)
	res, err := b.engine.Close(ctx, orders.CloseRequest{
		ChannelID:   i.ChannelID,
		ChannelName: name,
		ClosedBy:    interactionUser(i).ID,
		Status:      status,
	})
	if err != nil {
		editReplyError(s, i, "close", err)
		return
	}
	editReply(s, i, closeReport(res, b.graceText()))
	if failed := res.Failed(); len(failed) > 0 && res.Order != nil {
		names := make([]string, len(failed))
		for n, f := range failed {
			names[n] = f.Name
		}
		logger.NotifyAdmin(fmt.Sprintf("Order %s closed, but these steps failed: %s", res.Order.OrderID, strings.Join(names, ", ")))
	}
}

// closeReport текст ответа на /close с итогами шагов
func closeReport(res orders.CloseResult, grace string) string {
	var sb strings.Builder
	switch {
	case res.Order != nil:
		fmt.Fprintf(&sb, "✅ Order `%s` completed: %s × %d for %s.", res.Order.OrderID, res.Order.ProductName, res.Order.Quantity, services.FormatRupiah(res.Order.FinalPrice))
	case res.Status == models.StatusCompleted:
		sb.WriteString("✅ Ticket closed.")
	default:
		sb.WriteString("❌ Order cancelled.")
	}
	if res.Warning != "" {
		sb.WriteString("\n⚠️ " + capitalize(res.Warning) + ".")
	}
	for _, st := range res.Failed() {
		fmt.Fprintf(&sb, "\n⚠️ Step `%s` failed: %v", st.Name, st.Err)
	}
	sb.WriteString("\n" + grace)
	return sb.String()
}

func (b *Bot) cmdCloseSupport(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, opts options) {
	name := b.channelName(ctx, i.ChannelID)
	err := b.engine.CloseSupport(ctx, i.ChannelID, name, interactionUser(i).ID)
	if err != nil {
		respondError(s, i, "close-support", err)
		return
	}
	text := "This support ticket has been closed. " + b.graceText()
	if reason := opts.String("reason"); reason != "" {
		text += "\nReason: " + reason
	}
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: text},
	})
	if err != nil {
		logger.Error("interaction respond failed", zap.Error(err))
	}
}

// cmdKirim отправляет файл товара владельцу тикета в личные сообщения
func (b *Bot) cmdKirim(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, opts options) {
	owner, err := b.engine.Owner(ctx, i.ChannelID)
	if err != nil {
		respond(s, i, userMessage(orders.ErrNotTicket))
		return
	}
	data := i.ApplicationCommandData()
	var att *discordgo.MessageAttachment
	if data.Resolved != nil {
		att = data.Resolved.Attachments[opts.ID("file")]
	}
	if att == nil {
		respond(s, i, "Please attach the product file.")
		return
	}
	if att.Size > maxDeliverySize {
		respond(s, i, "That file is too large to send by DM.")
		return
	}
	deferReply(s, i)

	body, err := download(ctx, att.URL)
	if err != nil {
		editReplyError(s, i, "kirim download", err)
		return
	}
	defer body.Close()
	product := opts.String("product_name")
	file := &discordgo.File{Name: att.Filename, ContentType: att.ContentType, Reader: body}
	if err := b.discord.deliverFile(ctx, owner.UserID, product, file); err != nil {
		logger.Error("product delivery failed", zap.String("user_id", owner.UserID), zap.Error(err))
		editReply(s, i, "I couldn't DM the buyer. They may have direct messages disabled.")
		return
	}
	logger.Info("product delivered", zap.String("user_id", owner.UserID), zap.String("product", product))
	editReply(s, i, fmt.Sprintf("**%s** was sent to <@%s>.", product, owner.UserID))
}

func download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download attachment: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (b *Bot) cmdSupportPanel(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, opts options) {
	channelID := i.ChannelID
	if opts.Has("channel") {
		channelID = opts.ID("channel")
	}
	e, components := supportPanel()
	_, err := s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{e},
		Components: components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		respondError(s, i, "supportpanel", err)
		return
	}
	respond(s, i, fmt.Sprintf("Support panel posted in <#%s>.", channelID))
}

func (b *Bot) onSupportCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	showModal(s, i, idSupportModal, "Open a support ticket",
		discordgo.TextInput{
			CustomID:    "order_id",
			Label:       "Order ID",
			Style:       discordgo.TextInputShort,
			Placeholder: "ORD-20240101-AB12",
			Required:    true,
			MaxLength:   40,
		},
		discordgo.TextInput{
			CustomID:  "issue_description",
			Label:     "Describe the problem",
			Style:     discordgo.TextInputParagraph,
			Required:  true,
			MaxLength: 1000,
		},
	)
}

func (b *Bot) onSupportSubmit(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, values map[string]string) {
	deferReply(s, i)
	u := interactionUser(i)
	channelID, o, err := b.engine.OpenSupport(ctx, orders.SupportRequest{
		GuildID:  i.GuildID,
		UserID:   u.ID,
		Username: u.Username,
		OrderID:  values["order_id"],
		Issue:    values["issue_description"],
	})
	if err != nil {
		editReplyError(s, i, "support ticket", err)
		return
	}
	e := orderEmbed(o)
	e.Title = "Support request for " + o.OrderID
	e.Description = values["issue_description"]
	e.Color = colorPending
	_, err = s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("<@%s> opened a support ticket. Staff will reply here.", u.ID),
		Embeds:  []*discordgo.MessageEmbed{e},
	}, discordgo.WithContext(ctx))
	if err != nil {
		logger.Error("support welcome failed", zap.String("channel_id", channelID), zap.Error(err))
	}
	editReply(s, i, fmt.Sprintf("Your support ticket has been created: <#%s>", channelID))
}

// cmdSetting /setting ticket-category|support-category
func (b *Bot) cmdSetting(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, sub string, opts options) {
	settings, err := b.store.GetSettings(ctx)
	if err != nil {
		respondError(s, i, "setting", err)
		return
	}
	category := opts.ID("category")
	switch sub {
	case "ticket-category":
		settings.TicketCategoryID = category
	case "support-category":
		settings.SupportCategoryID = category
	default:
		respond(s, i, "Unknown subcommand.")
		return
	}
	if err := b.store.SaveSettings(ctx, settings); err != nil {
		respondError(s, i, "setting", err)
		return
	}
	respond(s, i, fmt.Sprintf("New %s tickets will be created under <#%s>.", strings.TrimSuffix(sub, "-category"), category))
}

func (b *Bot) cmdTestMode(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, opts options) {
	settings, err := b.store.GetSettings(ctx)
	if err != nil {
		respondError(s, i, "testmode", err)
		return
	}
	settings.TestMode = opts.Bool("enabled")
	if err := b.store.SaveSettings(ctx, settings); err != nil {
		respondError(s, i, "testmode", err)
		return
	}
	state := "disabled"
	if settings.TestMode {
		state = "enabled. Closed tickets will not record orders or change stock"
	}
	logger.Info("test mode changed", zap.Bool("enabled", settings.TestMode))
	respond(s, i, "Test mode "+state+".")
}
