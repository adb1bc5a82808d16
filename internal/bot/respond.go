package bot

import (
	"discord-store-bot/internal/affiliate"
	"discord-store-bot/internal/catalog"
	"discord-store-bot/internal/giveaway"
	"discord-store-bot/internal/logger"
	"discord-store-bot/internal/orders"
	"discord-store-bot/internal/store"
	"discord-store-bot/internal/validation"
	"errors"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"strconv"
	"strings"
)

const genericFailure = "Something went wrong while processing that. The staff has been notified."

// userMessage переводит ошибку домена в текст для пользователя
func userMessage(err error) string {
	var verr *validation.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, catalog.ErrPartial):
		return "Saved, but the posted listing could not be updated."
	case errors.Is(err, affiliate.ErrSelfReferral):
		return "You cannot use your own affiliate code."
	case errors.Is(err, affiliate.ErrUnknownCode):
		return "That affiliate code does not exist."
	case errors.Is(err, affiliate.ErrNotRegistered):
		return "You are not registered as an affiliate yet. Use /daftar-affiliate first."
	case errors.Is(err, affiliate.ErrUnknownTier):
		return "That tier does not exist."
	case errors.Is(err, catalog.ErrInsufficientStock):
		return "There is not enough stock left to complete this order. Cancel the ticket or restock first."
	case errors.Is(err, catalog.ErrUnknownVariant):
		return "That variant does not exist on this listing."
	case errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrOutOfStock),
		errors.Is(err, orders.ErrCodeAlreadyApplied),
		errors.Is(err, orders.ErrNotTicket),
		errors.Is(err, orders.ErrTicketClosed),
		errors.Is(err, orders.ErrNoPendingOrder),
		errors.Is(err, orders.ErrUnknownOrder),
		errors.Is(err, orders.ErrNotOwner),
		errors.Is(err, giveaway.ErrUnknown),
		errors.Is(err, giveaway.ErrEnded),
		errors.Is(err, giveaway.ErrNotEnded),
		errors.Is(err, giveaway.ErrAlreadyEntered),
		errors.Is(err, giveaway.ErrNoParticipants),
		errors.Is(err, giveaway.ErrInvalidDuration):
		return capitalize(err.Error()) + "."
	case errors.Is(err, store.ErrNotFound):
		return "Not found."
	case errors.Is(err, store.ErrExists):
		return "That already exists."
	}
	return genericFailure
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// isInternal сообщает, нужно ли логировать ошибку как сбой, а не как отказ пользователю
func isInternal(err error) bool {
	return err != nil && userMessage(err) == genericFailure
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		logger.Error("interaction respond failed", zap.Error(err))
	}
}

func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components ...discordgo.MessageComponent) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		logger.Error("interaction respond failed", zap.Error(err))
	}
}

// respondError отвечает пользователю и пишет в лог внутренние сбои
func respondError(s *discordgo.Session, i *discordgo.InteractionCreate, where string, err error) {
	if isInternal(err) {
		logger.Error(where+" failed", zap.String("user_id", interactionUser(i).ID), zap.Error(err))
	}
	respond(s, i, userMessage(err))
}

// deferReply откладывает ответ, когда обработка может занять больше трёх секунд
func deferReply(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		logger.Error("interaction defer failed", zap.Error(err))
	}
}

// deferPublic как deferReply, но ответ увидят все в канале
func deferPublic(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		logger.Error("interaction defer failed", zap.Error(err))
	}
}

func editReply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		logger.Error("interaction edit failed", zap.Error(err))
	}
}

func editReplyError(s *discordgo.Session, i *discordgo.InteractionCreate, where string, err error) {
	if isInternal(err) {
		logger.Error(where+" failed", zap.String("user_id", interactionUser(i).ID), zap.Error(err))
	}
	editReply(s, i, userMessage(err))
}

func showModal(s *discordgo.Session, i *discordgo.InteractionCreate, customID, title string, inputs ...discordgo.TextInput) {
	rows := make([]discordgo.MessageComponent, 0, len(inputs))
	for _, in := range inputs {
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{in}})
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   customID,
			Title:      title,
			Components: rows,
		},
	})
	if err != nil {
		logger.Error("show modal failed", zap.String("custom_id", customID), zap.Error(err))
	}
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	if i.User != nil {
		return i.User
	}
	return &discordgo.User{}
}

// options раскладывает аргументы команды по имени, спускаясь в подкоманды
type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func parseOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) (sub string, out options) {
	out = make(options)
	for _, o := range opts {
		switch o.Type {
		case discordgo.ApplicationCommandOptionSubCommandGroup, discordgo.ApplicationCommandOptionSubCommand:
			inner, innerOpts := parseOptions(o.Options)
			sub = o.Name
			if inner != "" {
				sub += " " + inner
			}
			for k, v := range innerOpts {
				out[k] = v
			}
		default:
			out[o.Name] = o
		}
	}
	return sub, out
}

func (o options) String(name string) string {
	if v, ok := o[name]; ok {
		if s, ok := v.Value.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// Ptr возвращает указатель на строку, только если аргумент передан
func (o options) Ptr(name string) *string {
	if _, ok := o[name]; !ok {
		return nil
	}
	s := o.String(name)
	return &s
}

func (o options) Int(name string, def int) int {
	if v, ok := o[name]; ok {
		if f, ok := v.Value.(float64); ok {
			return int(f)
		}
	}
	return def
}

func (o options) Float(name string) (float64, bool) {
	if v, ok := o[name]; ok {
		f, ok := v.Value.(float64)
		return f, ok
	}
	return 0, false
}

func (o options) Bool(name string) bool {
	if v, ok := o[name]; ok {
		b, _ := v.Value.(bool)
		return b
	}
	return false
}

func (o options) Has(name string) bool {
	_, ok := o[name]
	return ok
}

// ID возвращает id пользователя, канала, роли или вложения
func (o options) ID(name string) string {
	return o.String(name)
}

// Audit возвращает аргументы в виде строк для журнала админ-действий
func (o options) Audit() map[string]string {
	out := make(map[string]string, len(o))
	for k, v := range o {
		switch x := v.Value.(type) {
		case string:
			out[k] = x
		case float64:
			out[k] = strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(x)
		}
	}
	return out
}

// modalValues собирает значения текстовых полей модального окна
func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	out := make(map[string]string)
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, rc := range row.Components {
			if ti, ok := rc.(*discordgo.TextInput); ok {
				out[ti.CustomID] = strings.TrimSpace(ti.Value)
			}
		}
	}
	return out
}
