package bot

import (
	"context"
	"discord-store-bot/internal/giveaway"
	"discord-store-bot/internal/logger"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// cmdGiveaway /giveaway start|end|reroll
func (b *Bot) cmdGiveaway(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, sub string, opts options) {
	switch sub {
	case "start":
		channelID := i.ChannelID
		if opts.Has("channel") {
			channelID = opts.ID("channel")
		}
		g, err := b.giveaways.Start(ctx, giveaway.StartInput{
			GuildID:          i.GuildID,
			ChannelID:        channelID,
			HostID:           interactionUser(i).ID,
			Prize:            opts.String("prize"),
			Winners:          opts.Int("winners", 1),
			Duration:         opts.String("duration"),
			RequiredWinnerID: opts.ID("required_winner"),
		})
		if err != nil {
			respondError(s, i, "giveaway start", err)
			return
		}
		respond(s, i, fmt.Sprintf("Giveaway for **%s** started in <#%s>. It ends %s. Message id: `%s`", g.Prize, g.ChannelID, timestamp(g.EndTime), g.MessageID))
	case "end":
		g, err := b.giveaways.EndEarly(ctx, opts.String("message_id"))
		if err != nil {
			respondError(s, i, "giveaway end", err)
			return
		}
		respond(s, i, fmt.Sprintf("Giveaway for **%s** ended. Winners: %s", g.Prize, mentions(g.Winners, "none")))
	case "reroll":
		winner, err := b.giveaways.Reroll(ctx, opts.String("message_id"), i.ChannelID)
		if err != nil {
			respondError(s, i, "giveaway reroll", err)
			return
		}
		respond(s, i, fmt.Sprintf("New winner: <@%s>", winner))
	default:
		respond(s, i, "Unknown subcommand.")
	}
}

// onGiveawayEnter розыгрыш определяется по сообщению с кнопкой
func (b *Bot) onGiveawayEnter(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Message == nil {
		respond(s, i, genericFailure)
		return
	}
	userID := interactionUser(i).ID
	g, err := b.giveaways.Enter(ctx, i.Message.ID, userID)
	if err != nil {
		respondError(s, i, "giveaway enter", err)
		return
	}
	logger.Info("giveaway entry", zap.String("message_id", g.MessageID), zap.String("user_id", userID), zap.Int("participants", len(g.Participants)))
	respond(s, i, fmt.Sprintf("You have entered the giveaway for **%s**! Good luck!", g.Prize))
}
