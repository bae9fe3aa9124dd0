package bot

import (
	"errors"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, errors.New("discord: empty bot token")
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentDirectMessages
	return dg, nil
}

// RegisterCommands needs an open session, since it reads the bot user id
// from the session state.
func RegisterCommands(dg *discordgo.Session, logger *slog.Logger) {
	logger.Info("registering bot commands", slog.Int("count", len(Commands)))
	for _, command := range Commands {
		if _, err := dg.ApplicationCommandCreate(dg.State.User.ID, "", command); err != nil {
			logger.Error("cannot create command",
				slog.String("command", command.Name),
				slog.String("error", err.Error()),
			)
		}
	}
}
