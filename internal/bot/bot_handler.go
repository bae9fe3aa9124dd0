package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Gurkunwar/dailybot-engine/internal/notify"
	"github.com/Gurkunwar/dailybot-engine/internal/services"
	"github.com/bwmarrin/discordgo"
)

const interactionTimeout = 5 * time.Second

type BotHandler struct {
	Session   *discordgo.Session
	Manager   *services.Manager
	Collector *services.Collector
	Summaries *services.SummaryGenerator
	Projects  *services.ProjectService
	Logger    *slog.Logger
}

func NewBotHandler(session *discordgo.Session,
	manager *services.Manager,
	collector *services.Collector,
	summaries *services.SummaryGenerator,
	projects *services.ProjectService,
	logger *slog.Logger) *BotHandler {

	if logger == nil {
		logger = slog.Default()
	}
	return &BotHandler{
		Session:   session,
		Manager:   manager,
		Collector: collector,
		Summaries: summaries,
		Projects:  projects,
		Logger:    logger,
	}
}

func (h *BotHandler) OnInteraction(session *discordgo.Session, intr *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	switch intr.Type {
	case discordgo.InteractionApplicationCommand:
		switch intr.ApplicationCommandData().Name {
		case "standup":
			h.handleStandup(ctx, session, intr)
		case "standup-summary":
			h.handleSummary(ctx, session, intr)
		case "add-member":
			h.handleAddMember(ctx, session, intr)
		case "remove-member":
			h.handleRemoveMember(ctx, session, intr)
		case "set-channel":
			h.handleSetChannel(ctx, session, intr)
		case "help":
			h.handleHelp(session, intr)
		}

	case discordgo.InteractionMessageComponent:
		customID := intr.MessageComponentData().CustomID
		if strings.HasPrefix(customID, notify.OpenModalPrefix) {
			sessionID, ok := parseSessionID(customID, notify.OpenModalPrefix)
			if !ok {
				respondWithError(session, intr.Interaction, "Unknown standup.")
				return
			}
			h.openAnswerModal(ctx, session, intr, sessionID)
		}

	case discordgo.InteractionModalSubmit:
		customID := intr.ModalSubmitData().CustomID
		if strings.HasPrefix(customID, answerModalPrefix) {
			sessionID, ok := parseSessionID(customID, answerModalPrefix)
			if !ok {
				respondWithError(session, intr.Interaction, "Unknown standup.")
				return
			}
			h.handleAnswerSubmit(ctx, session, intr, sessionID)
		}
	}
}
