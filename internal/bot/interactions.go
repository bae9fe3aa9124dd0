package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Gurkunwar/dailybot-engine/internal/services"
	"github.com/bwmarrin/discordgo"
)

func (h *BotHandler) openAnswerModal(ctx context.Context, session *discordgo.Session,
	intr *discordgo.InteractionCreate, sessionID uint) {

	standup, err := h.Manager.Get(ctx, sessionID)
	if err != nil {
		respondWithError(session, intr.Interaction, submitErrorMessage(err))
		return
	}
	if !standup.IsActive() {
		respondWithError(session, intr.Interaction, submitErrorMessage(services.ErrSessionNotActive))
		return
	}

	err = session.InteractionRespond(intr.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: answerModalID(sessionID),
			Title:    "Daily Standup Form",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID: "yesterday", Label: "What did you do yesterday?",
						Style: discordgo.TextInputParagraph, Required: true,
					},
				}},
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID: "today", Label: "What are you planning to do today?",
						Style: discordgo.TextInputParagraph, Required: true,
					},
				}},
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID: "blockers", Label: "Any blockers in your way?",
						Style: discordgo.TextInputParagraph, Value: "None",
					},
				}},
			},
		},
	})
	if err != nil {
		h.Logger.Error("cannot open standup modal",
			slog.Uint64("session_id", uint64(sessionID)),
			slog.String("error", err.Error()),
		)
	}
}

func (h *BotHandler) handleAnswerSubmit(ctx context.Context, session *discordgo.Session,
	intr *discordgo.InteractionCreate, sessionID uint) {

	values := modalValues(intr.ModalSubmitData())
	userID := extractUserID(intr)

	resp, err := h.Collector.Submit(ctx, sessionID, userID, services.Answers{
		Yesterday: values["yesterday"],
		Today:     values["today"],
		Blockers:  values["blockers"],
	})
	if err != nil {
		var verr *services.ValidationError
		if !errors.Is(err, services.ErrSessionNotActive) && !errors.Is(err, services.ErrSessionNotFound) && !errors.As(err, &verr) {
			h.Logger.Error("cannot save standup answers",
				slog.Uint64("session_id", uint64(sessionID)),
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		respondWithError(session, intr.Interaction, submitErrorMessage(err))
		return
	}

	content := "✅ Standup submitted! Your team will see it in the summary."
	if !resp.CreatedAt.Equal(resp.UpdatedAt) {
		content = "✅ Standup updated! Your latest answers replace the earlier ones."
	}
	respondWithMessage(session, intr, content, true)
}
