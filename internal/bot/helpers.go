package bot

import (
	"errors"
	"strconv"
	"strings"

	"github.com/Gurkunwar/dailybot-engine/internal/services"
	"github.com/bwmarrin/discordgo"
)

const answerModalPrefix = "standup_answer_modal_"

func extractUserID(intr *discordgo.InteractionCreate) string {
	if intr.Member != nil && intr.Member.User != nil {
		return intr.Member.User.ID
	}
	if intr.User != nil {
		return intr.User.ID
	}
	if intr.Message != nil && intr.Message.Author != nil {
		return intr.Message.Author.ID
	}
	return ""
}

func respondWithError(session *discordgo.Session, interaction *discordgo.Interaction, message string) {
	session.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "❌ " + message,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func respondWithMessage(session *discordgo.Session, intr *discordgo.InteractionCreate, content string,
	ephemeral bool) {

	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	session.InteractionRespond(intr.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func isServerAdmin(intr *discordgo.InteractionCreate) bool {
	if intr.Member == nil {
		return false
	}

	return intr.Member.Permissions&discordgo.PermissionAdministrator != 0
}

// parseSessionID reads the session id that follows prefix in a custom id.
func parseSessionID(customID, prefix string) (uint, bool) {
	raw, ok := strings.CutPrefix(customID, prefix)
	if !ok || raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func answerModalID(sessionID uint) string {
	return answerModalPrefix + strconv.FormatUint(uint64(sessionID), 10)
}

// modalValues maps each text input's custom id to its submitted value.
func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := make(map[string]string)
	for _, component := range data.Components {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok {
				values[input.CustomID] = input.Value
			}
		}
	}
	return values
}

// submitErrorMessage turns a Collector error into something a member can act on.
func submitErrorMessage(err error) string {
	var verr *services.ValidationError
	switch {
	case errors.Is(err, services.ErrSessionNotActive):
		return "This standup is already closed. Your answers were not recorded."
	case errors.Is(err, services.ErrSessionNotFound):
		return "This standup no longer exists."
	case errors.As(err, &verr):
		return "Your answers could not be saved: " + verr.Error()
	default:
		return "Something went wrong while saving your answers. Please try again."
	}
}

func optionString(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return strings.TrimSpace(opt.StringValue())
		}
	}
	return ""
}
