package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Gurkunwar/dailybot-engine/internal/models"
	"github.com/Gurkunwar/dailybot-engine/internal/notify"
	"github.com/Gurkunwar/dailybot-engine/internal/services"
	"github.com/bwmarrin/discordgo"
)

var adminPermission int64 = discordgo.PermissionAdministrator

var projectOption = &discordgo.ApplicationCommandOption{
	Type:        discordgo.ApplicationCommandOptionString,
	Name:        "project",
	Description: "Project name",
	Required:    true,
}

var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "standup",
		Description: "Answer today's open standups",
	},
	{
		Name:        "standup-summary",
		Description: "Show the latest standup summary for a project",
		Options:     []*discordgo.ApplicationCommandOption{projectOption},
	},
	{
		Name:                     "add-member",
		Description:              "Add a member to a project's standup",
		DefaultMemberPermissions: &adminPermission,
		Options: []*discordgo.ApplicationCommandOption{
			projectOption,
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "Member to add",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "timezone",
				Description: "IANA timezone, e.g. Asia/Kolkata",
			},
		},
	},
	{
		Name:                     "remove-member",
		Description:              "Remove a member from a project's standup",
		DefaultMemberPermissions: &adminPermission,
		Options: []*discordgo.ApplicationCommandOption{
			projectOption,
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "Member to remove",
				Required:    true,
			},
		},
	},
	{
		Name:                     "set-channel",
		Description:              "Post a project's standup summaries to a channel",
		DefaultMemberPermissions: &adminPermission,
		Options: []*discordgo.ApplicationCommandOption{
			projectOption,
			{
				Type:        discordgo.ApplicationCommandOptionChannel,
				Name:        "channel",
				Description: "Report channel",
				Required:    true,
			},
		},
	},
	{
		Name:        "help",
		Description: "Show what DailyBot can do",
	},
}

// maxStandupButtons is the number of buttons that fit in one message.
const maxStandupButtons = 25

func (h *BotHandler) handleStandup(ctx context.Context, session *discordgo.Session, intr *discordgo.InteractionCreate) {
	userID := extractUserID(intr)

	projectIDs, err := h.Projects.ProjectsForUser(ctx, userID)
	if err != nil {
		h.Logger.Error("cannot list projects", slog.String("user_id", userID), slog.String("error", err.Error()))
		respondWithError(session, intr.Interaction, "Could not look up your projects.")
		return
	}

	sessions, err := h.Manager.ActiveSessionsForProjects(ctx, projectIDs)
	if err != nil {
		h.Logger.Error("cannot list active sessions", slog.String("user_id", userID), slog.String("error", err.Error()))
		respondWithError(session, intr.Interaction, "Could not look up today's standups.")
		return
	}
	if len(sessions) == 0 {
		respondWithMessage(session, intr, "🎉 You have no open standups right now.", true)
		return
	}
	if len(sessions) > maxStandupButtons {
		sessions = sessions[:maxStandupButtons]
	}

	names := make([]string, len(sessions))
	for i, s := range sessions {
		names[i] = h.projectName(ctx, s.ProjectID)
	}

	session.InteractionRespond(intr.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    "📝 **Open standups**\nPick one to fill in:",
			Components: standupButtons(sessions, names),
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
}

// standupButtons lays out one button per session, five per row.
func standupButtons(sessions []models.StandupSession, names []string) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	var current []discordgo.MessageComponent
	for i, s := range sessions {
		current = append(current, discordgo.Button{
			Label:    fmt.Sprintf("%s (%s)", names[i], s.LocalDate),
			Style:    discordgo.PrimaryButton,
			CustomID: notify.OpenModalPrefix + strconv.FormatUint(uint64(s.ID), 10),
		})
		if len(current) == 5 {
			rows = append(rows, discordgo.ActionsRow{Components: current})
			current = nil
		}
	}
	if len(current) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: current})
	}
	return rows
}

func (h *BotHandler) projectName(ctx context.Context, projectID uint) string {
	project, err := h.Projects.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Sprintf("Project #%d", projectID)
	}
	return project.Name
}

func (h *BotHandler) handleSummary(ctx context.Context, session *discordgo.Session, intr *discordgo.InteractionCreate) {
	name := optionString(intr.ApplicationCommandData().Options, "project")

	project, err := h.Projects.FindProjectByName(ctx, name)
	if err != nil {
		respondWithError(session, intr.Interaction, fmt.Sprintf("No project named `%s`.", name))
		return
	}

	last, err := h.Manager.LatestClosedSession(ctx, project.ID)
	if errors.Is(err, services.ErrSessionNotFound) {
		respondWithMessage(session, intr, "No standup has closed for this project yet.", true)
		return
	}
	if err != nil {
		h.Logger.Error("cannot load latest session", slog.Uint64("project_id", uint64(project.ID)), slog.String("error", err.Error()))
		respondWithError(session, intr.Interaction, "Could not load the latest standup.")
		return
	}

	summary, err := h.Summaries.Get(ctx, last.ID)
	if errors.Is(err, services.ErrSummaryNotFound) {
		respondWithMessage(session, intr, "⏳ The summary for the last standup is still being prepared.", true)
		return
	}
	if err != nil {
		h.Logger.Error("cannot load summary", slog.Uint64("session_id", uint64(last.ID)), slog.String("error", err.Error()))
		respondWithError(session, intr.Interaction, "Could not load the summary.")
		return
	}

	session.InteractionRespond(intr.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{notify.SummaryEmbed(*project, *last, *summary)},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
}

func (h *BotHandler) handleAddMember(ctx context.Context, session *discordgo.Session, intr *discordgo.InteractionCreate) {
	if !isServerAdmin(intr) {
		respondWithError(session, intr.Interaction, "Only server administrators can manage members.")
		return
	}

	options := intr.ApplicationCommandData().Options
	name := optionString(options, "project")
	user := optionUser(options, "user")
	timezone := optionString(options, "timezone")
	if user == nil {
		respondWithError(session, intr.Interaction, "Pick a member to add.")
		return
	}
	if timezone != "" {
		if _, err := services.LoadTimezone(timezone); err != nil {
			respondWithError(session, intr.Interaction, fmt.Sprintf("`%s` is not a valid timezone.", timezone))
			return
		}
	}

	project, err := h.Projects.EnsureProject(ctx, name, "")
	if err != nil {
		respondWithError(session, intr.Interaction, err.Error())
		return
	}
	if err := h.Projects.AddMember(ctx, project.ID, user.ID, timezone); err != nil {
		h.Logger.Error("cannot add member", slog.String("project", project.Name), slog.String("user_id", user.ID), slog.String("error", err.Error()))
		respondWithError(session, intr.Interaction, "Could not add the member.")
		return
	}

	respondWithMessage(session, intr, fmt.Sprintf("✅ <@%s> now takes part in **%s** standups.", user.ID, project.Name), true)
}

func (h *BotHandler) handleRemoveMember(ctx context.Context, session *discordgo.Session, intr *discordgo.InteractionCreate) {
	if !isServerAdmin(intr) {
		respondWithError(session, intr.Interaction, "Only server administrators can manage members.")
		return
	}

	options := intr.ApplicationCommandData().Options
	name := optionString(options, "project")
	user := optionUser(options, "user")
	if user == nil {
		respondWithError(session, intr.Interaction, "Pick a member to remove.")
		return
	}

	project, err := h.Projects.FindProjectByName(ctx, name)
	if err != nil {
		respondWithError(session, intr.Interaction, fmt.Sprintf("No project named `%s`.", name))
		return
	}
	if err := h.Projects.RemoveMember(ctx, project.ID, user.ID); err != nil {
		h.Logger.Error("cannot remove member", slog.String("project", project.Name), slog.String("user_id", user.ID), slog.String("error", err.Error()))
		respondWithError(session, intr.Interaction, "Could not remove the member.")
		return
	}

	respondWithMessage(session, intr, fmt.Sprintf("🗑️ <@%s> was removed from **%s**.", user.ID, project.Name), true)
}

func (h *BotHandler) handleSetChannel(ctx context.Context, session *discordgo.Session, intr *discordgo.InteractionCreate) {
	if !isServerAdmin(intr) {
		respondWithError(session, intr.Interaction, "Only server administrators can change the report channel.")
		return
	}

	options := intr.ApplicationCommandData().Options
	name := optionString(options, "project")
	var channelID string
	for _, opt := range options {
		if opt.Name == "channel" && opt.Type == discordgo.ApplicationCommandOptionChannel {
			if id, ok := opt.Value.(string); ok {
				channelID = id
			}
		}
	}
	if channelID == "" {
		respondWithError(session, intr.Interaction, "Pick a channel, e.g. `#standups`.")
		return
	}

	project, err := h.Projects.EnsureProject(ctx, name, channelID)
	if err != nil {
		respondWithError(session, intr.Interaction, err.Error())
		return
	}

	respondWithMessage(session, intr, fmt.Sprintf("✅ Success! **%s** reports will now be sent to <#%s>", project.Name, channelID), true)
}

func (h *BotHandler) handleHelp(session *discordgo.Session, intr *discordgo.InteractionCreate) {
	helpText := strings.Join([]string{
		"💡 **DailyBot Help Menu**",
		"",
		"**👤 Member Commands**",
		"`/standup` - Fill in any standup that is open for your projects.",
		"`/standup-summary` - View the latest summary for a project.",
		"> *💡 Tip: You can update your answers as many times as you like until the window closes.*",
		"",
		"**🛠️ Admin Commands**",
		"`/add-member` - Add a user to a project's standup.",
		"`/remove-member` - Remove a user from a project's standup.",
		"`/set-channel` - Choose where a project's summaries are posted.",
		"",
		"ℹ️ *Standups open automatically on working days and close when the response window ends.*",
	}, "\n")

	respondWithMessage(session, intr, helpText, true)
}

// optionUser only needs the id, so it skips the user lookup.
func optionUser(options []*discordgo.ApplicationCommandInteractionDataOption, name string) *discordgo.User {
	for _, opt := range options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionUser {
			return opt.UserValue(nil)
		}
	}
	return nil
}
