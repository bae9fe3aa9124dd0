// Package notify posts standup lifecycle events to Discord.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Gurkunwar/dailybot-engine/internal/models"
	"github.com/bwmarrin/discordgo"
)

const (
	OpenModalPrefix = "open_standup_modal_"

	embedDescriptionLimit = 4096
)

// Messenger is the part of *discordgo.Session the notifier uses.
type Messenger interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Directory interface {
	GetProject(ctx context.Context, projectID uint) (*models.Project, error)
	ListParticipants(ctx context.Context, projectID uint) ([]string, error)
}

type DiscordNotifier struct {
	Messenger Messenger
	Directory Directory
	Logger    *slog.Logger
}

func NewDiscordNotifier(m Messenger, dir Directory, logger *slog.Logger) *DiscordNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscordNotifier{Messenger: m, Directory: dir, Logger: logger}
}

// SessionOpened DMs every project member a button that opens the answer form.
// A failed DM for one member does not stop the others.
func (n *DiscordNotifier) SessionOpened(ctx context.Context, session models.StandupSession, cfg models.StandupConfig) error {
	project, err := n.Directory.GetProject(ctx, session.ProjectID)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	members, err := n.Directory.ListParticipants(ctx, session.ProjectID)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}

	msg := OpenMessage(*project, session)
	var errs []error
	for _, userID := range members {
		if err := ctx.Err(); err != nil {
			return err
		}
		dm, err := n.Messenger.UserChannelCreate(userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("dm %s: %w", userID, err))
			continue
		}
		if _, err := n.Messenger.ChannelMessageSendComplex(dm.ID, msg); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", userID, err))
		}
	}

	n.Logger.Info("standup reminders sent",
		slog.Uint64("session_id", uint64(session.ID)),
		slog.Int("members", len(members)),
		slog.Int("failed", len(errs)),
	)
	return errors.Join(errs...)
}

// SessionClosed posts the summary to the project's report channel.
func (n *DiscordNotifier) SessionClosed(ctx context.Context, session models.StandupSession, summary models.StandupSummary) error {
	project, err := n.Directory.GetProject(ctx, session.ProjectID)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	if project.ReportChannelID == "" {
		n.Logger.Warn("project has no report channel, summary not posted",
			slog.Uint64("project_id", uint64(project.ID)),
			slog.Uint64("session_id", uint64(session.ID)),
		)
		return nil
	}

	_, err = n.Messenger.ChannelMessageSendComplex(project.ReportChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{SummaryEmbed(*project, session, summary)},
	})
	return err
}

func OpenMessage(project models.Project, session models.StandupSession) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content: fmt.Sprintf("☀️ **%s** standup is open until <t:%d:t>. Ready to submit your daily standup?",
			project.Name, session.ExpiresAt.Unix()),
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Fill Standup",
						Style:    discordgo.PrimaryButton,
						CustomID: fmt.Sprintf("%s%d", OpenModalPrefix, session.ID),
					},
				},
			},
		},
	}
}

func SummaryEmbed(project models.Project, session models.StandupSession, summary models.StandupSummary) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🚀 %s Standup · %s", project.Name, session.LocalDate),
		Description: truncate(summary.SummaryText, embedDescriptionLimit),
		Color:       0x5865F2,
		Timestamp:   summary.CreatedAt.UTC().Format(time.RFC3339),
	}
	if len(summary.BlockersJSON) > 0 {
		embed.Color = 0xE74C3C
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d blocker(s) reported", len(summary.BlockersJSON)),
		}
	}
	return embed
}

func truncate(s string, limit int) string {
	if len([]rune(s)) <= limit {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:limit-1])) + "…"
}
