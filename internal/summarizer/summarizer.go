// Package summarizer turns the categorized responses of a closed standup into
// text, either through an external service or a fixed template.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gurkunwar/dailybot-engine/internal/models"
)

type Entry struct {
	ParticipantID string `json:"participant_id"`
	Yesterday     string `json:"yesterday"`
	Today         string `json:"today"`
	Blockers      string `json:"blockers"`
}

// Buckets groups the responses of one session. A response lands in every
// bucket whose field it filled in.
type Buckets struct {
	SessionID  uint     `json:"session_id"`
	ProjectID  uint     `json:"project_id"`
	LocalDate  string   `json:"local_date"`
	Questions  []string `json:"questions,omitempty"`
	Blockers   []Entry  `json:"blockers"`
	InProgress []Entry  `json:"in_progress"`
	Completed  []Entry  `json:"completed"`
	NoResponse []string `json:"no_response"`

	// NonRespondersKnown is false when no membership source was available.
	NonRespondersKnown bool `json:"non_responders_known"`
}

type Result struct {
	Text     string               `json:"summary_text"`
	Blockers []models.BlockerItem `json:"blockers_json"`
}

type Summarizer interface {
	Summarize(ctx context.Context, b Buckets) (Result, error)
}

func BlockerItems(b Buckets) []models.BlockerItem {
	items := make([]models.BlockerItem, 0, len(b.Blockers))
	for _, e := range b.Blockers {
		items = append(items, models.BlockerItem{ParticipantID: e.ParticipantID, Issue: e.Blockers})
	}
	return items
}

// Template renders the buckets without any external call. Output depends only
// on the buckets.
func Template(b Buckets) Result {
	var sb strings.Builder

	fmt.Fprintf(&sb, "📋 Standup summary for %s\n", b.LocalDate)

	sb.WriteString("\n🔴 Blockers\n")
	writeEntries(&sb, b.Blockers, func(e Entry) string { return e.Blockers })

	sb.WriteString("\n🟡 In Progress\n")
	writeEntries(&sb, b.InProgress, func(e Entry) string { return e.Today })

	sb.WriteString("\n🟢 Completed Yesterday\n")
	writeEntries(&sb, b.Completed, func(e Entry) string { return e.Yesterday })

	sb.WriteString("\n⚠ No Response\n")
	switch {
	case !b.NonRespondersKnown:
		sb.WriteString("- (membership unknown)\n")
	case len(b.NoResponse) == 0:
		sb.WriteString("- none\n")
	default:
		for _, id := range b.NoResponse {
			fmt.Fprintf(&sb, "- <@%s>\n", id)
		}
	}

	return Result{
		Text:     strings.TrimRight(sb.String(), "\n"),
		Blockers: BlockerItems(b),
	}
}

func writeEntries(sb *strings.Builder, entries []Entry, field func(Entry) string) {
	if len(entries) == 0 {
		sb.WriteString("- none\n")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(sb, "- <@%s>: %s\n", e.ParticipantID, oneLine(field(e)))
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
