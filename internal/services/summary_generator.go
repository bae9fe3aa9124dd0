package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Gurkunwar/dailybot-engine/internal/metrics"
	"github.com/Gurkunwar/dailybot-engine/internal/models"
	"github.com/Gurkunwar/dailybot-engine/internal/summarizer"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const NoResponsesText = "No responses received for this standup session."

const defaultSummarizerTimeout = 15 * time.Second

// Answers that mean "nothing to report". The bot's modal pre-fills "None".
var emptyAnswers = map[string]bool{
	"none": true, "n/a": true, "na": true, "-": true, "no": true,
	"nothing": true, "no blockers": true, "nope": true,
}

func hasContent(s string) bool {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.TrimRight(t, ".!")
	return t != "" && !emptyAnswers[t]
}

// BuildBuckets sorts responses into the summary categories. expected is the
// full participant list; when known is false NoResponse stays empty.
func BuildBuckets(session models.StandupSession, responses []models.StandupResponse, expected []string, known bool) summarizer.Buckets {
	b := summarizer.Buckets{
		SessionID:          session.ID,
		ProjectID:          session.ProjectID,
		LocalDate:          session.LocalDate,
		Blockers:           []summarizer.Entry{},
		InProgress:         []summarizer.Entry{},
		Completed:          []summarizer.Entry{},
		NoResponse:         []string{},
		NonRespondersKnown: known,
	}

	responded := make(map[string]bool, len(responses))
	for _, r := range responses {
		responded[r.ParticipantID] = true
		e := summarizer.Entry{
			ParticipantID: r.ParticipantID,
			Yesterday:     strings.TrimSpace(r.Yesterday),
			Today:         strings.TrimSpace(r.Today),
			Blockers:      strings.TrimSpace(r.Blockers),
		}
		if hasContent(r.Blockers) {
			b.Blockers = append(b.Blockers, e)
		}
		if hasContent(r.Today) {
			b.InProgress = append(b.InProgress, e)
		}
		if hasContent(r.Yesterday) {
			b.Completed = append(b.Completed, e)
		}
	}

	if known {
		for _, id := range expected {
			if !responded[id] {
				b.NoResponse = append(b.NoResponse, id)
			}
		}
	}
	return b
}

type SummaryGenerator struct {
	DB *gorm.DB

	// Summarizer may be nil, in which case the template is used directly.
	Summarizer   summarizer.Summarizer
	// Participants may be nil; NoResponse detection is then skipped.
	Participants ParticipantSource
	Timeout      time.Duration

	Metrics metrics.Recorder
	Logger  *slog.Logger
}

func NewSummaryGenerator(db *gorm.DB, s summarizer.Summarizer, participants ParticipantSource, logger *slog.Logger) *SummaryGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryGenerator{
		DB:           db,
		Summarizer:   s,
		Participants: participants,
		Timeout:      defaultSummarizerTimeout,
		Metrics:      metrics.Nop{},
		Logger:       logger,
	}
}

func (g *SummaryGenerator) Get(ctx context.Context, sessionID uint) (*models.StandupSummary, error) {
	var summary models.StandupSummary
	err := g.DB.WithContext(ctx).Where("session_id = ?", sessionID).First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSummaryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// GenerateForSession returns the session's summary, creating it on first
// call. Concurrent callers all get the single persisted row.
func (g *SummaryGenerator) GenerateForSession(ctx context.Context, sessionID uint) (*models.StandupSummary, error) {
	summary, _, err := g.generate(ctx, sessionID)
	return summary, err
}

// generate is GenerateForSession that also reports whether this call wrote
// the row.
func (g *SummaryGenerator) generate(ctx context.Context, sessionID uint) (*models.StandupSummary, bool, error) {
	if existing, err := g.Get(ctx, sessionID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrSummaryNotFound) {
		return nil, false, err
	}

	db := g.DB.WithContext(ctx)

	var session models.StandupSession
	if err := db.First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrSessionNotFound
		}
		return nil, false, err
	}

	var responses []models.StandupResponse
	if err := db.Where("session_id = ?", sessionID).Order("id").Find(&responses).Error; err != nil {
		return nil, false, fmt.Errorf("load responses: %w", err)
	}

	summary := models.StandupSummary{SessionID: sessionID}
	if len(responses) == 0 {
		summary.SummaryText = NoResponsesText
		summary.BlockersJSON = []models.BlockerItem{}
		summary.Source = models.SummaryEmpty
	} else {
		buckets := BuildBuckets(session, responses, nil, false)
		if g.Participants != nil {
			expected, err := g.Participants.ListParticipants(ctx, session.ProjectID)
			if err != nil {
				g.logger().Warn("participant lookup failed, skipping non-responders",
					slog.Uint64("session_id", uint64(sessionID)),
					slog.String("error", err.Error()),
				)
			} else {
				buckets = BuildBuckets(session, responses, expected, true)
			}
		}
		g.attachQuestions(ctx, session, &buckets)

		res, source := g.synthesize(ctx, buckets)
		summary.SummaryText = res.Text
		summary.BlockersJSON = res.Blockers
		summary.Source = source
	}

	created := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&summary)
	if created.Error != nil {
		return nil, false, fmt.Errorf("persist summary: %w", created.Error)
	}
	if created.RowsAffected == 0 {
		existing, err := g.Get(ctx, sessionID)
		return existing, false, err
	}

	g.recorder().RecordSummary(string(summary.Source))
	g.logger().Info("standup summary created",
		slog.Uint64("session_id", uint64(sessionID)),
		slog.String("source", string(summary.Source)),
		slog.Int("responses", len(responses)),
	)
	return &summary, true, nil
}

func (g *SummaryGenerator) attachQuestions(ctx context.Context, session models.StandupSession, b *summarizer.Buckets) {
	var cfg models.StandupConfig
	if err := g.DB.WithContext(ctx).Select("questions").First(&cfg, session.ConfigID).Error; err == nil {
		b.Questions = cfg.Questions
	}
}

type summarizeResult struct {
	res summarizer.Result
	err error
}

// synthesize calls the external summarizer under a timeout and falls back to
// the template on any failure. The timeout holds even when the summarizer
// ignores its context; a late answer is discarded.
func (g *SummaryGenerator) synthesize(ctx context.Context, b summarizer.Buckets) (summarizer.Result, models.SummarySource) {
	if g.Summarizer == nil {
		return summarizer.Template(b), models.SummaryFromTemplate
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = defaultSummarizerTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan summarizeResult, 1)
	go func() {
		res, err := g.Summarizer.Summarize(callCtx, b)
		done <- summarizeResult{res: res, err: err}
	}()

	var (
		res summarizer.Result
		err error
	)
	select {
	case out := <-done:
		res, err = out.res, out.err
	case <-callCtx.Done():
		err = fmt.Errorf("summarizer did not answer: %w", callCtx.Err())
	}
	if err == nil && strings.TrimSpace(res.Text) == "" {
		err = errors.New("empty summary text")
	}
	if err != nil {
		g.logger().Warn("summarizer failed, using template",
			slog.Uint64("session_id", uint64(b.SessionID)),
			slog.String("error", err.Error()),
		)
		return summarizer.Template(b), models.SummaryFromTemplate
	}

	if res.Blockers == nil {
		res.Blockers = summarizer.BlockerItems(b)
	}
	return res, models.SummaryFromSummarizer
}

func (g *SummaryGenerator) recorder() metrics.Recorder {
	if g.Metrics == nil {
		return metrics.Nop{}
	}
	return g.Metrics
}

func (g *SummaryGenerator) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}
