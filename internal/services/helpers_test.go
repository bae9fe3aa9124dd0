package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Gurkunwar/dailybot-engine/internal/database"
	"github.com/Gurkunwar/dailybot-engine/internal/models"
	"github.com/Gurkunwar/dailybot-engine/internal/summarizer"
	"gorm.io/gorm"
)

// 2026-03-02 is a Monday.
var monday0901 = time.Date(2026, 3, 2, 9, 1, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { database.Close(db) })
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seedProject(t *testing.T, db *gorm.DB, name string) models.Project {
	t.Helper()
	p := models.Project{Name: name, ReportChannelID: "chan-" + name}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

// seedConfig inserts directly so tests can also store configs that
// SaveConfig would reject.
func seedConfig(t *testing.T, db *gorm.DB, projectID uint, mutate func(*models.StandupConfig)) models.StandupConfig {
	t.Helper()
	cfg := models.StandupConfig{
		ProjectID:           projectID,
		Time:                "09:00",
		Timezone:            "UTC",
		WorkingDays:         []string{"Mon"},
		ResponseWindowHours: 2,
		IsActive:            true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	if err := db.Create(&cfg).Error; err != nil {
		t.Fatalf("create config: %v", err)
	}
	return cfg
}

func seedSession(t *testing.T, db *gorm.DB, cfg models.StandupConfig, openedAt time.Time, status models.SessionStatus) models.StandupSession {
	t.Helper()
	s := models.StandupSession{
		ConfigID:  cfg.ID,
		ProjectID: cfg.ProjectID,
		LocalDate: openedAt.Format(localDateLayout),
		OpenedAt:  openedAt,
		ExpiresAt: openedAt.Add(cfg.ResponseWindow()),
		Status:    status,
	}
	if err := db.Create(&s).Error; err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}

type fakeSummarizer struct {
	mu    sync.Mutex
	calls []summarizer.Buckets

	SummarizeFunc func(ctx context.Context, b summarizer.Buckets) (summarizer.Result, error)
}

func (f *fakeSummarizer) Summarize(ctx context.Context, b summarizer.Buckets) (summarizer.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, b)
	f.mu.Unlock()
	if f.SummarizeFunc != nil {
		return f.SummarizeFunc(ctx, b)
	}
	return summarizer.Result{Text: "summary of " + b.LocalDate, Blockers: summarizer.BlockerItems(b)}, nil
}

func (f *fakeSummarizer) Calls() []summarizer.Buckets {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]summarizer.Buckets(nil), f.calls...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	opened []uint
	closed []uint
	err    error
}

func (n *recordingNotifier) SessionOpened(_ context.Context, s models.StandupSession, _ models.StandupConfig) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.opened = append(n.opened, s.ID)
	return n.err
}

func (n *recordingNotifier) SessionClosed(_ context.Context, s models.StandupSession, _ models.StandupSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, s.ID)
	return n.err
}

type staticParticipants map[uint][]string

func (p staticParticipants) ListParticipants(_ context.Context, projectID uint) ([]string, error) {
	return p[projectID], nil
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

type testEnv struct {
	db         *gorm.DB
	configs    *StandupService
	manager    *Manager
	summaries  *SummaryGenerator
	collector  *Collector
	summarizer *fakeSummarizer
	notifier   *recordingNotifier
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := discardLogger()

	fs := &fakeSummarizer{}
	configs := NewStandupService(db, log)
	summaries := NewSummaryGenerator(db, fs, nil, log)
	notifier := &recordingNotifier{}

	manager := NewManager(db, configs, summaries, log)
	manager.Now = fixedClock(now)
	manager.Notifier = notifier

	collector := NewCollector(db, NewTicketLinker(NewGormTicketStore(db), log), log)
	collector.Now = fixedClock(now)

	return &testEnv{
		db:         db,
		configs:    configs,
		manager:    manager,
		summaries:  summaries,
		collector:  collector,
		summarizer: fs,
		notifier:   notifier,
	}
}
