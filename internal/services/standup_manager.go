package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Gurkunwar/dailybot-engine/internal/metrics"
	"github.com/Gurkunwar/dailybot-engine/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notifier is told about lifecycle transitions. Errors are logged and never
// fail a pass.
type Notifier interface {
	SessionOpened(ctx context.Context, session models.StandupSession, cfg models.StandupConfig) error
	SessionClosed(ctx context.Context, session models.StandupSession, summary models.StandupSummary) error
}

type PassResult struct {
	Processed int
	Opened    int
	Closed    int
	Skipped   int
	Failed    int
}

// Manager drives sessions through Active -> Closed.
type Manager struct {
	DB        *gorm.DB
	Configs   ConfigSource
	Summaries *SummaryGenerator
	Notifier  Notifier
	Metrics   metrics.Recorder
	Logger    *slog.Logger
	Now       func() time.Time
}

func NewManager(db *gorm.DB, configs ConfigSource, summaries *SummaryGenerator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		DB:        db,
		Configs:   configs,
		Summaries: summaries,
		Metrics:   metrics.Nop{},
		Logger:    logger,
		Now:       time.Now,
	}
}

func (m *Manager) now() time.Time {
	if m.Now == nil {
		return time.Now().UTC()
	}
	return m.Now().UTC()
}

func (m *Manager) recorder() metrics.Recorder {
	if m.Metrics == nil {
		return metrics.Nop{}
	}
	return m.Metrics
}

// OpenDueSessions creates today's session for every active config whose
// local start time has been reached. Running it again the same day is a
// no-op for configs that already have a session.
func (m *Manager) OpenDueSessions(ctx context.Context) (PassResult, error) {
	var result PassResult

	configs, err := m.Configs.ListActiveConfigs(ctx)
	if err != nil {
		return result, fmt.Errorf("list active configs: %w", err)
	}

	now := m.now()
	for _, cfg := range configs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Processed++

		log := m.Logger.With(
			slog.Uint64("config_id", uint64(cfg.ID)),
			slog.Uint64("project_id", uint64(cfg.ProjectID)),
		)

		localDate, due, err := Due(cfg, now)
		if err != nil {
			log.Warn("skipping config with invalid schedule", slog.String("error", err.Error()))
			result.Skipped++
			continue
		}
		if !due {
			result.Skipped++
			continue
		}
		if cfg.ResponseWindowHours < 1 {
			log.Warn("skipping config with invalid schedule", slog.String("error", ErrInvalidResponseWindow.Error()))
			result.Skipped++
			continue
		}

		session, created, err := m.getOrCreate(ctx, cfg, localDate, now)
		if err != nil {
			log.Error("failed to open session", slog.String("local_date", localDate), slog.String("error", err.Error()))
			result.Failed++
			continue
		}
		if !created {
			continue
		}

		result.Opened++
		m.recorder().RecordSessionOpened()
		log.Info("standup session opened",
			slog.Uint64("session_id", uint64(session.ID)),
			slog.String("local_date", localDate),
			slog.Time("expires_at", session.ExpiresAt),
		)

		if m.Notifier != nil {
			if err := m.Notifier.SessionOpened(ctx, *session, cfg); err != nil {
				log.Warn("session open notification failed", slog.String("error", err.Error()))
			}
		}
	}
	return result, nil
}

// getOrCreate relies on the (config_id, local_date) unique index so that
// overlapping passes converge on one row.
func (m *Manager) getOrCreate(ctx context.Context, cfg models.StandupConfig, localDate string, now time.Time) (*models.StandupSession, bool, error) {
	db := m.DB.WithContext(ctx)

	var existing models.StandupSession
	err := db.Where("config_id = ? AND local_date = ?", cfg.ID, localDate).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	session := models.StandupSession{
		ConfigID:  cfg.ID,
		ProjectID: cfg.ProjectID,
		LocalDate: localDate,
		OpenedAt:  now,
		ExpiresAt: now.Add(cfg.ResponseWindow()),
		Status:    models.SessionActive,
	}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "config_id"}, {Name: "local_date"}},
		DoNothing: true,
	}).Create(&session)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return &session, true, nil
	}

	if err := db.Where("config_id = ? AND local_date = ?", cfg.ID, localDate).First(&existing).Error; err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

// CloseExpiredSessions closes every active session past its expiry and
// generates its summary. Closed sessions left without a summary by an
// earlier failure are completed as well.
func (m *Manager) CloseExpiredSessions(ctx context.Context) (PassResult, error) {
	var result PassResult
	now := m.now()

	var ids []uint
	err := m.DB.WithContext(ctx).Model(&models.StandupSession{}).
		Where("status = ? AND expires_at <= ?", models.SessionActive, now).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return result, fmt.Errorf("list expired sessions: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Processed++

		closed, err := m.closeAndSummarize(ctx, id)
		switch {
		case err != nil:
			m.Logger.Error("failed to close session",
				slog.Uint64("session_id", uint64(id)),
				slog.String("error", err.Error()),
			)
			result.Failed++
		case closed:
			result.Closed++
		default:
			result.Skipped++
		}
	}

	orphans, err := m.closedWithoutSummary(ctx)
	if err != nil {
		m.Logger.Error("failed to list sessions missing a summary", slog.String("error", err.Error()))
		return result, nil
	}
	for _, id := range orphans {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Processed++
		if _, err := m.summarize(ctx, id); err != nil {
			result.Failed++
		}
	}
	return result, nil
}

// CloseSession closes one session ahead of its expiry. Closing a session that
// is already closed succeeds without touching its summary.
func (m *Manager) CloseSession(ctx context.Context, sessionID uint) (*models.StandupSession, error) {
	if _, err := m.closeAndSummarize(ctx, sessionID); err != nil {
		return nil, err
	}
	return m.Get(ctx, sessionID)
}

func (m *Manager) closeAndSummarize(ctx context.Context, sessionID uint) (bool, error) {
	closed, err := m.transitionToClosed(ctx, sessionID)
	if err != nil || !closed {
		return false, err
	}

	m.recorder().RecordSessionClosed()
	m.Logger.Info("standup session closed", slog.Uint64("session_id", uint64(sessionID)))

	// The session is closed at this point; a summary failure is retried by the
	// next close pass.
	_, _ = m.summarize(ctx, sessionID)
	return true, nil
}

// transitionToClosed is a compare-and-swap on status. Only the caller that
// flips the row sees true.
func (m *Manager) transitionToClosed(ctx context.Context, sessionID uint) (bool, error) {
	now := m.now()
	res := m.DB.WithContext(ctx).Model(&models.StandupSession{}).
		Where("id = ? AND status = ?", sessionID, models.SessionActive).
		Updates(map[string]interface{}{
			"status":     models.SessionClosed,
			"closed_at":  now,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	var count int64
	if err := m.DB.WithContext(ctx).Model(&models.StandupSession{}).Where("id = ?", sessionID).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, ErrSessionNotFound
	}
	return false, nil
}

func (m *Manager) summarize(ctx context.Context, sessionID uint) (*models.StandupSummary, error) {
	if m.Summaries == nil {
		return nil, nil
	}
	summary, created, err := m.Summaries.generate(ctx, sessionID)
	if err != nil {
		m.Logger.Error("failed to generate summary",
			slog.Uint64("session_id", uint64(sessionID)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	// Only the caller that wrote the summary announces it.
	if created && m.Notifier != nil {
		session, err := m.Get(ctx, sessionID)
		if err == nil {
			err = m.Notifier.SessionClosed(ctx, *session, *summary)
		}
		if err != nil {
			m.Logger.Warn("summary notification failed",
				slog.Uint64("session_id", uint64(sessionID)),
				slog.String("error", err.Error()),
			)
		}
	}
	return summary, nil
}

func (m *Manager) closedWithoutSummary(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := m.DB.WithContext(ctx).Model(&models.StandupSession{}).
		Where("status = ?", models.SessionClosed).
		Where("NOT EXISTS (SELECT 1 FROM standup_summaries WHERE standup_summaries.session_id = standup_sessions.id)").
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

func (m *Manager) Get(ctx context.Context, sessionID uint) (*models.StandupSession, error) {
	var session models.StandupSession
	err := m.DB.WithContext(ctx).First(&session, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ActiveSessionForProject returns the most recently opened active session.
func (m *Manager) ActiveSessionForProject(ctx context.Context, projectID uint) (*models.StandupSession, error) {
	var session models.StandupSession
	err := m.DB.WithContext(ctx).
		Where("project_id = ? AND status = ?", projectID, models.SessionActive).
		Order("opened_at DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (m *Manager) ListActiveSessions(ctx context.Context) ([]models.StandupSession, error) {
	var sessions []models.StandupSession
	err := m.DB.WithContext(ctx).
		Where("status = ?", models.SessionActive).
		Order("id").
		Find(&sessions).Error
	return sessions, err
}

// ActiveSessionsForProjects is the lookup the bot uses for a member of
// several projects.
func (m *Manager) ActiveSessionsForProjects(ctx context.Context, projectIDs []uint) ([]models.StandupSession, error) {
	sessions := []models.StandupSession{}
	if len(projectIDs) == 0 {
		return sessions, nil
	}
	err := m.DB.WithContext(ctx).
		Where("project_id IN ? AND status = ?", projectIDs, models.SessionActive).
		Order("id").
		Find(&sessions).Error
	return sessions, err
}

// LatestClosedSession is the session whose summary a project would show now.
func (m *Manager) LatestClosedSession(ctx context.Context, projectID uint) (*models.StandupSession, error) {
	var session models.StandupSession
	err := m.DB.WithContext(ctx).
		Where("project_id = ? AND status = ?", projectID, models.SessionClosed).
		Order("opened_at DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}
