package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/Gurkunwar/dailybot-engine/internal/metrics"
	"github.com/Gurkunwar/dailybot-engine/internal/models"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultLinkTimeout = 5 * time.Second

// Answers are stored as plain text.
var stripMarkup = bluemonday.StrictPolicy()

type Answers struct {
	Yesterday string `json:"yesterday"`
	Today     string `json:"today"`
	Blockers  string `json:"blockers"`
}

// Linker receives every committed response.
type Linker interface {
	ProcessResponse(ctx context.Context, projectID uint, resp models.StandupResponse) int
}

type Collector struct {
	DB *gorm.DB

	// Linker may be nil.
	Linker      Linker
	LinkTimeout time.Duration

	Metrics metrics.Recorder
	Logger  *slog.Logger
	Now     func() time.Time
}

func NewCollector(db *gorm.DB, linker Linker, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		DB:          db,
		Linker:      linker,
		LinkTimeout: defaultLinkTimeout,
		Metrics:     metrics.Nop{},
		Logger:      logger,
		Now:         time.Now,
	}
}

func sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripMarkup.Sanitize(s)))
}

func (c *Collector) now() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
}

// Submit stores the participant's answers for an active session, replacing
// an earlier submission from the same participant.
func (c *Collector) Submit(ctx context.Context, sessionID uint, participantID string, a Answers) (*models.StandupResponse, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		verr := &ValidationError{}
		verr.add("participant_id", errors.New("required"))
		return nil, verr
	}

	a = Answers{
		Yesterday: sanitize(a.Yesterday),
		Today:     sanitize(a.Today),
		Blockers:  sanitize(a.Blockers),
	}

	var (
		saved     models.StandupResponse
		projectID uint
		updated   bool
	)
	now := c.now()

	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Touching the active row takes its lock, so a concurrent close waits
		// for this transaction and the status cannot change underneath it.
		res := tx.Model(&models.StandupSession{}).
			Where("id = ? AND status = ?", sessionID, models.SessionActive).
			Update("updated_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.StandupSession{}).Where("id = ?", sessionID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrSessionNotFound
			}
			return ErrSessionNotActive
		}

		var session models.StandupSession
		if err := tx.Select("id", "project_id").First(&session, sessionID).Error; err != nil {
			return err
		}
		projectID = session.ProjectID

		var existing int64
		if err := tx.Model(&models.StandupResponse{}).
			Where("session_id = ? AND participant_id = ?", sessionID, participantID).
			Count(&existing).Error; err != nil {
			return err
		}
		updated = existing > 0

		resp := models.StandupResponse{
			SessionID:     sessionID,
			ParticipantID: participantID,
			Yesterday:     a.Yesterday,
			Today:         a.Today,
			Blockers:      a.Blockers,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "participant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"yesterday", "today", "blockers", "updated_at"}),
		}).Create(&resp).Error
		if err != nil {
			return fmt.Errorf("upsert response: %w", err)
		}

		return tx.Where("session_id = ? AND participant_id = ?", sessionID, participantID).First(&saved).Error
	})
	if err != nil {
		return nil, err
	}

	c.recorder().RecordResponse(updated)
	c.Logger.Info("standup response saved",
		slog.Uint64("session_id", uint64(sessionID)),
		slog.String("participant_id", participantID),
		slog.Bool("updated", updated),
	)

	c.link(ctx, projectID, saved)
	return &saved, nil
}

// link runs ticket linkage after the response is committed. It is bounded by
// LinkTimeout and survives the caller's cancellation; nothing it does can
// fail the submission.
func (c *Collector) link(ctx context.Context, projectID uint, resp models.StandupResponse) {
	if c.Linker == nil {
		return
	}
	timeout := c.LinkTimeout
	if timeout <= 0 {
		timeout = defaultLinkTimeout
	}
	linkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			c.Logger.Error("ticket linkage panicked",
				slog.Uint64("response_id", uint64(resp.ID)),
				slog.Any("panic", r),
			)
		}
	}()
	c.Linker.ProcessResponse(linkCtx, projectID, resp)
}

func (c *Collector) ListResponses(ctx context.Context, sessionID uint) ([]models.StandupResponse, error) {
	var count int64
	if err := c.DB.WithContext(ctx).Model(&models.StandupSession{}).Where("id = ?", sessionID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrSessionNotFound
	}

	responses := []models.StandupResponse{}
	err := c.DB.WithContext(ctx).Where("session_id = ?", sessionID).Order("id").Find(&responses).Error
	return responses, err
}

func (c *Collector) recorder() metrics.Recorder {
	if c.Metrics == nil {
		return metrics.Nop{}
	}
	return c.Metrics
}
