package services

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Gurkunwar/dailybot-engine/internal/metrics"
	"github.com/Gurkunwar/dailybot-engine/internal/models"
	"gorm.io/gorm"
)

var (
	ticketRefPattern  = regexp.MustCompile(`\b[A-Z]+-\d+\b`)
	completionPattern = regexp.MustCompile(`(?i)\b(done|completed)\b`)
	inProgressPattern = regexp.MustCompile(`(?i)\b(in progress|started)\b`)
)

// TicketStore is the ticket collaborator the linker writes through.
type TicketStore interface {
	// FindByRef returns the single ticket of the project whose title carries
	// ref, ErrTicketNotFound or ErrAmbiguousTicket.
	FindByRef(ctx context.Context, projectID uint, ref string) (*models.Ticket, error)
	UpdateStatus(ctx context.Context, ticketID uint, status models.TicketStatus) error
}

type GormTicketStore struct {
	DB *gorm.DB
}

func NewGormTicketStore(db *gorm.DB) *GormTicketStore {
	return &GormTicketStore{DB: db}
}

func (s *GormTicketStore) FindByRef(ctx context.Context, projectID uint, ref string) (*models.Ticket, error) {
	var candidates []models.Ticket
	err := s.DB.WithContext(ctx).
		Where("project_id = ? AND title LIKE ?", projectID, "%"+ref+"%").
		Order("id").
		Limit(10).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	// LIKE also matches BUG-120 for BUG-12.
	var matches []models.Ticket
	for _, t := range candidates {
		for _, found := range ExtractTicketRefs(t.Title) {
			if found == ref {
				matches = append(matches, t)
				break
			}
		}
	}

	switch len(matches) {
	case 0:
		return nil, ErrTicketNotFound
	case 1:
		return &matches[0], nil
	default:
		return nil, ErrAmbiguousTicket
	}
}

func (s *GormTicketStore) UpdateStatus(ctx context.Context, ticketID uint, status models.TicketStatus) error {
	res := s.DB.WithContext(ctx).Model(&models.Ticket{}).Where("id = ?", ticketID).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTicketNotFound
	}
	return nil
}

// EnsureTicket creates the ticket unless the project already has one with
// the same title. An existing ticket keeps its status.
func (s *GormTicketStore) EnsureTicket(ctx context.Context, projectID uint, title string, status models.TicketStatus) (*models.Ticket, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("ticket title is required")
	}
	if status == "" {
		status = models.TicketTodo
	}

	var ticket models.Ticket
	err := s.DB.WithContext(ctx).
		Where("project_id = ? AND title = ?", projectID, title).
		Attrs(models.Ticket{Status: status}).
		FirstOrCreate(&ticket, models.Ticket{ProjectID: projectID, Title: title}).Error
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ExtractTicketRefs returns the distinct ticket references in text in order of
// first appearance.
func ExtractTicketRefs(text string) []string {
	found := ticketRefPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(found))
	refs := make([]string, 0, len(found))
	for _, ref := range found {
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	return refs
}

type Transition struct {
	Ref    string
	Status models.TicketStatus
}

// PlanTransitions decides the target status of each referenced ticket. A
// ticket named under yesterday with completion language anywhere in the
// response is done; otherwise one named under today with in-progress language
// is in progress. The result depends only on the three fields.
func PlanTransitions(yesterday, today, blockers string) []Transition {
	all := strings.Join([]string{yesterday, today, blockers}, " ")
	refs := ExtractTicketRefs(all)
	if len(refs) == 0 {
		return nil
	}

	completed := completionPattern.MatchString(all)
	started := inProgressPattern.MatchString(all)
	inYesterday := refSet(yesterday)
	inToday := refSet(today)

	var plan []Transition
	for _, ref := range refs {
		switch {
		case completed && inYesterday[ref]:
			plan = append(plan, Transition{Ref: ref, Status: models.TicketDone})
		case started && inToday[ref]:
			plan = append(plan, Transition{Ref: ref, Status: models.TicketInProgress})
		}
	}
	return plan
}

func refSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, ref := range ExtractTicketRefs(text) {
		set[ref] = true
	}
	return set
}

// TicketLinker applies PlanTransitions to stored tickets. Every failure is
// logged and dropped; nothing reaches the submitter.
type TicketLinker struct {
	Tickets TicketStore
	Metrics metrics.Recorder
	Logger  *slog.Logger
}

func NewTicketLinker(tickets TicketStore, logger *slog.Logger) *TicketLinker {
	if logger == nil {
		logger = slog.Default()
	}
	return &TicketLinker{Tickets: tickets, Metrics: metrics.Nop{}, Logger: logger}
}

// ProcessResponse returns the number of tickets whose status changed.
func (l *TicketLinker) ProcessResponse(ctx context.Context, projectID uint, resp models.StandupResponse) int {
	changed := 0
	for _, tr := range PlanTransitions(resp.Yesterday, resp.Today, resp.Blockers) {
		if ctx.Err() != nil {
			l.Logger.Warn("ticket linkage interrupted",
				slog.Uint64("response_id", uint64(resp.ID)),
				slog.String("error", ctx.Err().Error()),
			)
			return changed
		}

		log := l.Logger.With(
			slog.Uint64("response_id", uint64(resp.ID)),
			slog.String("ticket_ref", tr.Ref),
		)

		ticket, err := l.Tickets.FindByRef(ctx, projectID, tr.Ref)
		if err != nil {
			if errors.Is(err, ErrTicketNotFound) || errors.Is(err, ErrAmbiguousTicket) {
				log.Info("ticket reference not linked", slog.String("reason", err.Error()))
			} else {
				log.Warn("ticket lookup failed", slog.String("error", err.Error()))
			}
			continue
		}

		if ticket.Status == tr.Status {
			continue
		}
		// A finished ticket is not reopened by a mention under today.
		if ticket.Status == models.TicketDone && tr.Status == models.TicketInProgress {
			continue
		}

		if err := l.Tickets.UpdateStatus(ctx, ticket.ID, tr.Status); err != nil {
			log.Warn("ticket status update failed", slog.String("error", err.Error()))
			continue
		}
		changed++
		l.recorder().RecordTicketTransition(string(tr.Status))
		log.Info("ticket status updated from standup",
			slog.Uint64("ticket_id", uint64(ticket.ID)),
			slog.String("from", string(ticket.Status)),
			slog.String("to", string(tr.Status)),
		)
	}
	return changed
}

func (l *TicketLinker) recorder() metrics.Recorder {
	if l.Metrics == nil {
		return metrics.Nop{}
	}
	return l.Metrics
}
