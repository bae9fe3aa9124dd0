package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/Gurkunwar/dailybot-engine/internal/models"
)

func TestExtractTicketRefs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Fixed BUG-12, done", []string{"BUG-12"}},
		{"BUG-12 and API-7 then BUG-12 again", []string{"BUG-12", "API-7"}},
		{"lowercase bug-12 is not a ref", []string{}},
		{"no refs here", []string{}},
		{"(OPS-3)", []string{"OPS-3"}},
		{"fixed xBUG-12 and BUG-7a done", []string{}},
	}
	for _, tt := range tests {
		got := ExtractTicketRefs(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ExtractTicketRefs(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPlanTransitions(t *testing.T) {
	tests := []struct {
		name                      string
		yesterday, today, blocker string
		want                      []Transition
	}{
		{
			name:      "completed yesterday",
			yesterday: "Fixed BUG-12, done",
			want:      []Transition{{Ref: "BUG-12", Status: models.TicketDone}},
		},
		{
			name:      "completion language outside yesterday still counts",
			yesterday: "worked on BUG-12",
			today:     "BUG-12 is completed, moving on",
			want:      []Transition{{Ref: "BUG-12", Status: models.TicketDone}},
		},
		{
			name:  "started today",
			today: "Started API-7",
			want:  []Transition{{Ref: "API-7", Status: models.TicketInProgress}},
		},
		{
			name:      "each ref decided on its own",
			yesterday: "BUG-1 done",
			today:     "API-2 in progress",
			want: []Transition{
				{Ref: "BUG-1", Status: models.TicketDone},
				{Ref: "API-2", Status: models.TicketInProgress},
			},
		},
		{
			name:      "ref only in blockers",
			blocker:   "waiting on OPS-9, started yesterday",
			yesterday: "done with reviews",
			want:      nil,
		},
		{
			name:      "no keyword",
			yesterday: "looked at BUG-12",
			today:     "BUG-13",
			want:      nil,
		},
		{
			name:      "completion elsewhere does not block in progress",
			yesterday: "Closed BUG-1 done",
			today:     "started BUG-2",
			want: []Transition{
				{Ref: "BUG-1", Status: models.TicketDone},
				{Ref: "BUG-2", Status: models.TicketInProgress},
			},
		},
		{
			name:      "done is a whole word",
			yesterday: "BUG-12 undone",
			want:      nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanTransitions(tt.yesterday, tt.today, tt.blocker)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PlanTransitions() = %v, want %v", got, tt.want)
			}
		})
	}
}

func seedTicket(t *testing.T, env *testEnv, projectID uint, title string, status models.TicketStatus) models.Ticket {
	t.Helper()
	ticket := models.Ticket{ProjectID: projectID, Title: title, Status: status}
	if err := env.db.Create(&ticket).Error; err != nil {
		t.Fatal(err)
	}
	return ticket
}

func TestGormTicketStore_FindByRef(t *testing.T) {
	env := newTestEnv(t, monday0901)
	p := seedProject(t, env.db, "core")
	other := seedProject(t, env.db, "other")
	ctx := context.Background()

	want := seedTicket(t, env, p.ID, "BUG-12 login crash", models.TicketTodo)
	seedTicket(t, env, p.ID, "BUG-120 unrelated", models.TicketTodo)
	seedTicket(t, env, p.ID, "API-1 first", models.TicketTodo)
	seedTicket(t, env, p.ID, "API-1 duplicate", models.TicketTodo)
	seedTicket(t, env, other.ID, "OPS-5 elsewhere", models.TicketTodo)

	store := NewGormTicketStore(env.db)

	got, err := store.FindByRef(ctx, p.ID, "BUG-12")
	if err != nil || got.ID != want.ID {
		t.Errorf("FindByRef(BUG-12) = %v, %v; want ticket %d", got, err, want.ID)
	}
	if _, err := store.FindByRef(ctx, p.ID, "API-1"); !errors.Is(err, ErrAmbiguousTicket) {
		t.Errorf("FindByRef(API-1) error = %v, want ErrAmbiguousTicket", err)
	}
	if _, err := store.FindByRef(ctx, p.ID, "OPS-5"); !errors.Is(err, ErrTicketNotFound) {
		t.Errorf("FindByRef(OPS-5) error = %v, want ErrTicketNotFound", err)
	}
}

func TestGormTicketStore_EnsureTicket(t *testing.T) {
	env := newTestEnv(t, monday0901)
	p := seedProject(t, env.db, "core")
	store := NewGormTicketStore(env.db)
	ctx := context.Background()

	first, err := store.EnsureTicket(ctx, p.ID, "WEB-3 navbar", models.TicketInProgress)
	if err != nil {
		t.Fatal(err)
	}
	again, err := store.EnsureTicket(ctx, p.ID, " WEB-3 navbar ", models.TicketDone)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID || again.Status != models.TicketInProgress {
		t.Errorf("EnsureTicket() = %+v, want existing ticket %d left in_progress", again, first.ID)
	}

	plain, err := store.EnsureTicket(ctx, p.ID, "WEB-4 footer", "")
	if err != nil || plain.Status != models.TicketTodo {
		t.Errorf("EnsureTicket(no status) = %+v, %v", plain, err)
	}
	if _, err := store.EnsureTicket(ctx, p.ID, "  ", ""); err == nil {
		t.Error("EnsureTicket accepted an empty title")
	}
}

func TestTicketLinker_ProcessResponse(t *testing.T) {
	env := newTestEnv(t, monday0901)
	p := seedProject(t, env.db, "core")
	ctx := context.Background()

	bug := seedTicket(t, env, p.ID, "BUG-12 login crash", models.TicketTodo)
	api := seedTicket(t, env, p.ID, "API-7 rate limits", models.TicketTodo)
	finished := seedTicket(t, env, p.ID, "OPS-1 rotate keys", models.TicketDone)

	linker := NewTicketLinker(NewGormTicketStore(env.db), discardLogger())
	resp := models.StandupResponse{
		Yesterday: "Fixed BUG-12, done",
		Today:     "started API-7 and OPS-1, also MISSING-1",
	}

	if n := linker.ProcessResponse(ctx, p.ID, resp); n != 2 {
		t.Errorf("first run changed %d tickets, want 2", n)
	}
	// Replaying the same text changes nothing.
	if n := linker.ProcessResponse(ctx, p.ID, resp); n != 0 {
		t.Errorf("second run changed %d tickets, want 0", n)
	}

	statusOf := func(id uint) models.TicketStatus {
		var tk models.Ticket
		env.db.First(&tk, id)
		return tk.Status
	}
	if s := statusOf(bug.ID); s != models.TicketDone {
		t.Errorf("BUG-12 status = %q, want done", s)
	}
	// Completion language applies only to refs named under yesterday.
	if s := statusOf(api.ID); s != models.TicketInProgress {
		t.Errorf("API-7 status = %q, want in_progress", s)
	}
	if s := statusOf(finished.ID); s != models.TicketDone {
		t.Errorf("OPS-1 status = %q, want done kept", s)
	}
}

type failingTicketStore struct{ err error }

func (f failingTicketStore) FindByRef(context.Context, uint, string) (*models.Ticket, error) {
	return nil, f.err
}

func (f failingTicketStore) UpdateStatus(context.Context, uint, models.TicketStatus) error {
	return f.err
}

func TestTicketLinker_SwallowsStoreErrors(t *testing.T) {
	linker := NewTicketLinker(failingTicketStore{err: errors.New("db down")}, discardLogger())
	resp := models.StandupResponse{Yesterday: "BUG-1 done"}
	if n := linker.ProcessResponse(context.Background(), 1, resp); n != 0 {
		t.Errorf("changed = %d, want 0", n)
	}
}
