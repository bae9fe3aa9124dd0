package summarizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Gurkunwar/dailybot-engine/internal/models"
)

func sampleBuckets() Buckets {
	alice := Entry{ParticipantID: "alice", Yesterday: "Fixed BUG-12, done", Today: "Reviewing PRs", Blockers: "Waiting on staging DB"}
	bob := Entry{ParticipantID: "bob", Yesterday: "Wrote docs"}
	return Buckets{
		SessionID:          3,
		LocalDate:          "2026-03-02",
		Blockers:           []Entry{alice},
		InProgress:         []Entry{alice},
		Completed:          []Entry{alice, bob},
		NoResponse:         []string{"carol"},
		NonRespondersKnown: true,
	}
}

func TestTemplate_RendersEverySection(t *testing.T) {
	res := Template(sampleBuckets())

	for _, want := range []string{
		"Standup summary for 2026-03-02",
		"🔴 Blockers\n- <@alice>: Waiting on staging DB",
		"🟡 In Progress\n- <@alice>: Reviewing PRs",
		"🟢 Completed Yesterday\n- <@alice>: Fixed BUG-12, done\n- <@bob>: Wrote docs",
		"⚠ No Response\n- <@carol>",
	} {
		if !strings.Contains(res.Text, want) {
			t.Errorf("template output missing %q:\n%s", want, res.Text)
		}
	}

	if len(res.Blockers) != 1 || res.Blockers[0] != (models.BlockerItem{ParticipantID: "alice", Issue: "Waiting on staging DB"}) {
		t.Errorf("Blockers = %+v", res.Blockers)
	}
}

func TestTemplate_IsDeterministic(t *testing.T) {
	a := Template(sampleBuckets())
	b := Template(sampleBuckets())
	if a.Text != b.Text {
		t.Error("template output differs between identical inputs")
	}
}

func TestTemplate_UnknownMembership(t *testing.T) {
	b := sampleBuckets()
	b.NonRespondersKnown = false
	b.NoResponse = nil

	res := Template(b)
	if !strings.Contains(res.Text, "(membership unknown)") {
		t.Errorf("expected unknown membership marker:\n%s", res.Text)
	}
}

func TestTemplate_EmptyBucketsSayNone(t *testing.T) {
	res := Template(Buckets{LocalDate: "2026-03-02", NonRespondersKnown: true})
	if strings.Count(res.Text, "- none") != 4 {
		t.Errorf("expected four empty sections:\n%s", res.Text)
	}
	if res.Blockers == nil || len(res.Blockers) != 0 {
		t.Errorf("Blockers = %#v, want empty non-nil slice", res.Blockers)
	}
}

func TestHTTPSummarizer_Success(t *testing.T) {
	var got Buckets
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"summary_text":  "Team is mostly unblocked.",
			"blockers_json": []map[string]string{{"participant_id": "alice", "issue": "staging"}},
		})
	}))
	defer srv.Close()

	s := NewHTTPSummarizer(srv.URL, "secret")
	res, err := s.Summarize(context.Background(), sampleBuckets())
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if res.Text != "Team is mostly unblocked." {
		t.Errorf("Text = %q", res.Text)
	}
	if len(res.Blockers) != 1 || res.Blockers[0].Issue != "staging" {
		t.Errorf("Blockers = %+v", res.Blockers)
	}
	if got.SessionID != 3 || len(got.Completed) != 2 {
		t.Errorf("server received %+v", got)
	}
}

func TestHTTPSummarizer_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPSummarizer(srv.URL, "").Summarize(context.Background(), sampleBuckets())
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected 503 error, got %v", err)
	}
}

func TestHTTPSummarizer_EmptyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"summary_text": "   "}`))
	}))
	defer srv.Close()

	if _, err := NewHTTPSummarizer(srv.URL, "").Summarize(context.Background(), sampleBuckets()); err == nil {
		t.Fatal("expected error for empty summary text")
	}
}

func TestHTTPSummarizer_RespectsContextTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewHTTPSummarizer(srv.URL, "").Summarize(ctx, sampleBuckets())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("Summarize blocked for %v", time.Since(start))
	}
}
