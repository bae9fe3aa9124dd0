package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPSummarizer posts the buckets as JSON to an external service and expects
// {"summary_text": "...", "blockers_json": [...]} back. The caller bounds the
// call through ctx.
type HTTPSummarizer struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewHTTPSummarizer(url, token string) *HTTPSummarizer {
	return &HTTPSummarizer{URL: url, Token: token, Client: &http.Client{}}
}

func (s *HTTPSummarizer) Summarize(ctx context.Context, b Buckets) (Result, error) {
	body, err := json.Marshal(b)
	if err != nil {
		return Result{}, fmt.Errorf("encode buckets: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("summarizer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("summarizer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode summarizer response: %w", err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return Result{}, errors.New("summarizer returned empty text")
	}
	return out, nil
}
