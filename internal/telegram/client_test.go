package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/monkeyball/internal/models"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{1 * time.Hour, "1h"},
		{90 * time.Minute, "1.5h"},
		{30 * time.Minute, "30m"},
		{1 * time.Minute, "1m"},
		{45 * time.Second, "45s"},
	}

	for _, tt := range tests {
		result := formatDuration(tt.duration)
		if result != tt.expected {
			t.Errorf("formatDuration(%v) = %s, expected %s", tt.duration, result, tt.expected)
		}
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	got := escapeMarkdownV2("spot 628.86 (call)")
	want := `spot 628\.86 \(call\)`
	if got != want {
		t.Errorf("escapeMarkdownV2 = %q, want %q", got, want)
	}
}

func TestTopStrikes(t *testing.T) {
	stats := []models.StatRow{
		{Strike: 610},
		{Strike: 625, Hits: 2, RetailJuice: 0.6, MMJuice: 1.4},
		{Strike: 630, Hits: 7, RetailJuice: 2.1, MMJuice: 4.9},
		{Strike: 631, Hits: 2, RetailJuice: 0.6, MMJuice: 2.0},
		{Strike: 635, Hits: 1, RetailJuice: 0.3, MMJuice: 0.7},
	}

	top := topStrikes(stats)
	if len(top) != 4 {
		t.Fatalf("untouched strikes should be dropped, got %d rows", len(top))
	}
	if top[0].Strike != 630 {
		t.Errorf("hottest strike should lead, got %d", top[0].Strike)
	}
	// Equal hits rank by market-maker juice.
	if top[1].Strike != 631 || top[2].Strike != 625 {
		t.Errorf("tie should break on mm juice: %+v", top[:3])
	}
}

func TestFormatDigest(t *testing.T) {
	d := Digest{
		Ticker:    "SPY",
		SpotPrice: 628.86,
		Trials:    100,
		Duration:  90 * time.Second,
		Stats: []models.StatRow{
			{Strike: 630, Hits: 7, RetailJuice: 2.1, MMJuice: 4.9},
		},
		Summaries:  []string{"Agent retail Insights:\n\nKey Learnings:\n- Hit call strike 630"},
		FinishedAt: time.Date(2025, 8, 7, 15, 30, 0, 0, time.UTC),
	}

	msg := formatDigest(d)
	for _, want := range []string{
		"*Coconut Episode Complete*",
		"2025\\-08\\-07 15:30:00",
		"SPY spot 628\\.86, 100 trials over 1\\.5m",
		"Strike *630*: 7 hits",
		"Agent retail Insights:",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("digest missing %q:\n%s", want, msg)
		}
	}
}
