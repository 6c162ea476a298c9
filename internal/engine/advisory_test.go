package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harborstack/channelwatch/internal/models"
	"github.com/harborstack/channelwatch/internal/utils"
)

const advisoryRulesYAML = `rules:
  - id: malacca-severe
    match:
      channel: malacca-strait
      min_severity: 1.0
    advisories:
      - "Expect multi-day transit delays through the Strait of Malacca"
  - id: weather-driven
    match:
      evidence_contains: ["gale", "typhoon"]
    advisories:
      - "Congestion coincides with severe weather; expect recovery once conditions clear"
  - id: long-episode
    match:
      min_duration_days: 21
    advisories:
      - "Episode exceeds three weeks; review alternate routing"
`

func writeRules(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "advisories.yaml")
	if err := os.WriteFile(path, []byte(advisoryRulesYAML), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return path
}

func congestedFinding() models.Finding {
	return models.Finding{
		ChannelID:      "malacca-strait",
		OverallVerdict: true,
		Windows: []models.WindowReport{{
			Window: models.CongestionWindow{
				Start:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
				End:      time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
				Severity: 1.6,
			},
			Evidence: []models.EvidenceSet{{
				Category: models.EvidenceWeather,
				Status:   models.EvidencePresent,
				Items: []models.EvidenceItem{{
					Category: models.EvidenceWeather,
					Text:     "Gale warning issued for the southern approach",
				}},
			}},
		}},
	}
}

func TestAdvisoryEngineMatches(t *testing.T) {
	eng, err := NewAdvisoryEngine(writeRules(t), utils.NewLogger("error", false))
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if eng == nil {
		t.Fatal("expected engine")
	}

	advisories := eng.Advise(congestedFinding())
	if len(advisories) != 2 {
		t.Fatalf("expected 2 advisories, got %d: %v", len(advisories), advisories)
	}
	if advisories[0] != "Expect multi-day transit delays through the Strait of Malacca" {
		t.Errorf("unexpected first advisory: %q", advisories[0])
	}
	// The 14-day window must not trigger the 21-day rule.
	for _, adv := range advisories {
		if adv == "Episode exceeds three weeks; review alternate routing" {
			t.Error("long-episode rule should not match a 14-day window")
		}
	}
}

func TestAdvisoryEngineSkipsQuietFinding(t *testing.T) {
	eng, err := NewAdvisoryEngine(writeRules(t), utils.NewLogger("error", false))
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}

	finding := congestedFinding()
	finding.OverallVerdict = false
	finding.Windows = nil
	if advisories := eng.Advise(finding); advisories != nil {
		t.Errorf("quiet finding should yield no advisories, got %v", advisories)
	}
}

func TestAdvisoryEngineNilIsSafe(t *testing.T) {
	var eng *AdvisoryEngine
	if advisories := eng.Advise(congestedFinding()); advisories != nil {
		t.Errorf("nil engine should advise nothing, got %v", advisories)
	}
}

func TestAdvisoryEngineMissingFile(t *testing.T) {
	eng, err := NewAdvisoryEngine(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if eng != nil {
		t.Fatal("missing file should yield nil engine")
	}
}
