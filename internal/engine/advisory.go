package engine

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harborstack/channelwatch/internal/models"
)

// AdvisoryEngine attaches operator guidance to findings via declarative rules.
type AdvisoryEngine struct {
	rules  []AdvisoryRule
	logger *slog.Logger
}

// AdvisoryRule is a single guidance rule.
type AdvisoryRule struct {
	ID         string        `yaml:"id"`
	Match      AdvisoryMatch `yaml:"match"`
	Advisories []string      `yaml:"advisories"`
}

// AdvisoryMatch defines optional attributes for rule matching. Empty fields
// match everything.
type AdvisoryMatch struct {
	Channel          string   `yaml:"channel"`
	MinSeverity      float64  `yaml:"min_severity"`
	MinDurationDays  int      `yaml:"min_duration_days"`
	EvidenceContains []string `yaml:"evidence_contains"`
}

// AdvisoryConfigFile is the YAML root structure.
type AdvisoryConfigFile struct {
	Rules []AdvisoryRule `yaml:"rules"`
}

// NewAdvisoryEngine loads rules from the provided path. An empty or missing
// path returns a nil engine, which advises nothing.
func NewAdvisoryEngine(path string, logger *slog.Logger) (*AdvisoryEngine, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg AdvisoryConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdvisoryEngine{rules: cfg.Rules, logger: logger}, nil
}

// Advise returns the advisories whose rules match the finding.
func (e *AdvisoryEngine) Advise(finding models.Finding) []string {
	if e == nil || !finding.OverallVerdict {
		return nil
	}

	matched := make([]string, 0)
	for _, rule := range e.rules {
		if rule.Match.Channel != "" && !strings.EqualFold(rule.Match.Channel, finding.ChannelID) {
			continue
		}
		if rule.Match.MinSeverity > 0 && !windowReaches(finding.Windows, rule.Match.MinSeverity) {
			continue
		}
		if rule.Match.MinDurationDays > 0 && !windowLasts(finding.Windows, rule.Match.MinDurationDays) {
			continue
		}
		if len(rule.Match.EvidenceContains) > 0 && !evidenceContains(finding.Windows, rule.Match.EvidenceContains) {
			continue
		}
		matched = appendUnique(matched, rule.Advisories...)
	}
	if len(matched) == 0 {
		return nil
	}
	return matched
}

func windowReaches(windows []models.WindowReport, minSeverity float64) bool {
	for _, report := range windows {
		if report.Window.Severity >= minSeverity {
			return true
		}
	}
	return false
}

func windowLasts(windows []models.WindowReport, minDays int) bool {
	for _, report := range windows {
		if report.Window.Days() >= minDays {
			return true
		}
	}
	return false
}

func evidenceContains(windows []models.WindowReport, keywords []string) bool {
	for _, report := range windows {
		for _, set := range report.Evidence {
			for _, item := range set.Items {
				text := strings.ToLower(item.Text)
				for _, kw := range keywords {
					if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
						return true
					}
				}
			}
		}
	}
	return false
}

func appendUnique(existing []string, additions ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, item := range existing {
		seen[item] = struct{}{}
	}
	for _, item := range additions {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		existing = append(existing, item)
		seen[item] = struct{}{}
	}
	return existing
}
