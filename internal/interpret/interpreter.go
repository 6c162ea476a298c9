// Package interpret parses free-form congestion questions into structured
// detection requests.
package interpret

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harborstack/channelwatch/internal/models"
	"github.com/harborstack/channelwatch/internal/utils"
)

// Interpreter-stage validation failures. All are fatal to the ask path and
// echo the offending text for user correction.
var (
	ErrAmbiguousChannel   = errors.New("ambiguous channel")
	ErrUnresolvedDate     = errors.New("unresolved date")
	ErrUnsupportedChannel = errors.New("unsupported channel")
)

// Channel is one supported shipping channel with its matching vocabulary.
type Channel struct {
	ID      string
	Name    string
	Aliases []string
}

// Vocabulary is the fixed enumerated set of supported channels. Extending it
// is a configuration change, not a code change.
type Vocabulary []Channel

// NameOf returns the display name of a channel ID, or the ID itself when
// unknown.
func (v Vocabulary) NameOf(id string) string {
	for _, ch := range v {
		if ch.ID == id {
			return ch.Name
		}
	}
	return id
}

// Contains reports whether the vocabulary defines the channel ID.
func (v Vocabulary) Contains(id string) bool {
	for _, ch := range v {
		if ch.ID == id {
			return true
		}
	}
	return false
}

// Date forms accepted: explicit year-month-day (2023-04-30, 2023/4/30,
// 2023年4月30日) or year-month (2023-04, 2023年4月), the latter resolved to
// the month's last calendar day. Relative dates ("last month") are not
// resolved and fail with ErrUnresolvedDate.
var (
	ymdPattern   = regexp.MustCompile(`(\d{4})\s*[-/年]\s*(\d{1,2})\s*[-/月]\s*(\d{1,2})\s*日?`)
	monthPattern = regexp.MustCompile(`(\d{4})\s*[-/年]\s*(\d{1,2})\s*月?`)
)

// Parse extracts a channel and reference date from question text. It is a
// pure lexical matcher: channel names and aliases are matched case- and
// whitespace-insensitively as substrings, and the date must contain an
// explicit year.
func Parse(question string, vocab Vocabulary) (models.StructuredRequest, error) {
	channelID, err := matchChannel(question, vocab)
	if err != nil {
		return models.StructuredRequest{}, err
	}

	refDate, err := matchDate(question)
	if err != nil {
		return models.StructuredRequest{}, err
	}

	return models.StructuredRequest{ChannelID: channelID, ReferenceDate: refDate}, nil
}

func matchChannel(question string, vocab Vocabulary) (string, error) {
	normalized := normalize(question)

	matched := make([]string, 0, 1)
	for _, ch := range vocab {
		terms := append([]string{ch.Name}, ch.Aliases...)
		for _, term := range terms {
			if term == "" {
				continue
			}
			if strings.Contains(normalized, normalize(term)) {
				matched = append(matched, ch.ID)
				break
			}
		}
	}

	switch len(matched) {
	case 0:
		return "", fmt.Errorf("%w: no supported channel in %q", ErrUnsupportedChannel, question)
	case 1:
		return matched[0], nil
	default:
		return "", fmt.Errorf("%w: %q matches %s", ErrAmbiguousChannel, question, strings.Join(matched, ", "))
	}
}

func matchDate(question string) (time.Time, error) {
	if m := ymdPattern.FindStringSubmatch(question); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if validDay(year, month, day) {
			return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
		}
	}

	if m := monthPattern.FindStringSubmatch(question); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			// Convention: a month resolves to its last calendar day.
			return utils.EndOfMonth(year, time.Month(month)), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: no explicit year and month in %q", ErrUnresolvedDate, question)
}

func validDay(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	return day <= utils.EndOfMonth(year, time.Month(month)).Day()
}

func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
