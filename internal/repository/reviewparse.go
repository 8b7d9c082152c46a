package repository

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/squireai/squire/models"
)

var (
	fileLineRe       = regexp.MustCompile(`(?im)^\s*File:\s*(.+)$`)
	lineNumberRe     = regexp.MustCompile(`(?im)^\s*Line:\s*(\d+)`)
	issueRe          = regexp.MustCompile(`(?im)^\s*Issue:\s*(.+)$`)
	confidenceRatioRe = regexp.MustCompile(`(?im)Confidence\s*Score:\s*(\d+)\s*/\s*(\d+)`)
)

// ParseBotReviewBody extracts File:/Line:/Issue:/Confidence Score: n/m
// fields from a bot code-review comment body, per spec §4.6's Collect
// stage. Confidence is normalized to a 0-5 scale via round(5*n/m); absent
// when no Confidence Score line is present.
func ParseBotReviewBody(body string) models.BotReviewFinding {
	var f models.BotReviewFinding

	if m := fileLineRe.FindStringSubmatch(body); m != nil {
		f.File = strings.TrimSpace(m[1])
	}
	if m := lineNumberRe.FindStringSubmatch(body); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			f.Line = n
		}
	}
	if m := issueRe.FindStringSubmatch(body); m != nil {
		f.Description = strings.TrimSpace(m[1])
	}
	if m := confidenceRatioRe.FindStringSubmatch(body); m != nil {
		n, errN := strconv.ParseFloat(m[1], 64)
		den, errD := strconv.ParseFloat(m[2], 64)
		if errN == nil && errD == nil && den != 0 {
			normalized := int(math.Round(5 * n / den))
			f.Confidence = &normalized
		}
	}
	return f
}
