package safety

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/user/feedback-pipeline/internal/adapter/redact"
	"github.com/user/feedback-pipeline/internal/domain"
)

// DefaultBlocklist covers unprofessional language the pipeline must never
// persist in generated output. Operators extend it via configuration.
var DefaultBlocklist = []string{
	"idiot", "stupid", "useless staff", "incompetent", "moron", "lazy",
}

// Guard re-scans generated text before it reaches the output store. It is
// fail-closed: anything that does not positively pass is rejected.
type Guard struct {
	rules     *redact.RuleSet
	blocklist []string
	maxRunes  int
	logger    *slog.Logger
}

// NewGuard creates a Guard that checks generated output against the same
// pattern rules used for redaction, since generation can hallucinate
// specifics that were never in its input.
func NewGuard(rules *redact.RuleSet, blocklist []string, maxRunes int, logger *slog.Logger) *Guard {
	if maxRunes <= 0 {
		maxRunes = 4000
	}
	return &Guard{
		rules:     rules,
		blocklist: blocklist,
		maxRunes:  maxRunes,
		logger:    logger.With("component", "safety_guard"),
	}
}

// Check validates one piece of generated text. artifactType names the
// artifact for the audit trail. A nil return is the only pass result.
func (g *Guard) Check(artifactType, text string) error {
	var reasons []string

	if text == "" {
		reasons = append(reasons, "empty")
	}
	if utf8.RuneCountInString(text) > g.maxRunes {
		reasons = append(reasons, "length")
	}

	for _, category := range g.rules.Scan(text) {
		reasons = append(reasons, "residual_pii:"+category)
	}

	lower := strings.ToLower(text)
	for _, word := range g.blocklist {
		if strings.Contains(lower, word) {
			reasons = append(reasons, fmt.Sprintf("blocklist:%s", word))
		}
	}

	if len(reasons) > 0 {
		g.logger.Warn("generated output failed safety check", "artifact", artifactType, "reasons", reasons)
		return &domain.SafetyError{ArtifactType: artifactType, Reasons: reasons}
	}
	return nil
}
