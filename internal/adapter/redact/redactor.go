package redact

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/user/feedback-pipeline/internal/domain"
)

// maxInputRunes guards the engine against pathological inputs. Anything
// longer fails closed rather than risking a partial redaction.
const maxInputRunes = 10000

// Redactor transforms free text into a version with no recoverable personal
// identifiers. Redaction is pure and deterministic: identical input always
// yields identical output, which the audit replay depends on.
type Redactor struct {
	rules  *RuleSet
	logger *slog.Logger
}

// NewRedactor creates a Redactor bound to one immutable rule set.
func NewRedactor(rules *RuleSet, logger *slog.Logger) *Redactor {
	return &Redactor{rules: rules, logger: logger.With("component", "redactor")}
}

// RuleSetVersion returns the version of the rule set in use.
func (r *Redactor) RuleSetVersion() string { return r.rules.Version }

// Redact derives the RedactedFeedback for an event. It fails closed: on any
// error the caller must quarantine the event, never pass it through.
func (r *Redactor) Redact(event *domain.FeedbackEvent) (domain.RedactedFeedback, error) {
	if !utf8.ValidString(event.Text) {
		return domain.RedactedFeedback{}, &domain.RedactionError{EventID: event.ID, Reason: "text is not valid UTF-8"}
	}
	if utf8.RuneCountInString(event.Text) > maxInputRunes {
		return domain.RedactedFeedback{}, &domain.RedactionError{EventID: event.ID, Reason: "text exceeds redaction input limit"}
	}

	text, spans := r.rules.Apply(event.Text)

	return domain.RedactedFeedback{
		EventID:        event.ID,
		TenantID:       event.TenantID,
		Module:         event.Module,
		Severity:       event.Severity,
		Text:           text,
		Spans:          spans,
		RuleSetVersion: r.rules.Version,
		RedactedAt:     time.Now().UTC(),
	}, nil
}

type candidate struct {
	start    int
	end      int
	category string
	priority int
}

// Apply runs the ordered pattern rules and the context-aware pass over text.
// It is a pure function of (rule set, text).
func (rs *RuleSet) Apply(text string) (string, []domain.RedactionSpan) {
	var cands []candidate
	for prio, rule := range rs.rules {
		for _, loc := range rule.Pattern.FindAllStringIndex(text, -1) {
			cands = append(cands, candidate{start: loc[0], end: loc[1], category: rule.Category, priority: prio})
		}
	}

	// Resolve overlaps: earliest start wins; at the same start the longest
	// match wins, then the higher-priority (more specific) rule.
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].start != cands[j].start {
			return cands[i].start < cands[j].start
		}
		if cands[i].end != cands[j].end {
			return cands[i].end > cands[j].end
		}
		return cands[i].priority < cands[j].priority
	})

	var selected []candidate
	lastEnd := -1
	for _, c := range cands {
		if c.start < lastEnd {
			continue
		}
		selected = append(selected, c)
		lastEnd = c.end
	}

	out, spans := replaceAll(text, selected)

	return rs.contextPass(out, text, spans)
}

// Scan reports the categories of any rule matches in text without rewriting
// it. The safety guard uses it to detect residual PII in generated output.
func (rs *RuleSet) Scan(text string) []string {
	var found []string
	for _, rule := range rs.rules {
		if rule.Pattern.MatchString(text) {
			found = append(found, rule.Category)
		}
	}
	return found
}

// contextPass removes care-specific quasi-identifiers that are only
// identifying in combination: medication names paired with a bed/room
// reference, and sub-hour timestamps paired with a named ward.
func (rs *RuleSet) contextPass(text, original string, spans []domain.RedactionSpan) (string, []domain.RedactionSpan) {
	if strings.Contains(text, Token(CategoryRoom)) {
		text, spans = rewrite(text, rs.medications, CategoryMedication, spans)
	}
	if rs.wardName.MatchString(original) {
		text, spans = rewrite(text, rs.narrowTime, CategoryTime, spans)
		text, spans = rewrite(text, rs.wardName, CategoryWard, spans)
	}
	return text, spans
}

// replaceAll substitutes the selected candidates with category tokens,
// recording spans in original-text coordinates.
func replaceAll(text string, selected []candidate) (string, []domain.RedactionSpan) {
	var (
		b     strings.Builder
		spans []domain.RedactionSpan
		pos   int
	)
	for _, c := range selected {
		b.WriteString(text[pos:c.start])
		b.WriteString(Token(c.category))
		spans = append(spans, domain.RedactionSpan{
			Category: c.category,
			Offset:   c.start,
			Length:   c.end - c.start,
		})
		pos = c.end
	}
	b.WriteString(text[pos:])
	return b.String(), spans
}

// rewrite replaces every match of pattern in text with the category token.
// Spans from the context pass carry no original offsets since the text has
// already been rewritten once; only category and length are meaningful.
func rewrite(text string, pattern *regexp.Regexp, category string, spans []domain.RedactionSpan) (string, []domain.RedactionSpan) {
	out := pattern.ReplaceAllStringFunc(text, func(m string) string {
		spans = append(spans, domain.RedactionSpan{Category: category, Length: len(m)})
		return Token(category)
	})
	return out, spans
}
