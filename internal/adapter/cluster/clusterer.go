package cluster

import (
	"regexp"
	"sort"
	"strings"

	"github.com/user/feedback-pipeline/internal/domain"
)

// Group is a set of redacted feedback items sharing a theme. Groups are an
// in-memory intermediate; the window processor turns them into versioned
// Cluster artifacts.
type Group struct {
	Theme   string
	Members []domain.RedactedFeedback
	Modules []string
}

var tokenPattern = regexp.MustCompile(`[a-z']+`)

// Common words that carry no theme signal.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "is": {},
	"isn't": {}, "are": {}, "was": {}, "it": {}, "its": {}, "this": {},
	"that": {}, "on": {}, "in": {}, "at": {}, "to": {}, "of": {}, "for": {},
	"with": {}, "when": {}, "not": {}, "i": {}, "we": {}, "my": {}, "me": {},
	"her": {}, "him": {}, "his": {}, "said": {}, "says": {}, "very": {},
	"be": {}, "has": {}, "have": {}, "had": {}, "can": {}, "cannot": {},
	"can't": {}, "doesn't": {}, "don't": {}, "working": {}, "call": {},
}

// Clusterer groups redacted feedback by token overlap. It is deterministic:
// items are considered in input order and join the first group whose
// centroid similarity clears the threshold.
type Clusterer struct {
	threshold float64
}

// NewClusterer creates a Clusterer. threshold is the minimum Jaccard
// similarity between an item's token set and a group's accumulated token
// set for the item to join the group.
func NewClusterer(threshold float64) *Clusterer {
	return &Clusterer{threshold: threshold}
}

type group struct {
	tokens  map[string]struct{}
	members []domain.RedactedFeedback
	modules map[string]struct{}
}

// Assign partitions items into theme groups. Items that match no existing
// group become singleton groups rather than being merged, so rare but
// severe feedback is never hidden inside an unrelated cluster.
func (c *Clusterer) Assign(items []domain.RedactedFeedback) []Group {
	var groups []*group

	for _, item := range items {
		tokens := tokenize(item.Text, item.Module)
		best := -1
		bestScore := 0.0
		for i, g := range groups {
			score := jaccard(tokens, g.tokens)
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best >= 0 && bestScore >= c.threshold {
			g := groups[best]
			g.members = append(g.members, item)
			for tok := range tokens {
				g.tokens[tok] = struct{}{}
			}
			g.modules[item.Module] = struct{}{}
			continue
		}
		groups = append(groups, &group{
			tokens:  tokens,
			members: []domain.RedactedFeedback{item},
			modules: map[string]struct{}{item.Module: {}},
		})
	}

	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, Group{
			Theme:   theme(g),
			Members: g.members,
			Modules: sortedKeys(g.modules),
		})
	}
	return out
}

// tokenize lowercases text, strips redaction tokens and stopwords, and
// returns the remaining word set. The module tag counts as a token so
// same-module feedback clusters more readily.
func tokenize(text, module string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, word := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, skip := stopwords[word]; skip {
			continue
		}
		if len(word) < 3 {
			continue
		}
		tokens[word] = struct{}{}
	}
	if module != "" {
		tokens[strings.ToLower(module)] = struct{}{}
	}
	return tokens
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// theme names a group by the tokens its members share most often, giving a
// stable, human-scannable theme even before generation labels the cluster.
func theme(g *group) string {
	counts := make(map[string]int)
	for _, member := range g.members {
		for tok := range tokenize(member.Text, member.Module) {
			counts[tok]++
		}
	}

	tokens := make([]string, 0, len(counts))
	for tok := range counts {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if counts[tokens[i]] != counts[tokens[j]] {
			return counts[tokens[i]] > counts[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})

	if len(tokens) > 3 {
		tokens = tokens[:3]
	}
	return strings.Join(tokens, " ")
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
