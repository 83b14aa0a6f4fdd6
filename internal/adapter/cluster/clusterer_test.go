package cluster

import (
	"testing"

	"github.com/user/feedback-pipeline/internal/domain"
)

func item(id, module, text string) domain.RedactedFeedback {
	return domain.RedactedFeedback{EventID: id, TenantID: "t1", Module: module, Text: text}
}

func TestAssignGroupsSimilarFeedback(t *testing.T) {
	c := NewClusterer(0.2)

	items := []domain.RedactedFeedback{
		item("e1", "medication", "[NAME] said the medication save button does nothing"),
		item("e2", "medication", "medication save button broken again after update"),
		item("e3", "rota", "rota export spreadsheet columns are misaligned"),
		item("e4", "medication", "save button on the medication screen fails silently"),
	}

	groups := c.Assign(items)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	var medGroup *Group
	for i := range groups {
		if len(groups[i].Members) == 3 {
			medGroup = &groups[i]
		}
	}
	if medGroup == nil {
		t.Fatal("expected a group with 3 medication members")
	}
	if medGroup.Modules[0] != "medication" {
		t.Errorf("expected medication module coverage, got %v", medGroup.Modules)
	}
	if medGroup.Theme == "" {
		t.Error("expected a non-empty theme")
	}
}

func TestAssignKeepsSingletons(t *testing.T) {
	c := NewClusterer(0.3)

	items := []domain.RedactedFeedback{
		item("e1", "medication", "medication list rendering is slow"),
		item("e2", "billing", "invoice totals disagree with the ledger export"),
	}

	groups := c.Assign(items)
	if len(groups) != 2 {
		t.Fatalf("expected singleton groups to be retained, got %d groups", len(groups))
	}
	for _, g := range groups {
		if len(g.Members) != 1 {
			t.Errorf("expected 1 member, got %d", len(g.Members))
		}
	}
}

func TestAssignDeterministic(t *testing.T) {
	c := NewClusterer(0.2)
	items := []domain.RedactedFeedback{
		item("e1", "medication", "medication save button does nothing"),
		item("e2", "medication", "save button broken on medication screen"),
		item("e3", "rota", "rota export columns misaligned"),
	}

	first := c.Assign(items)
	for i := 0; i < 20; i++ {
		got := c.Assign(items)
		if len(got) != len(first) {
			t.Fatalf("iteration %d: group count %d != %d", i, len(got), len(first))
		}
		for j := range got {
			if got[j].Theme != first[j].Theme || len(got[j].Members) != len(first[j].Members) {
				t.Fatalf("iteration %d: group %d differs", i, j)
			}
		}
	}
}

func TestAssignEmptyInput(t *testing.T) {
	c := NewClusterer(0.2)
	if groups := c.Assign(nil); len(groups) != 0 {
		t.Errorf("expected no groups for empty input, got %d", len(groups))
	}
}
