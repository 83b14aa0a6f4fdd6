package redact

import "regexp"

// Redaction categories. The bracketed form of a category is the token that
// replaces a matched span, e.g. [PHONE].
const (
	CategoryNHSNumber  = "NHS_NO"
	CategoryMRN        = "MRN"
	CategoryStaffID    = "STAFF_ID"
	CategoryEmail      = "EMAIL"
	CategoryPhone      = "PHONE"
	CategoryPostcode   = "POSTCODE"
	CategoryAddress    = "ADDRESS"
	CategoryRoom       = "ROOM"
	CategoryName       = "NAME"
	CategoryMedication = "MEDICATION"
	CategoryTime       = "TIME"
	CategoryWard       = "WARD"
)

// Rule is one category-specific pattern. Rules are applied in slice order:
// the most specific pattern comes first so overlapping matches resolve
// deterministically (e.g. an NHS number is never half-eaten by the generic
// phone rule).
type Rule struct {
	Category string
	Pattern  *regexp.Regexp
}

// RuleSet is a versioned, immutable set of redaction rules. A set is loaded
// once per processing run and never mutated, so redaction stays
// deterministic even if an operator ships a new rule version concurrently.
type RuleSet struct {
	Version     string
	rules       []Rule
	medications *regexp.Regexp
	narrowTime  *regexp.Regexp
	wardName    *regexp.Regexp
}

// DefaultRuleSet returns the built-in rule set. The version string changes
// whenever a pattern changes so audit entries can name the exact rules a
// redaction ran under.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		Version: "v2025.08",
		rules: []Rule{
			{CategoryNHSNumber, regexp.MustCompile(`\b\d{3}[ -]\d{3}[ -]\d{4}\b`)},
			{CategoryMRN, regexp.MustCompile(`(?i)\b(?:mrn|medical record(?: number)?)[ :#-]*\d{4,10}\b`)},
			{CategoryStaffID, regexp.MustCompile(`(?i)\b(?:staff|employee)[ -]?(?:id|no\.?|number)[ :#-]*[A-Za-z]{0,2}\d{3,8}\b`)},
			{CategoryEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
			{CategoryPhone, regexp.MustCompile(`(?:\+44[ -]?7\d{3}|\b07\d{3})(?:[ -]?\d{3}){2}\b|\b0\d{2,4}[ -]\d{5,8}\b|\b0\d{9,10}\b`)},
			{CategoryPostcode, regexp.MustCompile(`\b[A-Z]{1,2}[0-9][A-Z0-9]? ?[0-9][A-Z]{2}\b`)},
			{CategoryAddress, regexp.MustCompile(`\b\d{1,4} (?:[A-Z][A-Za-z']+ ){1,3}(?:Street|St|Road|Rd|Avenue|Ave|Lane|Ln|Close|Drive|Way|Court|Crescent|Place|Terrace)\b`)},
			{CategoryRoom, regexp.MustCompile(`(?i)\b(?:bed|room|bay) ?#? ?\d+[a-z]?\b`)},
			{CategoryName, regexp.MustCompile(`\b(?:Nurse|Sister|Matron|Doctor|Dr|Professor|Prof|Mr|Mrs|Ms|Miss)\.? [A-Z][a-z]+(?: [A-Z][a-z]+)?\b`)},
		},
		// Care-specific quasi-identifiers handled by the context-aware
		// pass: a medication name is only identifying when the text also
		// pins down a bed or room; a sub-hour timestamp only when a ward
		// is named.
		medications: regexp.MustCompile(`(?i)\b(?:warfarin|insulin|morphine|paracetamol|metformin|amoxicillin|ramipril|atorvastatin|omeprazole|salbutamol|codeine|diazepam)\b`),
		narrowTime:  regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\b`),
		wardName:    regexp.MustCompile(`(?i)\bward [A-Za-z0-9]+\b`),
	}
}

// Token returns the replacement token for a category.
func Token(category string) string { return "[" + category + "]" }
