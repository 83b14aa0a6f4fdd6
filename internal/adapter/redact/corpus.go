package redact

import "strings"

// CorpusSample is one labelled synthetic string: Identifier is the injected
// personal identifier inside Text, Category the token it must become. The
// corpus is the ground truth for the masking-accuracy exit criterion.
type CorpusSample struct {
	Text       string
	Identifier string
	Category   string
}

// Corpus returns the built-in labelled corpus of synthetic PII-bearing
// strings. All identifiers are fabricated.
func Corpus() []CorpusSample {
	return []CorpusSample{
		{"Call me at 07912345678 if the form breaks again", "07912345678", CategoryPhone},
		{"My number is 07700 900 123 for follow up", "07700 900 123", CategoryPhone},
		{"Reach the office on +44 7700 900 456 after lunch", "+44 7700 900 456", CategoryPhone},
		{"Switchboard 0161 4960000 never answers", "0161 4960000", CategoryPhone},
		{"Front desk is 02079460000 during the day", "02079460000", CategoryPhone},
		{"Email me at jo.bloggs@example.org about the rota bug", "jo.bloggs@example.org", CategoryEmail},
		{"Send the export to ward.clerk+test@nhs.example.net please", "ward.clerk+test@nhs.example.net", CategoryEmail},
		{"Contact admin_01@hospital.example.com for access", "admin_01@hospital.example.com", CategoryEmail},
		{"Patient NHS number 943 476 5919 was rejected by the form", "943 476 5919", CategoryNHSNumber},
		{"The lookup fails for 485-777-3456 every time", "485-777-3456", CategoryNHSNumber},
		{"Record 612 233 4455 shows the wrong allergy list", "612 233 4455", CategoryNHSNumber},
		{"MRN 8834412 is duplicated in the list view", "MRN 8834412", CategoryMRN},
		{"Search by medical record number 99120034 times out", "medical record number 99120034", CategoryMRN},
		{"mrn: 4455123 appears twice after merge", "mrn: 4455123", CategoryMRN},
		{"Staff ID 44321 cannot log into the tablet", "Staff ID 44321", CategoryStaffID},
		{"My employee number AB12345 is rejected on login", "employee number AB12345", CategoryStaffID},
		{"staff-id 99887 locked out since the update", "staff-id 99887", CategoryStaffID},
		{"The printer at SW1A 1AA site keeps jamming", "SW1A 1AA", CategoryPostcode},
		{"Deliveries go to M1 4BT not the main site", "M1 4BT", CategoryPostcode},
		{"The clinic at EC1A 1BB lost its label printer", "EC1A 1BB", CategoryPostcode},
		{"I work at 12 High Street and the van app crashes", "12 High Street", CategoryAddress},
		{"Visit notes for 221 Baker Street are missing", "221 Baker Street", CategoryAddress},
		{"The round at 4 Mill Lane never syncs", "4 Mill Lane", CategoryAddress},
		{"The chart for bed 12 shows stale observations", "bed 12", CategoryRoom},
		{"Room 4b has no barcode scanner mapped", "Room 4b", CategoryRoom},
		{"Bay 7 discharge summary printed twice", "Bay 7", CategoryRoom},
		{"Nurse Kelly said the medication save button is broken", "Nurse Kelly", CategoryName},
		{"Dr Patel reported the same crash on Tuesday", "Dr Patel", CategoryName},
		{"Sister Morgan cannot open the handover screen", "Sister Morgan", CategoryName},
		{"Mrs Taylor raised this twice through support", "Mrs Taylor", CategoryName},
		{"Matron Hughes asked for larger fonts", "Matron Hughes", CategoryName},
		{"Professor Adams flagged the slow load time", "Professor Adams", CategoryName},
	}
}

// MeasureAccuracy applies the rule set to every corpus sample and returns
// the fraction whose identifier was fully replaced with the correct
// category token.
func MeasureAccuracy(rs *RuleSet, corpus []CorpusSample) float64 {
	if len(corpus) == 0 {
		return 0
	}
	correct := 0
	for _, sample := range corpus {
		out, _ := rs.Apply(sample.Text)
		if !strings.Contains(out, sample.Identifier) && strings.Contains(out, Token(sample.Category)) {
			correct++
		}
	}
	return float64(correct) / float64(len(corpus))
}
