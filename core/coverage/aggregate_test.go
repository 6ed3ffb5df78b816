package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/evidencehub/core/catalogue"
	"github.com/trezcool/evidencehub/core/evidence"
	"github.com/trezcool/evidencehub/core/submission"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		name        string
		done, total int
		want        int
	}{
		{name: "nothing", done: 0, total: 4, want: 0},
		{name: "three of four", done: 3, total: 4, want: 75},
		{name: "rounds half up", done: 1, total: 8, want: 13},
		{name: "clamped above", done: 5, total: 2, want: 100},
		{name: "clamped below", done: -1, total: 2, want: 0},
		{name: "zero total", done: 0, total: 0, want: 0},
		{name: "zero total with work", done: 2, total: 0, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percentage(tt.done, tt.total); got != tt.want {
				t.Errorf("Percentage(%d, %d) = %d; want %d", tt.done, tt.total, got, tt.want)
			}
		})
	}
}

func category() catalogue.Category {
	return catalogue.Category{
		ID:    "cat",
		Code:  "C1",
		Title: "Unit",
		Criteria: []catalogue.Criterion{
			{Code: "K1", Type: catalogue.Knowledge, Mandatory: true},
			{Code: "S1", Type: catalogue.Skill, Mandatory: true},
			{Code: "B1", Type: catalogue.Behaviour},
		},
		Requirements: []catalogue.Requirement{
			{ID: "r1", EvidenceTypes: []string{catalogue.EvidencePhoto}, QuantityRequired: 3, Mandatory: true},
			{ID: "r2", EvidenceTypes: []string{catalogue.EvidenceWitnessStatement}, QuantityRequired: 1, Mandatory: true},
			{ID: "r3", EvidenceTypes: []string{catalogue.EvidenceVideo}, QuantityRequired: 5},
		},
	}
}

func item(id, evidenceType string, links ...evidence.CriterionLink) evidence.Item {
	return evidence.Item{
		ID:         id,
		CategoryID: "cat",
		Status:     evidence.StatusActive,
		Files:      []evidence.File{{Name: id, Type: evidenceType}},
		Links:      links,
	}
}

func confirmed(code string) evidence.CriterionLink {
	return evidence.CriterionLink{Code: code, Confirmed: true}
}

func signedOff(itemIDs ...string) submission.Submission {
	return submission.Submission{CategoryID: "cat", Status: submission.StatusSignedOff, ItemIDs: itemIDs}
}

func TestAggregate(t *testing.T) {
	withdrawn := item("w", catalogue.EvidencePhoto)
	withdrawn.Status = evidence.StatusWithdrawn
	otherCategory := item("o", catalogue.EvidencePhoto)
	otherCategory.CategoryID = "other"

	allMandatory := []evidence.Item{
		item("i1", catalogue.EvidencePhoto, confirmed("K1")),
		item("i2", catalogue.EvidencePhoto, confirmed("S1")),
		item("i3", catalogue.EvidencePhoto),
		item("i4", catalogue.EvidenceWitnessStatement),
	}

	tests := []struct {
		name          string
		in            Input
		wantCompleted int
		wantRequired  int
		wantPct       int
		wantStatus    Status
		wantMapping   map[string]MappingStatus
	}{
		{
			name:         "no evidence",
			in:           Input{Category: category(), Requirements: category().Requirements},
			wantRequired: 4, wantPct: 0, wantStatus: StatusNotStarted,
			wantMapping: map[string]MappingStatus{"K1": MappingNotMapped, "S1": MappingNotMapped, "B1": MappingNotMapped},
		},
		{
			name: "three of four",
			in: Input{
				Category:     category(),
				Requirements: category().Requirements,
				Items: []evidence.Item{
					item("i1", catalogue.EvidencePhoto),
					item("i2", catalogue.EvidencePhoto),
					item("i3", catalogue.EvidenceWitnessStatement),
					item("i4", catalogue.EvidenceDocument), // satisfies nothing
					withdrawn,
					otherCategory,
				},
			},
			wantCompleted: 3, wantRequired: 4, wantPct: 75, wantStatus: StatusInProgress,
		},
		{
			name: "enough entries but mandatory criteria unverified",
			in: Input{
				Category:     category(),
				Requirements: category().Requirements,
				Items:        allMandatory,
			},
			wantCompleted: 4, wantRequired: 4, wantPct: 100, wantStatus: StatusInProgress,
			wantMapping: map[string]MappingStatus{"K1": MappingNotMapped, "S1": MappingNotMapped, "B1": MappingNotMapped},
		},
		{
			name: "links in an open submission are partial",
			in: Input{
				Category:     category(),
				Requirements: category().Requirements,
				Items:        allMandatory,
				Submissions: []submission.Submission{
					{CategoryID: "cat", Status: submission.StatusUnderReview, ItemIDs: []string{"i1"}},
				},
			},
			wantCompleted: 4, wantRequired: 4, wantPct: 100, wantStatus: StatusInProgress,
			wantMapping: map[string]MappingStatus{"K1": MappingPartial, "S1": MappingNotMapped, "B1": MappingNotMapped},
		},
		{
			name: "cancelled submissions map nothing",
			in: Input{
				Category:     category(),
				Requirements: category().Requirements,
				Items:        allMandatory,
				Submissions: []submission.Submission{
					{CategoryID: "cat", Status: submission.StatusCancelled, ItemIDs: []string{"i1", "i2"}},
				},
			},
			wantCompleted: 4, wantRequired: 4, wantPct: 100, wantStatus: StatusInProgress,
			wantMapping: map[string]MappingStatus{"K1": MappingNotMapped, "S1": MappingNotMapped},
		},
		{
			name: "complete once signed off",
			in: Input{
				Category:     category(),
				Requirements: category().Requirements,
				Items:        allMandatory,
				Submissions:  []submission.Submission{signedOff("i1", "i2", "i3", "i4")},
			},
			wantCompleted: 4, wantRequired: 4, wantPct: 100, wantStatus: StatusComplete,
			wantMapping: map[string]MappingStatus{"K1": MappingVerified, "S1": MappingVerified, "B1": MappingNotMapped},
		},
		{
			name: "unconfirmed link on signed off evidence is not mapped",
			in: Input{
				Category:     category(),
				Requirements: category().Requirements,
				Items:        []evidence.Item{item("i1", catalogue.EvidencePhoto, evidence.CriterionLink{Code: "K1"})},
				Submissions:  []submission.Submission{signedOff("i1")},
			},
			wantCompleted: 1, wantRequired: 4, wantPct: 25, wantStatus: StatusInProgress,
			wantMapping: map[string]MappingStatus{"K1": MappingNotMapped},
		},
		{
			name: "signed off in another category does not verify",
			in: Input{
				Category:     category(),
				Requirements: category().Requirements,
				Items:        []evidence.Item{item("i1", catalogue.EvidencePhoto, confirmed("K1"))},
				Submissions: []submission.Submission{
					{CategoryID: "other", Status: submission.StatusSignedOff, ItemIDs: []string{"i1"}},
					{CategoryID: "cat", Status: submission.StatusApproved, ItemIDs: []string{"i1"}},
				},
			},
			wantCompleted: 1, wantRequired: 4, wantPct: 25, wantStatus: StatusInProgress,
			wantMapping: map[string]MappingStatus{"K1": MappingPartial},
		},
		{
			name: "over-delivery is clamped",
			in: Input{
				Category:     catalogue.Category{ID: "cat"},
				Requirements: []catalogue.Requirement{{EvidenceTypes: []string{catalogue.EvidencePhoto}, QuantityRequired: 1, Mandatory: true}},
				Items:        []evidence.Item{item("i1", catalogue.EvidencePhoto), item("i2", catalogue.EvidencePhoto)},
			},
			wantCompleted: 2, wantRequired: 1, wantPct: 100, wantStatus: StatusComplete,
		},
		{
			name: "no requirements counts every item",
			in: Input{
				Category: catalogue.Category{ID: "cat"},
				Items:    []evidence.Item{item("i1", catalogue.EvidenceDocument)},
			},
			wantCompleted: 1, wantRequired: 0, wantPct: 100, wantStatus: StatusComplete,
		},
		{
			name: "only optional requirements",
			in: Input{
				Category:     catalogue.Category{ID: "cat"},
				Requirements: []catalogue.Requirement{{EvidenceTypes: []string{catalogue.EvidenceVideo}, QuantityRequired: 2}},
				Items:        []evidence.Item{item("i1", catalogue.EvidenceVideo)},
			},
			wantCompleted: 1, wantRequired: 0, wantPct: 100, wantStatus: StatusComplete,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.in)
			assert.Equal(t, tt.wantCompleted, got.CompletedEntries, "CompletedEntries")
			assert.Equal(t, tt.wantRequired, got.RequiredEntries, "RequiredEntries")
			assert.Equal(t, tt.wantPct, got.CompletionPercentage, "CompletionPercentage")
			assert.Equal(t, tt.wantStatus, got.Status, "Status")
			assert.GreaterOrEqual(t, got.CompletionPercentage, 0)
			assert.LessOrEqual(t, got.CompletionPercentage, 100)

			mapping := make(map[string]MappingStatus, len(got.Criteria))
			for _, c := range got.Criteria {
				mapping[c.Code] = c.MappingStatus
			}
			for code, want := range tt.wantMapping {
				assert.Equal(t, want, mapping[code], "mapping of %s", code)
			}
		})
	}
}

func TestGroupKSB(t *testing.T) {
	groups := GroupKSB([]CriterionStatus{
		{Code: "B1", Type: catalogue.Behaviour, MappingStatus: MappingVerified},
		{Code: "K1", Type: catalogue.Knowledge, MappingStatus: MappingVerified},
		{Code: "K2", Type: catalogue.Knowledge, MappingStatus: MappingPartial},
	})
	assert.Equal(t, []KSBGroup{
		{Type: catalogue.Knowledge, Verified: 1, Total: 2},
		{Type: catalogue.Skill},
		{Type: catalogue.Behaviour, Verified: 1, Total: 1},
	}, groups)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
	assert.Equal(t,
		Summary{Categories: 3, Complete: 1, AveragePercentage: 58},
		Summarize([]Entry{
			{CompletionPercentage: 100, Status: StatusComplete},
			{CompletionPercentage: 75, Status: StatusInProgress},
			{CompletionPercentage: 0, Status: StatusNotStarted},
		}),
	)
}
