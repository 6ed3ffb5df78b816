package coverage

import (
	"math"

	"github.com/trezcool/evidencehub/core/catalogue"
	"github.com/trezcool/evidencehub/core/evidence"
	"github.com/trezcool/evidencehub/core/submission"
)

type MappingStatus string

const (
	MappingVerified  MappingStatus = "verified"
	MappingPartial   MappingStatus = "partial"
	MappingNotMapped MappingStatus = "not_mapped"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
)

type CriterionStatus struct {
	Code          string            `json:"code"`
	Type          catalogue.KSBType `json:"type"`
	Text          string            `json:"text"`
	Mandatory     bool              `json:"mandatory"`
	MappingStatus MappingStatus     `json:"mapping_status"`
}

// Entry is the derived coverage of one category for one student.
type Entry struct {
	CategoryID           string            `json:"category_id"`
	CategoryCode         string            `json:"category_code"`
	Title                string            `json:"title"`
	CompletedEntries     int               `json:"completed_entries"`
	RequiredEntries      int               `json:"required_entries"`
	VerifiedCriteria     int               `json:"verified_criteria"`
	TotalCriteria        int               `json:"total_criteria"`
	CompletionPercentage int               `json:"completion_percentage"`
	Status               Status            `json:"status"`
	Criteria             []CriterionStatus `json:"criteria"`
}

// Input holds everything the coverage of a category depends on.
// Requirements must already exclude cancelled ones; items and submissions may be unfiltered.
type Input struct {
	Category     catalogue.Category
	Requirements []catalogue.Requirement
	Items        []evidence.Item
	Submissions  []submission.Submission
}

// Aggregate derives the coverage entry of a category. It has no side effects.
func Aggregate(in Input) Entry {
	entry := Entry{
		CategoryID:   in.Category.ID,
		CategoryCode: in.Category.Code,
		Title:        in.Category.Title,
	}

	items := make([]evidence.Item, 0, len(in.Items))
	for _, it := range in.Items {
		if it.IsActive() && it.CategoryID == in.Category.ID {
			items = append(items, it)
		}
	}

	for _, req := range in.Requirements {
		if req.Mandatory {
			entry.RequiredEntries += req.QuantityRequired
		}
	}
	for _, it := range items {
		if satisfiesAny(it, in.Requirements) {
			entry.CompletedEntries++
		}
	}

	signedOff, inFlight := bundledItems(in.Submissions, in.Category.ID)
	allMandatoryVerified := true
	for _, crit := range in.Category.Criteria {
		st := mappingStatus(crit.Code, items, signedOff, inFlight)
		entry.Criteria = append(entry.Criteria, CriterionStatus{
			Code:          crit.Code,
			Type:          crit.Type,
			Text:          crit.Text,
			Mandatory:     crit.Mandatory,
			MappingStatus: st,
		})
		entry.TotalCriteria++
		if st == MappingVerified {
			entry.VerifiedCriteria++
		} else if crit.Mandatory {
			allMandatoryVerified = false
		}
	}

	entry.CompletionPercentage = Percentage(entry.CompletedEntries, entry.RequiredEntries)
	switch {
	case entry.CompletedEntries == 0:
		entry.Status = StatusNotStarted
	case entry.CompletedEntries >= entry.RequiredEntries && allMandatoryVerified:
		entry.Status = StatusComplete
	default:
		entry.Status = StatusInProgress
	}
	return entry
}

// Percentage returns round(100*done/max(total,1)) clamped to [0, 100].
func Percentage(done, total int) int {
	if total < 1 {
		total = 1
	}
	pct := int(math.Round(100 * float64(done) / float64(total)))
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// satisfiesAny reports whether the item counts as a completed entry.
// A category without requirements counts every active item.
func satisfiesAny(it evidence.Item, reqs []catalogue.Requirement) bool {
	if len(reqs) == 0 {
		return true
	}
	for _, req := range reqs {
		if it.Satisfies(req) {
			return true
		}
	}
	return false
}

// bundledItems returns the ids of the items bundled in submissions of the category,
// split into signed off and non-terminal ones. Cancelled submissions count for neither.
func bundledItems(subs []submission.Submission, categoryID string) (signedOff, inFlight map[string]bool) {
	signedOff, inFlight = make(map[string]bool), make(map[string]bool)
	for _, sub := range subs {
		if sub.CategoryID != categoryID {
			continue
		}
		var ids map[string]bool
		switch {
		case sub.Status == submission.StatusSignedOff:
			ids = signedOff
		case !sub.Status.IsTerminal():
			ids = inFlight
		default:
			continue
		}
		for _, id := range sub.ItemIDs {
			ids[id] = true
		}
	}
	return signedOff, inFlight
}

// mappingStatus is verified when a confirmed link sits on signed off evidence,
// partial when the linking evidence is in a non-terminal submission, not_mapped otherwise.
func mappingStatus(code string, items []evidence.Item, signedOff, inFlight map[string]bool) MappingStatus {
	status := MappingNotMapped
	for _, it := range items {
		link, ok := it.Link(code)
		if !ok {
			continue
		}
		if link.Confirmed && signedOff[it.ID] {
			return MappingVerified
		}
		if inFlight[it.ID] {
			status = MappingPartial
		}
	}
	return status
}

// KSBGroup is the verified/total count of one criterion type.
type KSBGroup struct {
	Type     catalogue.KSBType `json:"type"`
	Verified int               `json:"verified"`
	Total    int               `json:"total"`
}

// GroupKSB partitions derived criterion statuses by type, in knowledge, skill, behaviour order.
func GroupKSB(criteria []CriterionStatus) []KSBGroup {
	groups := make([]KSBGroup, len(catalogue.KSBTypes))
	for i, t := range catalogue.KSBTypes {
		groups[i].Type = t
		for _, c := range criteria {
			if c.Type != t {
				continue
			}
			groups[i].Total++
			if c.MappingStatus == MappingVerified {
				groups[i].Verified++
			}
		}
	}
	return groups
}

// Summary rolls a set of entries up for dashboards.
type Summary struct {
	Categories        int `json:"categories"`
	Complete          int `json:"complete"`
	AveragePercentage int `json:"average_percentage"`
}

func Summarize(entries []Entry) Summary {
	s := Summary{Categories: len(entries)}
	if len(entries) == 0 {
		return s
	}
	total := 0
	for _, e := range entries {
		total += e.CompletionPercentage
		if e.Status == StatusComplete {
			s.Complete++
		}
	}
	s.AveragePercentage = int(math.Round(float64(total) / float64(len(entries))))
	return s
}
