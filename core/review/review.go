// Package review fetches AI feedback suggestions for evidence. Suggestions never change workflow state:
// an assessor applies them through the submission workflow like any other feedback.
package review

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/catalogue"
	"github.com/trezcool/evidencehub/core/evidence"
	"github.com/trezcool/evidencehub/core/submission"
)

// ErrUnavailable is returned when no reviewer is configured.
var ErrUnavailable = errors.New("AI review is not available")

type Judgment struct {
	Code string `json:"code"`
	Met  bool   `json:"met"`
}

type Suggestion struct {
	ID        string     `json:"id"`
	ItemID    string     `json:"item_id"`
	Feedback  string     `json:"feedback"`
	Grade     string     `json:"grade,omitempty"`
	Judgments []Judgment `json:"judgments"`
}

type Request struct {
	Item     evidence.Item         `json:"item"`
	Criteria []catalogue.Criterion `json:"criteria"`
}

// Reviewer is the external AI review service.
type Reviewer interface {
	Suggest(ctx context.Context, req Request) (Suggestion, error)
}

type (
	ItemLookup interface {
		Get(ctx context.Context, id string) (evidence.Item, error)
	}

	CategoryLookup interface {
		GetCategory(ctx context.Context, qualificationID, categoryID string) (catalogue.Category, error)
	}

	Service struct {
		reviewer  Reviewer
		items     ItemLookup
		catalogue CategoryLookup
		logger    core.Logger
	}
)

// NewService returns a review service; a nil reviewer makes every Suggest call fail with ErrUnavailable.
func NewService(reviewer Reviewer, items ItemLookup, cat CategoryLookup, logger core.Logger) *Service {
	return &Service{reviewer: reviewer, items: items, catalogue: cat, logger: logger}
}

func (svc *Service) Enabled() bool {
	return svc.reviewer != nil
}

// Suggest asks the reviewer about an item. Invalid grades and unknown criterion codes are dropped.
func (svc *Service) Suggest(ctx context.Context, actor core.Actor, itemID string) (Suggestion, error) {
	if !actor.HasRole(core.RoleAssessor, core.RoleAdmin) {
		return Suggestion{}, core.ErrForbidden
	}
	if svc.reviewer == nil {
		return Suggestion{}, ErrUnavailable
	}

	item, err := svc.items.Get(ctx, itemID)
	if err != nil {
		return Suggestion{}, err
	}
	cat, err := svc.catalogue.GetCategory(ctx, item.QualificationID, item.CategoryID)
	if err != nil {
		return Suggestion{}, err
	}

	sug, err := svc.reviewer.Suggest(ctx, Request{Item: item, Criteria: cat.Criteria})
	if err != nil {
		return Suggestion{}, errors.Wrap(err, "requesting AI review")
	}
	sug.ItemID = item.ID

	if sug.Grade != "" && !core.ContainsString(submission.Grades, sug.Grade) {
		svc.logger.Warn("AI review: dropping unknown grade", map[string]interface{}{"item": item.ID, "grade": sug.Grade})
		sug.Grade = ""
	}
	judgments := sug.Judgments[:0]
	for _, j := range sug.Judgments {
		if _, ok := cat.Criterion(j.Code); ok {
			judgments = append(judgments, j)
		}
	}
	sug.Judgments = judgments
	return sug, nil
}
