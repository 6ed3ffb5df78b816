package submission

import (
	"time"

	"github.com/trezcool/evidencehub/core"
)

type Status string

const (
	StatusSubmitted             Status = "submitted"
	StatusUnderReview           Status = "under_review"
	StatusApproved              Status = "approved"
	StatusResubmissionRequested Status = "resubmission_requested"
	StatusResubmitted           Status = "resubmitted"
	StatusSignedOff             Status = "signed_off"
	StatusCancelled             Status = "cancelled"
)

var Statuses = []Status{
	StatusSubmitted,
	StatusUnderReview,
	StatusApproved,
	StatusResubmissionRequested,
	StatusResubmitted,
	StatusSignedOff,
	StatusCancelled,
}

func (s Status) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusSignedOff || s == StatusCancelled
}

// Grades
const (
	GradeDistinction     = "distinction"
	GradeMerit           = "merit"
	GradePass            = "pass"
	GradeRefer           = "refer"
	GradeNotYetCompetent = "not_yet_competent"
)

var Grades = []string{GradeDistinction, GradeMerit, GradePass, GradeRefer, GradeNotYetCompetent}

type Action string

const (
	ActionStartReview         Action = "start review"
	ActionSubmitFeedback      Action = "submit feedback"
	ActionRequestMoreEvidence Action = "request more evidence"
	ActionResubmit            Action = "resubmit"
	ActionSignOff             Action = "sign off"
	ActionCancel              Action = "cancel"
)

// transitions lists, per action, the statuses it may be applied from.
var transitions = map[Action][]Status{
	ActionStartReview:         {StatusSubmitted, StatusResubmitted},
	ActionSubmitFeedback:      {StatusUnderReview},
	ActionRequestMoreEvidence: {StatusUnderReview},
	ActionResubmit:            {StatusResubmissionRequested},
	ActionSignOff:             {StatusApproved},
	ActionCancel: {
		StatusSubmitted,
		StatusUnderReview,
		StatusApproved,
		StatusResubmissionRequested,
		StatusResubmitted,
	},
}

// CanTransition reports whether `action` is permitted from status `from`.
func CanTransition(from Status, action Action) bool {
	for _, s := range transitions[action] {
		if s == from {
			return true
		}
	}
	return false
}

type Submission struct {
	ID               string     `json:"id"`
	StudentID        string     `json:"student_id"`
	QualificationID  string     `json:"qualification_id"`
	CategoryID       string     `json:"category_id"`
	ItemIDs          []string   `json:"item_ids"`
	Status           Status     `json:"status"`
	AttemptNumber    int        `json:"attempt_number"`
	Grade            string     `json:"grade,omitempty"`
	Feedback         string     `json:"feedback,omitempty"`
	Strengths        string     `json:"strengths,omitempty"`
	Improvements     string     `json:"improvements,omitempty"`
	PreviousFeedback string     `json:"previous_feedback,omitempty"`
	PreviousGrade    string     `json:"previous_grade,omitempty"`
	ReviewerID       string     `json:"reviewer_id,omitempty"`
	ReviewStartedAt  *time.Time `json:"review_started_at,omitempty"`
	// SuggestionSimilarity is the ratio (0..1) between the applied feedback and the AI suggestion it started from.
	SuggestionSimilarity *float64   `json:"suggestion_similarity,omitempty"`
	SubmittedAt          time.Time  `json:"submitted_at"`
	SignedOffBy          string     `json:"signed_off_by,omitempty"`
	SignedOffAt          *time.Time `json:"signed_off_at,omitempty"`
	CancelledReason      string     `json:"cancelled_reason,omitempty"`
	Version              int        `json:"version"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (s Submission) HasItem(itemID string) bool {
	return core.ContainsString(s.ItemIDs, itemID)
}

// NewSubmission contains information needed to submit a bundle of evidence.
type NewSubmission struct {
	StudentID       string   `json:"student_id" validate:"required"`
	QualificationID string   `json:"qualification_id" validate:"required"`
	CategoryID      string   `json:"category_id" validate:"required"`
	ItemIDs         []string `json:"item_ids" validate:"required,min=1,unique"`
}

func (ns *NewSubmission) Clean() {
	ns.ItemIDs = core.CleanStrings(ns.ItemIDs)
}

// Feedback is the assessor's judgement of an attempt.
type Feedback struct {
	Text         string `json:"feedback" validate:"notblank"`
	Grade        string `json:"grade" validate:"required,grade"`
	Strengths    string `json:"strengths"`
	Improvements string `json:"improvements"`
	// Suggestion is the AI-suggested feedback the assessor started from, if any.
	Suggestion string `json:"suggestion"`
}

func (fb *Feedback) Clean() {
	fb.Text = core.CleanString(fb.Text)
	fb.Grade = core.CleanString(fb.Grade, true /* lower */)
	fb.Strengths = core.CleanString(fb.Strengths)
	fb.Improvements = core.CleanString(fb.Improvements)
	fb.Suggestion = core.CleanString(fb.Suggestion)
}

type QueryFilter struct {
	StudentID       string   `query:"student_id"`
	QualificationID string   `query:"qualification_id"`
	CategoryID      string   `query:"category_id"`
	ReviewerID      string   `query:"reviewer_id"`
	ItemID          string   `query:"item_id"`
	Statuses        []Status `query:"status"`
}
