package iqa

import (
	"time"

	"github.com/trezcool/evidencehub/core"
)

type VerificationStatus string

const (
	StatusPending        VerificationStatus = "pending"
	StatusVerified       VerificationStatus = "verified"
	StatusConcernsRaised VerificationStatus = "concerns_raised"
)

// Record is the sampling of one signed off submission. It is immutable once verified.
type Record struct {
	ID                 string             `json:"id"`
	SubmissionID       string             `json:"submission_id"`
	AssessorID         string             `json:"assessor_id"`
	StudentID          string             `json:"student_id"`
	QualificationID    string             `json:"qualification_id"`
	CategoryID         string             `json:"category_id"`
	Grade              string             `json:"grade"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	Notes              string             `json:"notes,omitempty"`
	FeedbackQuality    int                `json:"feedback_quality,omitempty"`
	GradingAccuracy    int                `json:"grading_accuracy,omitempty"`
	ActionRequired     string             `json:"action_required,omitempty"`
	SampledBy          string             `json:"sampled_by"`
	SampledAt          time.Time          `json:"sampled_at"`
	VerifiedBy         string             `json:"verified_by,omitempty"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	Version            int                `json:"version"`
}

func (r Record) IsPending() bool {
	return r.VerificationStatus == StatusPending
}

// Verification is the outcome of an IQA review.
type Verification struct {
	Status          VerificationStatus `json:"verification_status" validate:"required,oneof=verified concerns_raised"`
	Notes           string             `json:"notes"`
	FeedbackQuality int                `json:"feedback_quality" validate:"min=1,max=5"`
	GradingAccuracy int                `json:"grading_accuracy" validate:"min=1,max=5"`
	ActionRequired  string             `json:"action_required" validate:"required_if=Status concerns_raised"`
}

// matches reports whether rec already holds this verification by verifierID.
func (v Verification) matches(rec Record, verifierID string) bool {
	return !rec.IsPending() &&
		rec.VerifiedBy == verifierID &&
		rec.VerificationStatus == v.Status &&
		rec.Notes == v.Notes &&
		rec.FeedbackQuality == v.FeedbackQuality &&
		rec.GradingAccuracy == v.GradingAccuracy &&
		rec.ActionRequired == v.ActionRequired
}

func (v *Verification) Clean() {
	v.Status = VerificationStatus(core.CleanString(string(v.Status), true /* lower */))
	v.Notes = core.CleanString(v.Notes)
	v.ActionRequired = core.CleanString(v.ActionRequired)
}

type QueryFilter struct {
	Status       VerificationStatus `query:"status"`
	AssessorID   string             `query:"assessor_id"`
	SubmissionID string             `query:"submission_id"`
}

// CandidateFilter narrows the sampling candidates.
type CandidateFilter struct {
	QualificationID string `query:"qualification_id"`
	AssessorID      string `query:"assessor_id"`
	Limit           int    `query:"limit"`
}

// Candidate is a signed off submission that has not been sampled yet.
type Candidate struct {
	SubmissionID    string    `json:"submission_id"`
	StudentID       string    `json:"student_id"`
	QualificationID string    `json:"qualification_id"`
	CategoryID      string    `json:"category_id"`
	AssessorID      string    `json:"assessor_id"`
	Grade           string    `json:"grade"`
	SignedOffAt     time.Time `json:"signed_off_at"`
	// AssessorSamples is how many of the assessor's submissions were sampled so far.
	AssessorSamples int `json:"assessor_samples"`
}

type AssessorStats struct {
	AssessorID     string  `json:"assessor_id"`
	SignedOff      int     `json:"signed_off"`
	Sampled        int     `json:"sampled"`
	SampleRate     float64 `json:"sample_rate"`
	Pending        int     `json:"pending"`
	ConcernsRaised int     `json:"concerns_raised"`
}

type Stats struct {
	SignedOff      int             `json:"signed_off"`
	Sampled        int             `json:"sampled"`
	SampleRate     float64         `json:"sample_rate"`
	Pending        int             `json:"pending"`
	Verified       int             `json:"verified"`
	ConcernsRaised int             `json:"concerns_raised"`
	Assessors      []AssessorStats `json:"assessors"`
}
