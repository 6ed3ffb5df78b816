package requirement

import (
	"time"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/catalogue"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Requirement is a tutor-defined evidence requirement scoped to one student.
type Requirement struct {
	ID               string     `json:"id"`
	StudentID        string     `json:"student_id"`
	TutorID          string     `json:"tutor_id"`
	QualificationID  string     `json:"qualification_id"`
	CategoryID       string     `json:"category_id"`
	Title            string     `json:"title"`
	EvidenceTypes    []string   `json:"evidence_types"`
	QuantityRequired int        `json:"quantity_required"`
	Mandatory        bool       `json:"mandatory"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	Guidance         string     `json:"guidance,omitempty"`
	Status           Status     `json:"status"`
	// Contributed is set once the requirement took part in a complete coverage entry.
	Contributed bool      `json:"contributed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AsCatalogue returns the requirement in the shape the coverage aggregator consumes.
func (r Requirement) AsCatalogue() catalogue.Requirement {
	return catalogue.Requirement{
		ID:               r.ID,
		CategoryID:       r.CategoryID,
		Title:            r.Title,
		EvidenceTypes:    r.EvidenceTypes,
		QuantityRequired: r.QuantityRequired,
		Mandatory:        r.Mandatory,
		DueDate:          r.DueDate,
		Guidance:         r.Guidance,
	}
}

// NewRequirement contains information needed to create a new Requirement.
type NewRequirement struct {
	StudentID        string     `json:"student_id" validate:"required"`
	QualificationID  string     `json:"qualification_id" validate:"required"`
	CategoryID       string     `json:"category_id" validate:"required"`
	Title            string     `json:"title" validate:"notblank"`
	EvidenceTypes    []string   `json:"evidence_types" validate:"required,min=1,evidencetypes"`
	QuantityRequired int        `json:"quantity_required" validate:"min=1"`
	Mandatory        bool       `json:"mandatory"`
	DueDate          *time.Time `json:"due_date"`
	Guidance         string     `json:"guidance"`
}

func (nr *NewRequirement) Clean() {
	nr.Title = core.CleanString(nr.Title)
	nr.Guidance = core.CleanString(nr.Guidance)
	nr.EvidenceTypes = core.CleanStrings(nr.EvidenceTypes, true /* lower */)
}

// UpdateRequirement defines what information may be provided to modify an existing Requirement.
// Zero values keep the current value.
type UpdateRequirement struct {
	Title            string     `json:"title"`
	EvidenceTypes    []string   `json:"evidence_types" validate:"omitempty,min=1,evidencetypes"`
	QuantityRequired int        `json:"quantity_required" validate:"omitempty,min=1"`
	Mandatory        *bool      `json:"mandatory"`
	DueDate          *time.Time `json:"due_date"`
	Guidance         *string    `json:"guidance"`
}

type QueryFilter struct {
	StudentID       string   `query:"student_id"`
	QualificationID string   `query:"qualification_id"`
	CategoryID      string   `query:"category_id"`
	Statuses        []Status `query:"status"`
}
