package catalogue

import (
	"time"
)

// KSBType tags an assessment criterion as knowledge, skill or behaviour.
type KSBType string

const (
	Knowledge KSBType = "knowledge"
	Skill     KSBType = "skill"
	Behaviour KSBType = "behaviour"
)

var KSBTypes = []KSBType{Knowledge, Skill, Behaviour}

// Evidence types
const (
	EvidencePhoto                  = "photo"
	EvidenceVideo                  = "video"
	EvidenceDocument               = "document"
	EvidenceWitnessStatement       = "witness_statement"
	EvidenceObservation            = "observation"
	EvidenceReflection             = "reflection"
	EvidenceProfessionalDiscussion = "professional_discussion"
	EvidenceProduct                = "product"
)

var EvidenceTypes = []string{
	EvidencePhoto,
	EvidenceVideo,
	EvidenceDocument,
	EvidenceWitnessStatement,
	EvidenceObservation,
	EvidenceReflection,
	EvidenceProfessionalDiscussion,
	EvidenceProduct,
}

type Qualification struct {
	ID         string     `json:"id" yaml:"id"`
	Code       string     `json:"code" yaml:"code" validate:"notblank"`
	Title      string     `json:"title" yaml:"title" validate:"notblank"`
	Categories []Category `json:"categories" yaml:"categories" validate:"required,min=1,dive"`
}

// Category is a unit of a qualification.
type Category struct {
	ID              string        `json:"id" yaml:"id"`
	QualificationID string        `json:"qualification_id" yaml:"-"`
	Code            string        `json:"code" yaml:"code" validate:"notblank"`
	Title           string        `json:"title" yaml:"title" validate:"notblank"`
	Position        int           `json:"position" yaml:"position"`
	Criteria        []Criterion   `json:"criteria" yaml:"criteria" validate:"dive"`
	Requirements    []Requirement `json:"requirements" yaml:"requirements" validate:"dive"`
}

// Criterion is a KSB: the smallest assessable unit of a standard.
type Criterion struct {
	Code       string  `json:"code" yaml:"code" validate:"notblank"`
	CategoryID string  `json:"category_id" yaml:"-"`
	Type       KSBType `json:"type" yaml:"type" validate:"ksbtype"`
	Text       string  `json:"text" yaml:"text" validate:"notblank"`
	Mandatory  bool    `json:"mandatory" yaml:"mandatory"`
}

// Requirement is a catalogue-defined evidence requirement of a category.
type Requirement struct {
	ID               string     `json:"id" yaml:"id"`
	CategoryID       string     `json:"category_id" yaml:"-"`
	Title            string     `json:"title" yaml:"title" validate:"notblank"`
	EvidenceTypes    []string   `json:"evidence_types" yaml:"evidence_types" validate:"required,min=1,evidencetypes"`
	QuantityRequired int        `json:"quantity_required" yaml:"quantity_required" validate:"min=1"`
	Mandatory        bool       `json:"mandatory" yaml:"mandatory"`
	DueDate          *time.Time `json:"due_date,omitempty" yaml:"due_date"`
	Guidance         string     `json:"guidance,omitempty" yaml:"guidance"`
}

// Accepts reports whether evidence of type `evidenceType` can satisfy the requirement.
func (r Requirement) Accepts(evidenceType string) bool {
	for _, t := range r.EvidenceTypes {
		if t == evidenceType {
			return true
		}
	}
	return false
}

// Category returns the category with the given ID.
func (q Qualification) Category(id string) (Category, bool) {
	for _, c := range q.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// Criterion returns the criterion with the given code.
func (c Category) Criterion(code string) (Criterion, bool) {
	for _, cr := range c.Criteria {
		if cr.Code == code {
			return cr, true
		}
	}
	return Criterion{}, false
}

// GroupByKSB partitions criteria by their KSB type, preserving order.
func GroupByKSB(criteria []Criterion) map[KSBType][]Criterion {
	groups := make(map[KSBType][]Criterion, len(KSBTypes))
	for _, cr := range criteria {
		groups[cr.Type] = append(groups[cr.Type], cr)
	}
	return groups
}
