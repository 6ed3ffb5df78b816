package evidence

import (
	"time"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/catalogue"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusWithdrawn Status = "withdrawn"
)

// File is the metadata of an uploaded evidence file; the binary lives in external storage.
type File struct {
	Name string `json:"name" validate:"notblank"`
	Type string `json:"type" validate:"evidencetypes"`
	Size int64  `json:"size" validate:"min=0"`
	URL  string `json:"url" validate:"required,url"`
}

// CriterionLink ties an item to an assessment criterion code.
type CriterionLink struct {
	Code        string     `json:"code"`
	LinkedBy    string     `json:"linked_by"`
	LinkedAt    time.Time  `json:"linked_at"`
	Confirmed   bool       `json:"confirmed"`
	ConfirmedBy string     `json:"confirmed_by,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// Item is a piece of portfolio evidence owned by exactly one student.
type Item struct {
	ID              string          `json:"id"`
	StudentID       string          `json:"student_id"`
	QualificationID string          `json:"qualification_id"`
	CategoryID      string          `json:"category_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	TimeSpent       int             `json:"time_spent"` // minutes
	Files           []File          `json:"files"`
	Links           []CriterionLink `json:"links"`
	ReflectionNotes string          `json:"reflection_notes,omitempty"`
	Status          Status          `json:"status"`
	Version         int             `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// EvidenceTypes returns the distinct evidence types the item provides.
// Reflection notes count as `reflection` evidence.
func (it Item) EvidenceTypes() []string {
	types := make([]string, 0, len(it.Files)+1)
	for _, f := range it.Files {
		if !core.ContainsString(types, f.Type) {
			types = append(types, f.Type)
		}
	}
	if it.ReflectionNotes != "" && !core.ContainsString(types, catalogue.EvidenceReflection) {
		types = append(types, catalogue.EvidenceReflection)
	}
	return types
}

// Satisfies reports whether the item can count towards the requirement.
func (it Item) Satisfies(req catalogue.Requirement) bool {
	for _, t := range it.EvidenceTypes() {
		if req.Accepts(t) {
			return true
		}
	}
	return false
}

func (it Item) Link(code string) (CriterionLink, bool) {
	for _, l := range it.Links {
		if l.Code == code {
			return l, true
		}
	}
	return CriterionLink{}, false
}

// LinkedCodes returns the criterion codes referenced by the item.
func (it Item) LinkedCodes() []string {
	codes := make([]string, 0, len(it.Links))
	for _, l := range it.Links {
		codes = append(codes, l.Code)
	}
	return codes
}

func (it Item) IsActive() bool { return it.Status == StatusActive }

// NewItem contains information needed to create a new Item.
type NewItem struct {
	StudentID       string `json:"student_id" validate:"required"`
	QualificationID string `json:"qualification_id" validate:"required"`
	CategoryID      string `json:"category_id" validate:"required"`
	Title           string `json:"title" validate:"notblank"`
	Description     string `json:"description"`
	TimeSpent       int    `json:"time_spent" validate:"min=0"`
	Files           []File `json:"files" validate:"dive"`
	ReflectionNotes string `json:"reflection_notes"`
}

func (ni *NewItem) Clean() {
	ni.Title = core.CleanString(ni.Title)
	ni.Description = core.CleanString(ni.Description)
	ni.ReflectionNotes = core.CleanString(ni.ReflectionNotes)
	for i := range ni.Files {
		ni.Files[i].Name = core.CleanString(ni.Files[i].Name)
		ni.Files[i].Type = core.CleanString(ni.Files[i].Type, true /* lower */)
	}
}

type QueryFilter struct {
	StudentID        string   `query:"student_id"`
	QualificationID  string   `query:"qualification_id"`
	CategoryID       string   `query:"category_id"`
	IDs              []string `query:"id"`
	IncludeWithdrawn bool     `query:"include_withdrawn"`
}
