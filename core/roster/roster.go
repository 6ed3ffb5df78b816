// Package roster is the read-only view of the external student roster & profile service.
package roster

import (
	"context"
	"net/mail"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusAtRisk    Status = "at_risk"
	StatusOnBreak   Status = "on_break"
	StatusCompleted Status = "completed"
)

type Enrolment struct {
	QualificationID string `json:"qualification_id"`
	Cohort          string `json:"cohort"`
}

type Student struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Status     Status      `json:"status"`
	Enrolments []Enrolment `json:"enrolments"`
}

func (s Student) EnrolledIn(qualificationID string) bool {
	for _, e := range s.Enrolments {
		if e.QualificationID == qualificationID {
			return true
		}
	}
	return false
}

func (s Student) Address() mail.Address {
	return mail.Address{Name: s.Name, Address: s.Email}
}

// Directory looks students up. Implementations return a core.NotFoundError for unknown IDs.
type Directory interface {
	GetStudent(ctx context.Context, id string) (Student, error)
}
