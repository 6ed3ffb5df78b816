package submission

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	ut "github.com/go-playground/universal-translator"
	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
)

// GradePolicy routes a grade to the status that follows feedback.
type GradePolicy struct {
	approved []string
	resubmit []string
}

// NewGradePolicy checks that every grade routes to exactly one branch.
func NewGradePolicy(conf core.PolicyConfig) (GradePolicy, error) {
	pol := GradePolicy{approved: conf.ApprovedGrades, resubmit: conf.ResubmitGrades}
	for _, g := range append(append([]string{}, conf.ApprovedGrades...), conf.ResubmitGrades...) {
		if !core.ContainsString(Grades, g) {
			return GradePolicy{}, errors.Errorf("grade policy: unknown grade %q", g)
		}
	}
	for _, g := range Grades {
		a, r := core.ContainsString(pol.approved, g), core.ContainsString(pol.resubmit, g)
		switch {
		case a && r:
			return GradePolicy{}, errors.Errorf("grade policy: grade %q routes to both branches", g)
		case !a && !r:
			return GradePolicy{}, errors.Errorf("grade policy: grade %q is not routed", g)
		}
	}
	return pol, nil
}

// Next returns the status a submission moves to once graded.
func (p GradePolicy) Next(grade string) (Status, error) {
	switch {
	case core.ContainsString(p.approved, grade):
		return StatusApproved, nil
	case core.ContainsString(p.resubmit, grade):
		return StatusResubmissionRequested, nil
	}
	return "", core.NewFieldError("grade", fmt.Sprintf("unknown grade %q", grade))
}

// InitValidators registers the `grade` validation tag.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnumValidation(validate, translator, "grade", "this grade is not supported", Grades)
}
