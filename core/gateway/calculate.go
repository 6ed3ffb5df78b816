package gateway

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/coverage"
)

// Checklist keys with a special meaning.
const (
	KeyPortfolioSignedOff = "portfolio_signed_off"
	// KeyOJTHoursVerified is derived from the off-the-job hours and can never be set directly.
	KeyOJTHoursVerified = "ojt_hours_verified"
)

type Readiness string

const (
	ReadinessNotReady      Readiness = "not_ready"
	ReadinessNearlyReady   Readiness = "nearly_ready"
	ReadinessReady         Readiness = "ready"
	ReadinessGatewayPassed Readiness = "gateway_passed"
)

type ChecklistDef struct {
	Key      string `json:"key"`
	Required bool   `json:"required"`
}

// Policy is the gateway configuration: checklist definitions and readiness thresholds.
type Policy struct {
	Checklist        []ChecklistDef
	ReadyThreshold   int
	NearlyThreshold  int
	OJTHoursRequired float64
}

// NewPolicy builds the gateway policy from config and checks it is coherent.
func NewPolicy(conf core.PolicyConfig) (Policy, error) {
	pol := Policy{
		ReadyThreshold:   conf.ReadyThreshold,
		NearlyThreshold:  conf.NearlyReadyThreshold,
		OJTHoursRequired: conf.OJTHoursRequired,
	}
	if pol.NearlyThreshold < 0 || pol.ReadyThreshold > 100 || pol.NearlyThreshold > pol.ReadyThreshold {
		return Policy{}, errors.Errorf("gateway policy: thresholds must satisfy 0 <= nearly (%d) <= ready (%d) <= 100",
			pol.NearlyThreshold, pol.ReadyThreshold)
	}
	if pol.OJTHoursRequired <= 0 {
		return Policy{}, errors.New("gateway policy: required OJT hours must be positive")
	}

	seen := make(map[string]bool)
	add := func(key string, required bool) error {
		if seen[key] {
			return errors.Errorf("gateway policy: duplicate checklist item %q", key)
		}
		seen[key] = true
		pol.Checklist = append(pol.Checklist, ChecklistDef{Key: key, Required: required})
		return nil
	}
	for _, key := range conf.GatewayChecklist {
		if err := add(key, true); err != nil {
			return Policy{}, err
		}
	}
	// the hours-derived item is always part of the gateway
	if !seen[KeyOJTHoursVerified] {
		_ = add(KeyOJTHoursVerified, true)
	}
	for _, key := range conf.OptionalChecklist {
		if key == KeyOJTHoursVerified {
			return Policy{}, errors.Errorf("gateway policy: %q cannot be optional", key)
		}
		if err := add(key, false); err != nil {
			return Policy{}, err
		}
	}
	return pol, nil
}

func (p Policy) Def(key string) (ChecklistDef, bool) {
	for _, d := range p.Checklist {
		if d.Key == key {
			return d, true
		}
	}
	return ChecklistDef{}, false
}

type ChecklistItem struct {
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy string     `json:"completed_by,omitempty"`
}

// Record is the stored gateway state of a student for a qualification.
type Record struct {
	StudentID         string                   `json:"student_id"`
	QualificationID   string                   `json:"qualification_id"`
	Checklist         map[string]ChecklistItem `json:"checklist"`
	OJTHoursCompleted float64                  `json:"ojt_hours_completed"`
	OJTHoursRequired  float64                  `json:"ojt_hours_required"`
	EPABookedDate     *time.Time               `json:"epa_booked_date,omitempty"`
	Version           int                      `json:"version"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

type ChecklistStatus struct {
	Key         string     `json:"key"`
	Required    bool       `json:"required"`
	Completed   bool       `json:"completed"`
	Derived     bool       `json:"derived"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy string     `json:"completed_by,omitempty"`
}

// Status is the derived gateway readiness.
type Status struct {
	StudentID         string            `json:"student_id"`
	QualificationID   string            `json:"qualification_id"`
	OverallProgress   int               `json:"overall_progress"`
	ReadinessStatus   Readiness         `json:"readiness_status"`
	OJTHoursCompleted float64           `json:"ojt_hours_completed"`
	OJTHoursRequired  float64           `json:"ojt_hours_required"`
	OJTHoursVerified  bool              `json:"ojt_hours_verified"`
	OJTPercentage     int               `json:"ojt_percentage"`
	EPABookedDate     *time.Time        `json:"epa_booked_date,omitempty"`
	GatewayPassed     bool              `json:"gateway_passed"`
	Checklist         []ChecklistStatus `json:"checklist"`
	Coverage          *coverage.Summary `json:"coverage,omitempty"`
}

// Calculate derives the readiness of a record. It has no side effects.
func Calculate(pol Policy, rec Record) Status {
	st := Status{
		StudentID:         rec.StudentID,
		QualificationID:   rec.QualificationID,
		OJTHoursCompleted: rec.OJTHoursCompleted,
		OJTHoursRequired:  rec.OJTHoursRequired,
		OJTHoursVerified:  rec.OJTHoursCompleted >= rec.OJTHoursRequired,
		OJTPercentage:     ojtPercentage(rec.OJTHoursCompleted, rec.OJTHoursRequired),
		EPABookedDate:     rec.EPABookedDate,
	}

	var required, done int
	for _, def := range pol.Checklist {
		cs := ChecklistStatus{Key: def.Key, Required: def.Required}
		if def.Key == KeyOJTHoursVerified {
			cs.Derived = true
			cs.Completed = st.OJTHoursVerified
		} else if item, ok := rec.Checklist[def.Key]; ok && item.Completed {
			cs.Completed = true
			cs.CompletedAt = item.CompletedAt
			cs.CompletedBy = item.CompletedBy
		}
		st.Checklist = append(st.Checklist, cs)

		if def.Required {
			required++
			if cs.Completed {
				done++
			}
		}
	}

	if required == 0 {
		st.OverallProgress = 100
	} else {
		st.OverallProgress = coverage.Percentage(done, required)
	}

	switch {
	case done == required:
		st.ReadinessStatus = ReadinessGatewayPassed
		st.GatewayPassed = true
	case st.OverallProgress >= pol.ReadyThreshold:
		st.ReadinessStatus = ReadinessReady
	case st.OverallProgress >= pol.NearlyThreshold:
		st.ReadinessStatus = ReadinessNearlyReady
	default:
		st.ReadinessStatus = ReadinessNotReady
	}
	return st
}

// ojtPercentage caps at 100: exceeding the required hours is fine.
func ojtPercentage(completed, required float64) int {
	if required <= 0 {
		return 100
	}
	pct := int(math.Round(100 * completed / required))
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}
