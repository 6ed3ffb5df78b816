package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/catalogue"
	"github.com/trezcool/evidencehub/core/coverage"
	"github.com/trezcool/evidencehub/core/evidence"
	"github.com/trezcool/evidencehub/core/gateway"
	"github.com/trezcool/evidencehub/core/iqa"
	"github.com/trezcool/evidencehub/core/requirement"
	"github.com/trezcool/evidencehub/core/roster"
	"github.com/trezcool/evidencehub/core/submission"
	emailsvc "github.com/trezcool/evidencehub/services/email"
	eventsvc "github.com/trezcool/evidencehub/services/events"
	inmemdb "github.com/trezcool/evidencehub/storage/database/inmem"
)

const (
	QualificationID = "st0152"
	CategoryID      = "unit-1"
	OpenCategoryID  = "unit-2" // no catalogue requirements
)

var (
	Student      = core.Actor{ID: "stu-1", Name: "Amani", Email: "amani@test.cd", Roles: []string{core.RoleStudent}}
	OtherStudent = core.Actor{ID: "stu-2", Name: "Baraka", Email: "baraka@test.cd", Roles: []string{core.RoleStudent}}
	Tutor        = core.Actor{ID: "tut-1", Name: "Tutor", Roles: []string{core.RoleTutor}}
	Assessor     = core.Actor{ID: "ass-1", Name: "Assessor", Roles: []string{core.RoleAssessor}}
	Assessor2    = core.Actor{ID: "ass-2", Name: "Assessor Two", Roles: []string{core.RoleAssessor}}
	IQA          = core.Actor{ID: "iqa-1", Name: "Verifier", Roles: []string{core.RoleIQA}}
	Admin        = core.Actor{ID: "adm-1", Name: "Admin", Roles: []string{core.RoleAdmin}}
)

// NewConfig returns a TEST config that does not depend on the environment.
func NewConfig() *core.Config {
	return &core.Config{
		Env:          "TEST",
		TestMode:     true,
		AppName:      "EvidenceHub",
		SecretKey:    "secret",
		StoreTimeout: time.Second,
		Cache:        core.CacheConfig{Size: 128, TTL: time.Minute},
		Server: core.ServerConfig{
			Address:         ":0",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Policy: core.PolicyConfig{
			ApprovedGrades:       []string{submission.GradeDistinction, submission.GradeMerit, submission.GradePass},
			ResubmitGrades:       []string{submission.GradeRefer, submission.GradeNotYetCompetent},
			ReadyThreshold:       90,
			NearlyReadyThreshold: 70,
			GatewayChecklist: []string{
				gateway.KeyPortfolioSignedOff, gateway.KeyOJTHoursVerified, "english_level2", "maths_level2", "employer_satisfied",
			},
			OJTHoursRequired: 100,
		},
	}
}

// NewValidator registers every custom validation tag of the app.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	catalogue.InitValidators(validate, translator)
	submission.InitValidators(validate, translator)
	return validate, translator
}

// Qualification returns a small catalogue: unit-1 requires 2 photos and a witness statement,
// unit-2 has no requirements.
func Qualification() catalogue.Qualification {
	return catalogue.Qualification{
		ID:    QualificationID,
		Code:  "ST0152",
		Title: "Installation Electrician",
		Categories: []catalogue.Category{
			{
				ID:       CategoryID,
				Code:     "U1",
				Title:    "Health & safety",
				Position: 1,
				Criteria: []catalogue.Criterion{
					{Code: "K1", Type: catalogue.Knowledge, Text: "Knows the regulations", Mandatory: true},
					{Code: "S1", Type: catalogue.Skill, Text: "Isolates safely", Mandatory: true},
					{Code: "B1", Type: catalogue.Behaviour, Text: "Works safely"},
				},
				Requirements: []catalogue.Requirement{
					{ID: "req-photos", Title: "Site photos", EvidenceTypes: []string{catalogue.EvidencePhoto}, QuantityRequired: 2, Mandatory: true},
					{ID: "req-witness", Title: "Witness statement", EvidenceTypes: []string{catalogue.EvidenceWitnessStatement}, QuantityRequired: 1, Mandatory: true},
					{ID: "req-extra", Title: "Extra reading", EvidenceTypes: []string{catalogue.EvidenceDocument}, QuantityRequired: 3},
				},
			},
			{
				ID:       OpenCategoryID,
				Code:     "U2",
				Title:    "Testing & inspection",
				Position: 2,
				Criteria: []catalogue.Criterion{
					{Code: "K2", Type: catalogue.Knowledge, Text: "Knows test sequences"},
					{Code: "S2", Type: catalogue.Skill, Text: "Performs insulation resistance tests"},
				},
			},
		},
	}
}

// Env is a fully wired in-memory application.
type Env struct {
	Conf        *core.Config
	Validate    *validator.Validate
	Translator  ut.Translator
	DB          *inmemdb.DB
	Bus         *eventsvc.Bus
	Mail        *emailsvc.ConsoleService
	Students    *inmemdb.StudentDirectory
	Catalogue   *catalogue.Service
	Evidence    *evidence.Service
	Requirement *requirement.Service
	Submission  *submission.Service
	Coverage    *coverage.Service
	Gateway     *gateway.Service
	IQA         *iqa.Service
	Events      []core.Event
}

// NewEnv wires every service over in-memory repositories and loads Qualification().
func NewEnv(t *testing.T, conf ...*core.Config) *Env {
	t.Helper()

	env := &Env{Conf: NewConfig(), DB: inmemdb.NewDB()}
	if len(conf) > 0 {
		env.Conf = conf[0]
	}
	env.Validate, env.Translator = NewValidator()
	env.Bus = eventsvc.NewBus(core.NopLogger{})
	env.Mail = emailsvc.NewConsoleServiceMock(env.Conf)
	env.Students = inmemdb.NewStudentDirectory(
		roster.Student{
			ID: Student.ID, Name: Student.Name, Email: Student.Email, Status: roster.StatusActive,
			Enrolments: []roster.Enrolment{{QualificationID: QualificationID, Cohort: "2026"}},
		},
		roster.Student{
			ID: OtherStudent.ID, Name: OtherStudent.Name, Email: OtherStudent.Email, Status: roster.StatusActive,
			Enrolments: []roster.Enrolment{{QualificationID: QualificationID, Cohort: "2026"}},
		},
	)

	gradePolicy, err := submission.NewGradePolicy(env.Conf.Policy)
	if err != nil {
		t.Fatalf("NewGradePolicy(): %v", err)
	}
	gatewayPolicy, err := gateway.NewPolicy(env.Conf.Policy)
	if err != nil {
		t.Fatalf("gateway.NewPolicy(): %v", err)
	}

	itemRepo := inmemdb.NewEvidenceRepository(env.DB)
	env.Catalogue = catalogue.NewService(inmemdb.NewCatalogueRepository(env.DB), env.Validate)
	env.Evidence = evidence.NewService(itemRepo, env.Catalogue, env.Bus, env.Validate, core.NopLogger{}, env.Conf)
	env.Requirement = requirement.NewService(inmemdb.NewRequirementRepository(env.DB), env.Catalogue, env.Bus, env.Validate, env.Conf)
	env.Submission = submission.NewService(
		inmemdb.NewSubmissionRepository(env.DB), itemRepo, env.Bus, env.Validate, gradePolicy, core.NopLogger{}, env.Conf,
	)
	env.Evidence.SetBundleChecker(env.Submission)
	env.Coverage = coverage.NewService(env.Catalogue, env.Evidence, env.Submission, env.Requirement, core.NopLogger{}, env.Conf)
	env.Gateway = gateway.NewService(
		inmemdb.NewGatewayRepository(env.DB), env.Students, env.Coverage, env.Bus, gatewayPolicy, env.Conf,
	)
	env.IQA = iqa.NewService(inmemdb.NewSamplingRepository(env.DB), env.Submission, env.Bus, env.Validate, env.Conf)

	env.Bus.Subscribe(env.Coverage.HandleEvent)
	env.Bus.Subscribe(func(_ context.Context, evt core.Event) { env.Events = append(env.Events, evt) })

	if _, err = env.Catalogue.Load(context.Background(), Qualification()); err != nil {
		t.Fatalf("Catalogue.Load(): %v", err)
	}
	return env
}

// EventsOf returns the recorded events of the given type.
func (env *Env) EventsOf(typ core.EventType) []core.Event {
	var out []core.Event
	for _, evt := range env.Events {
		if evt.Type == typ {
			out = append(out, evt)
		}
	}
	return out
}

// File returns the metadata of an uploaded file of the given evidence type.
func File(evidenceType string) evidence.File {
	return evidence.File{Name: evidenceType + ".bin", Type: evidenceType, Size: 1024, URL: "https://files.test/" + evidenceType}
}

// CreateItem adds an active item to the category, one file per given evidence type.
func (env *Env) CreateItem(t *testing.T, student core.Actor, categoryID string, evidenceTypes ...string) evidence.Item {
	t.Helper()

	files := make([]evidence.File, 0, len(evidenceTypes))
	for _, et := range evidenceTypes {
		files = append(files, File(et))
	}
	item, err := env.Evidence.Create(context.Background(), student, evidence.NewItem{
		StudentID:       student.ID,
		QualificationID: QualificationID,
		CategoryID:      categoryID,
		Title:           "Evidence " + categoryID,
		TimeSpent:       30,
		Files:           files,
	})
	if err != nil {
		t.Fatalf("CreateItem(): %v", err)
	}
	return item
}

// Submit bundles items of the category into a new submission.
func (env *Env) Submit(t *testing.T, student core.Actor, categoryID string, items ...evidence.Item) submission.Submission {
	t.Helper()

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	sub, err := env.Submission.Submit(context.Background(), student, submission.NewSubmission{
		StudentID:       student.ID,
		QualificationID: QualificationID,
		CategoryID:      categoryID,
		ItemIDs:         ids,
	})
	if err != nil {
		t.Fatalf("Submit(): %v", err)
	}
	return sub
}

// SignOff drives a submission through review, approval (with `grade`) and sign off.
func (env *Env) SignOff(t *testing.T, assessor core.Actor, sub submission.Submission, grade string) submission.Submission {
	t.Helper()

	ctx := context.Background()
	var err error
	if sub, err = env.Submission.StartReview(ctx, assessor, sub.ID); err != nil {
		t.Fatalf("StartReview(): %v", err)
	}
	if sub, err = env.Submission.SubmitFeedback(ctx, assessor, sub.ID, submission.Feedback{Text: "Good work", Grade: grade}); err != nil {
		t.Fatalf("SubmitFeedback(): %v", err)
	}
	if sub, err = env.Submission.SignOff(ctx, assessor, sub.ID); err != nil {
		t.Fatalf("SignOff(): %v", err)
	}
	return sub
}
