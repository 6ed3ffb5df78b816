package sqlxrepos_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/catalogue"
	"github.com/trezcool/evidencehub/core/coverage"
	"github.com/trezcool/evidencehub/core/evidence"
	"github.com/trezcool/evidencehub/core/gateway"
	"github.com/trezcool/evidencehub/core/iqa"
	"github.com/trezcool/evidencehub/core/requirement"
	"github.com/trezcool/evidencehub/core/roster"
	"github.com/trezcool/evidencehub/core/submission"
	eventsvc "github.com/trezcool/evidencehub/services/events"
	inmemdb "github.com/trezcool/evidencehub/storage/database/inmem"
	sqlxrepos "github.com/trezcool/evidencehub/storage/database/sqlx"
	"github.com/trezcool/evidencehub/tests"
)

// TestRepositories runs the whole workflow against postgres.
func TestRepositories(t *testing.T) {
	xdb := sqlxrepos.NewDB(testutil.PostgresDB(t))
	ctx := context.Background()

	conf := testutil.NewConfig()
	validate, _ := testutil.NewValidator()
	bus := eventsvc.NewBus(core.NopLogger{})
	gradePolicy, err := submission.NewGradePolicy(conf.Policy)
	require.NoError(t, err)
	gatewayPolicy, err := gateway.NewPolicy(conf.Policy)
	require.NoError(t, err)

	itemRepo := sqlxrepos.NewEvidenceRepository(xdb)
	subRepo := sqlxrepos.NewSubmissionRepository(xdb)
	gwRepo := sqlxrepos.NewGatewayRepository(xdb)
	sampleRepo := sqlxrepos.NewSamplingRepository(xdb)

	catSvc := catalogue.NewService(sqlxrepos.NewCatalogueRepository(xdb), validate)
	evSvc := evidence.NewService(itemRepo, catSvc, bus, validate, core.NopLogger{}, conf)
	reqRepo := sqlxrepos.NewRequirementRepository(xdb)
	reqSvc := requirement.NewService(reqRepo, catSvc, bus, validate, conf)
	subSvc := submission.NewService(subRepo, itemRepo, bus, validate, gradePolicy, core.NopLogger{}, conf)
	evSvc.SetBundleChecker(subSvc)
	covSvc := coverage.NewService(catSvc, evSvc, subSvc, reqSvc, core.NopLogger{}, conf)
	bus.Subscribe(covSvc.HandleEvent)
	iqaSvc := iqa.NewService(sampleRepo, subSvc, bus, validate, conf)

	// catalogue round trip, loading twice replaces
	q, err := catSvc.Load(ctx, testutil.Qualification())
	require.NoError(t, err)
	_, err = catSvc.Load(ctx, testutil.Qualification())
	require.NoError(t, err)
	stored, err := catSvc.GetQualification(ctx, testutil.QualificationID)
	require.NoError(t, err)
	assert.Equal(t, q.Code, stored.Code)
	require.Len(t, stored.Categories, 2)
	assert.Len(t, stored.Categories[0].Criteria, 3)
	assert.Equal(t, []string{catalogue.EvidencePhoto}, stored.Categories[0].Requirements[0].EvidenceTypes)
	_, err = catSvc.GetQualification(ctx, "lol")
	assert.True(t, core.IsNotFound(err))

	// evidence & optimistic concurrency
	newItem := func(types ...string) evidence.Item {
		var files []evidence.File
		for _, et := range types {
			files = append(files, testutil.File(et))
		}
		it, err := evSvc.Create(ctx, testutil.Student, evidence.NewItem{
			StudentID: testutil.Student.ID, QualificationID: testutil.QualificationID, CategoryID: testutil.CategoryID,
			Title: "Evidence", Files: files,
		})
		require.NoError(t, err)
		return it
	}
	photo1, photo2 := newItem(catalogue.EvidencePhoto), newItem(catalogue.EvidencePhoto)
	witness := newItem(catalogue.EvidenceWitnessStatement)

	stale := photo1
	_, err = evSvc.LinkCriteria(ctx, testutil.Assessor, photo1.ID, []string{"K1", "S1"})
	require.NoError(t, err)
	_, err = itemRepo.UpdateItem(ctx, stale)
	assert.True(t, core.IsConflict(err), "stale version")
	_, err = itemRepo.GetItem(ctx, "not-a-uuid")
	assert.True(t, core.IsNotFound(err))
	for _, code := range []string{"K1", "S1"} {
		_, err = evSvc.ConfirmCriterion(ctx, testutil.Assessor, photo1.ID, code)
		require.NoError(t, err)
	}

	// submission workflow
	sub, err := subSvc.Submit(ctx, testutil.Student, submission.NewSubmission{
		StudentID: testutil.Student.ID, QualificationID: testutil.QualificationID, CategoryID: testutil.CategoryID,
		ItemIDs: []string{photo1.ID, photo2.ID, witness.ID},
	})
	require.NoError(t, err)
	_, err = evSvc.Withdraw(ctx, testutil.Student, witness.ID)
	assert.True(t, core.IsValidation(err), "bundled")

	_, err = subSvc.StartReview(ctx, testutil.Assessor, sub.ID)
	require.NoError(t, err)
	_, err = subSvc.SubmitFeedback(ctx, testutil.Assessor, sub.ID, submission.Feedback{Text: "Great", Grade: submission.GradeMerit})
	require.NoError(t, err)
	sub, err = subSvc.SignOff(ctx, testutil.Assessor, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusSignedOff, sub.Status)

	subs, err := subSvc.Query(ctx, submission.QueryFilter{ItemID: witness.ID, Statuses: []submission.Status{submission.StatusSignedOff}})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, []string{photo1.ID, photo2.ID, witness.ID}, subs[0].ItemIDs)

	entry, err := covSvc.Category(ctx, testutil.Student.ID, testutil.QualificationID, testutil.CategoryID)
	require.NoError(t, err)
	assert.Equal(t, coverage.StatusComplete, entry.Status)

	// requirements: contributed ones are cancelled, never erased
	r, err := reqSvc.Create(ctx, testutil.Tutor, requirement.NewRequirement{
		StudentID: testutil.Student.ID, QualificationID: testutil.QualificationID, CategoryID: testutil.CategoryID,
		Title: "Video", EvidenceTypes: []string{catalogue.EvidenceVideo}, QuantityRequired: 1, Mandatory: true,
	})
	require.NoError(t, err)
	entry, err = covSvc.Category(ctx, testutil.Student.ID, testutil.QualificationID, testutil.CategoryID)
	require.NoError(t, err)
	assert.Equal(t, coverage.StatusInProgress, entry.Status)
	_, deleted, err := reqSvc.Delete(ctx, testutil.Tutor, r.ID)
	require.NoError(t, err)
	assert.True(t, deleted, "nothing contributed yet")
	_, err = reqSvc.Get(ctx, r.ID)
	assert.True(t, core.IsNotFound(err))

	r, err = reqSvc.Create(ctx, testutil.Tutor, requirement.NewRequirement{
		StudentID: testutil.Student.ID, QualificationID: testutil.QualificationID, CategoryID: testutil.CategoryID,
		Title: "Reflection", EvidenceTypes: []string{catalogue.EvidenceDocument}, QuantityRequired: 1,
	})
	require.NoError(t, err)
	require.NoError(t, reqSvc.MarkContributed(ctx, []string{r.ID}))
	assert.True(t, core.IsConflict(reqRepo.DeleteRequirement(ctx, r.ID)))
	r, deleted, err = reqSvc.Delete(ctx, testutil.Tutor, r.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, requirement.StatusCancelled, r.Status)

	// sampling is unique per submission
	rec, err := iqaSvc.Sample(ctx, testutil.IQA, sub.ID)
	require.NoError(t, err)
	_, err = sampleRepo.CreateRecord(ctx, rec)
	assert.Equal(t, core.ErrAlreadySampled, err)
	rec, err = iqaSvc.CompleteVerification(ctx, testutil.IQA, rec.ID, iqa.Verification{
		Status: iqa.StatusVerified, FeedbackQuality: 4, GradingAccuracy: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)

	// gateway records
	students := inmemdb.NewStudentDirectory(roster.Student{
		ID: testutil.Student.ID, Name: testutil.Student.Name, Status: roster.StatusActive,
		Enrolments: []roster.Enrolment{{QualificationID: testutil.QualificationID}},
	})
	gwSvc := gateway.NewService(gwRepo, students, covSvc, bus, gatewayPolicy, conf)
	st, err := gwSvc.SetChecklistItem(ctx, testutil.Tutor, testutil.Student.ID, testutil.QualificationID, "english_level2", true)
	require.NoError(t, err)
	assert.Equal(t, 20, st.OverallProgress)
	gwRec, err := gwRepo.GetRecord(ctx, testutil.Student.ID, testutil.QualificationID)
	require.NoError(t, err)
	assert.True(t, gwRec.Checklist["english_level2"].Completed)
	_, err = gwRepo.SaveRecord(ctx, gateway.Record{StudentID: testutil.Student.ID, QualificationID: testutil.QualificationID})
	assert.True(t, core.IsConflict(err), "created concurrently")
}
