package submission_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/catalogue"
	"github.com/trezcool/evidencehub/core/submission"
	inmemdb "github.com/trezcool/evidencehub/storage/database/inmem"
	"github.com/trezcool/evidencehub/tests"
)

func TestService_Submit(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	mine := env.CreateItem(t, testutil.Student, testutil.CategoryID, catalogue.EvidencePhoto)
	otherCategory := env.CreateItem(t, testutil.Student, testutil.OpenCategoryID, catalogue.EvidencePhoto)
	theirs := env.CreateItem(t, testutil.OtherStudent, testutil.CategoryID, catalogue.EvidencePhoto)
	withdrawn := env.CreateItem(t, testutil.Student, testutil.CategoryID, catalogue.EvidencePhoto)
	_, err := env.Evidence.Withdraw(ctx, testutil.Student, withdrawn.ID)
	require.NoError(t, err)

	ns := func(ids ...string) submission.NewSubmission {
		return submission.NewSubmission{
			StudentID:       testutil.Student.ID,
			QualificationID: testutil.QualificationID,
			CategoryID:      testutil.CategoryID,
			ItemIDs:         ids,
		}
	}

	tests := []struct {
		name      string
		actor     core.Actor
		ns        submission.NewSubmission
		wantErr   error
		wantCheck func(err error) bool
	}{
		{name: "no items", actor: testutil.Student, ns: ns(), wantCheck: func(err error) bool { return err != nil }},
		{name: "on behalf of someone else", actor: testutil.OtherStudent, ns: ns(mine.ID), wantErr: core.ErrForbidden},
		{name: "unknown item", actor: testutil.Student, ns: ns("lol"), wantCheck: core.IsNotFound},
		{name: "other student's item", actor: testutil.Student, ns: ns(mine.ID, theirs.ID), wantCheck: core.IsNotFound},
		{name: "withdrawn item", actor: testutil.Student, ns: ns(withdrawn.ID), wantCheck: core.IsValidation},
		{name: "other category", actor: testutil.Student, ns: ns(otherCategory.ID), wantCheck: core.IsValidation},
		{name: "ok", actor: testutil.Student, ns: ns(mine.ID)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := env.Submission.Submit(ctx, tt.actor, tt.ns)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantCheck != nil:
				assert.True(t, tt.wantCheck(err), "unexpected error: %v", err)
			default:
				require.NoError(t, err)
				assert.Equal(t, submission.StatusSubmitted, sub.Status)
				assert.Equal(t, 1, sub.AttemptNumber)
				assert.Equal(t, []string{mine.ID}, sub.ItemIDs)
			}
		})
	}

	evts := env.EventsOf(core.EventSubmissionTransitioned)
	require.Len(t, evts, 1)
	assert.Equal(t, "", evts[0].From)
	assert.Equal(t, string(submission.StatusSubmitted), evts[0].To)
}

func TestService_Workflow(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	item := env.CreateItem(t, testutil.Student, testutil.CategoryID, catalogue.EvidencePhoto)
	sub := env.Submit(t, testutil.Student, testutil.CategoryID, item)

	// nothing but review can happen to a fresh submission
	_, err := env.Submission.SignOff(ctx, testutil.Assessor, sub.ID)
	assert.True(t, core.IsInvalidTransition(err))
	_, err = env.Submission.Resubmit(ctx, testutil.Student, sub.ID)
	assert.True(t, core.IsInvalidTransition(err))

	_, err = env.Submission.StartReview(ctx, testutil.Student, sub.ID)
	assert.Equal(t, core.ErrForbidden, err)

	sub, err = env.Submission.StartReview(ctx, testutil.Assessor, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusUnderReview, sub.Status)
	assert.Equal(t, testutil.Assessor.ID, sub.ReviewerID)
	assert.NotNil(t, sub.ReviewStartedAt)

	// same reviewer: no-op; another one: conflict
	again, err := env.Submission.StartReview(ctx, testutil.Assessor, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.Version, again.Version)
	_, err = env.Submission.StartReview(ctx, testutil.Assessor2, sub.ID)
	assert.True(t, core.IsConflict(err))
	_, err = env.Submission.SubmitFeedback(ctx, testutil.Assessor2, sub.ID, submission.Feedback{Text: "x", Grade: submission.GradePass})
	assert.True(t, core.IsConflict(err))

	// refer: back to the student
	sub, err = env.Submission.SubmitFeedback(ctx, testutil.Assessor, sub.ID, submission.Feedback{
		Text:       "Photos are blurry",
		Grade:      submission.GradeRefer,
		Suggestion: "Photos are blurry and dark",
	})
	require.NoError(t, err)
	assert.Equal(t, submission.StatusResubmissionRequested, sub.Status)
	assert.Equal(t, submission.GradeRefer, sub.Grade)
	require.NotNil(t, sub.SuggestionSimilarity)
	assert.InDelta(t, 0.75, *sub.SuggestionSimilarity, 0.001)

	_, err = env.Submission.Resubmit(ctx, testutil.OtherStudent, sub.ID)
	assert.Equal(t, core.ErrForbidden, err)

	sub, err = env.Submission.Resubmit(ctx, testutil.Student, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusResubmitted, sub.Status)
	assert.Equal(t, 2, sub.AttemptNumber)
	assert.Equal(t, "Photos are blurry", sub.PreviousFeedback)
	assert.Equal(t, submission.GradeRefer, sub.PreviousGrade)
	assert.Empty(t, sub.Feedback)
	assert.Empty(t, sub.Grade)
	assert.Empty(t, sub.ReviewerID)
	assert.Nil(t, sub.SuggestionSimilarity)

	// another assessor may pick the new attempt
	sub, err = env.Submission.StartReview(ctx, testutil.Assessor2, sub.ID)
	require.NoError(t, err)

	_, err = env.Submission.RequestMoreEvidence(ctx, testutil.Assessor2, sub.ID, "  ")
	assert.True(t, core.IsValidation(err))

	sub, err = env.Submission.RequestMoreEvidence(ctx, testutil.Assessor2, sub.ID, "Add the test certificate")
	require.NoError(t, err)
	assert.Equal(t, submission.StatusResubmissionRequested, sub.Status)
	assert.Equal(t, "Add the test certificate", sub.Feedback)
	assert.Equal(t, "Photos are blurry", sub.PreviousFeedback, "nothing new to archive")

	sub, err = env.Submission.Resubmit(ctx, testutil.Student, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, sub.AttemptNumber)
	assert.Equal(t, "Add the test certificate", sub.PreviousFeedback)

	sub = env.SignOff(t, testutil.Assessor, sub, submission.GradeMerit)
	assert.Equal(t, submission.StatusSignedOff, sub.Status)
	assert.Equal(t, testutil.Assessor.ID, sub.SignedOffBy)
	assert.NotNil(t, sub.SignedOffAt)

	// terminal
	_, err = env.Submission.Cancel(ctx, testutil.Admin, sub.ID, "duplicate")
	assert.True(t, core.IsInvalidTransition(err))
	_, err = env.Submission.StartReview(ctx, testutil.Assessor, sub.ID)
	assert.True(t, core.IsInvalidTransition(err))

	// submitted, review, refer, resubmit, review, request, resubmit, review, approve, sign off
	assert.Len(t, env.EventsOf(core.EventSubmissionTransitioned), 10)
}

func TestService_Cancel(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	item := env.CreateItem(t, testutil.Student, testutil.CategoryID, catalogue.EvidencePhoto)
	sub := env.Submit(t, testutil.Student, testutil.CategoryID, item)

	_, err := env.Submission.Cancel(ctx, testutil.Assessor, sub.ID, "duplicate")
	assert.Equal(t, core.ErrForbidden, err)
	_, err = env.Submission.Cancel(ctx, testutil.Admin, sub.ID, "")
	assert.True(t, core.IsValidation(err))

	sub, err = env.Submission.Cancel(ctx, testutil.Admin, sub.ID, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, submission.StatusCancelled, sub.Status)
	assert.Equal(t, "duplicate", sub.CancelledReason)

	// the item is free again
	bundled, err := env.Submission.IsItemBundled(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, bundled)
	_, err = env.Evidence.Withdraw(ctx, testutil.Student, item.ID)
	assert.NoError(t, err)
}

func TestService_GradeRouting(t *testing.T) {
	tests := []struct {
		grade string
		want  submission.Status
	}{
		{grade: submission.GradeDistinction, want: submission.StatusApproved},
		{grade: submission.GradeMerit, want: submission.StatusApproved},
		{grade: submission.GradePass, want: submission.StatusApproved},
		{grade: submission.GradeRefer, want: submission.StatusResubmissionRequested},
		{grade: submission.GradeNotYetCompetent, want: submission.StatusResubmissionRequested},
	}
	env := testutil.NewEnv(t)
	ctx := context.Background()

	for _, tt := range tests {
		t.Run(tt.grade, func(t *testing.T) {
			item := env.CreateItem(t, testutil.Student, testutil.CategoryID, catalogue.EvidencePhoto)
			sub := env.Submit(t, testutil.Student, testutil.CategoryID, item)
			sub, err := env.Submission.StartReview(ctx, testutil.Assessor, sub.ID)
			require.NoError(t, err)

			sub, err = env.Submission.SubmitFeedback(ctx, testutil.Assessor, sub.ID, submission.Feedback{Text: "ok", Grade: tt.grade})
			require.NoError(t, err)
			assert.Equal(t, tt.want, sub.Status)
		})
	}

	t.Run("unsupported grade", func(t *testing.T) {
		item := env.CreateItem(t, testutil.Student, testutil.CategoryID, catalogue.EvidencePhoto)
		sub := env.Submit(t, testutil.Student, testutil.CategoryID, item)
		sub, err := env.Submission.StartReview(ctx, testutil.Assessor, sub.ID)
		require.NoError(t, err)

		_, err = env.Submission.SubmitFeedback(ctx, testutil.Assessor, sub.ID, submission.Feedback{Text: "ok", Grade: "A*"})
		assert.Error(t, err)
		sub, err = env.Submission.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, submission.StatusUnderReview, sub.Status, "all-or-nothing")
	})
}

// flakyRepository lands writes but fails to acknowledge the first `drops` of them.
type flakyRepository struct {
	submission.Repository
	drops int
}

func (r *flakyRepository) UpdateSubmission(ctx context.Context, sub submission.Submission) (submission.Submission, error) {
	saved, err := r.Repository.UpdateSubmission(ctx, sub)
	if err == nil && r.drops > 0 {
		r.drops--
		return submission.Submission{}, core.ErrTransient
	}
	return saved, err
}

func TestService_RetryIsIdempotent(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	item := env.CreateItem(t, testutil.Student, testutil.CategoryID, catalogue.EvidencePhoto)
	repo := &flakyRepository{Repository: inmemdb.NewSubmissionRepository(env.DB)}
	policy, err := submission.NewGradePolicy(env.Conf.Policy)
	require.NoError(t, err)
	svc := submission.NewService(repo, inmemdb.NewEvidenceRepository(env.DB), env.Bus, env.Validate, policy, core.NopLogger{}, env.Conf)

	sub, err := svc.Submit(ctx, testutil.Student, submission.NewSubmission{
		StudentID:       testutil.Student.ID,
		QualificationID: testutil.QualificationID,
		CategoryID:      testutil.CategoryID,
		ItemIDs:         []string{item.ID},
	})
	require.NoError(t, err)

	repo.drops = 1
	sub, err = svc.StartReview(ctx, testutil.Assessor, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusUnderReview, sub.Status)
	assert.Equal(t, 2, sub.Version, "applied exactly once")
	assert.Len(t, env.EventsOf(core.EventSubmissionTransitioned), 2, "published once")

	repo.drops = 1
	sub, err = svc.SubmitFeedback(ctx, testutil.Assessor, sub.ID, submission.Feedback{Text: "ok", Grade: submission.GradePass})
	require.NoError(t, err)
	assert.Equal(t, submission.StatusApproved, sub.Status)
	assert.Equal(t, 3, sub.Version)
}

func TestService_StartReviewRace(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		sub := env.Submit(t, testutil.Student, testutil.CategoryID,
			env.CreateItem(t, testutil.Student, testutil.CategoryID, catalogue.EvidencePhoto))

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, assessor := range []core.Actor{testutil.Assessor, testutil.Assessor2} {
			wg.Add(1)
			go func(j int, assessor core.Actor) {
				defer wg.Done()
				_, errs[j] = env.Submission.StartReview(ctx, assessor, sub.ID)
			}(j, assessor)
		}
		wg.Wait()

		var won, lost int
		for _, err := range errs {
			switch {
			case err == nil:
				won++
			case core.IsConflict(err):
				lost++
			default:
				t.Fatalf("StartReview() unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, won, "exactly one assessor claims the submission")
		assert.Equal(t, 1, lost)

		stored, err := env.Submission.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, submission.StatusUnderReview, stored.Status)
		assert.Equal(t, 2, stored.Version, "claimed once")
	}
}
