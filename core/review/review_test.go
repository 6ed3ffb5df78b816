package review_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/catalogue"
	"github.com/trezcool/evidencehub/core/review"
	"github.com/trezcool/evidencehub/core/submission"
	"github.com/trezcool/evidencehub/tests"
)

type fakeReviewer struct {
	sug  review.Suggestion
	err  error
	reqs []review.Request
}

func (f *fakeReviewer) Suggest(_ context.Context, req review.Request) (review.Suggestion, error) {
	f.reqs = append(f.reqs, req)
	return f.sug, f.err
}

func TestService_Suggest(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	item := env.CreateItem(t, testutil.Student, testutil.CategoryID, catalogue.EvidencePhoto)

	rev := &fakeReviewer{sug: review.Suggestion{
		ID:       "sug-1",
		Feedback: "Clear photos of the isolation procedure.",
		Grade:    "excellent",
		Judgments: []review.Judgment{
			{Code: "K1", Met: true},
			{Code: "Z9", Met: true},
			{Code: "S1", Met: false},
		},
	}}
	svc := review.NewService(rev, env.Evidence, env.Catalogue, core.NopLogger{})
	assert.True(t, svc.Enabled())

	_, err := svc.Suggest(ctx, testutil.Tutor, item.ID)
	assert.Equal(t, core.ErrForbidden, err)
	_, err = svc.Suggest(ctx, testutil.Assessor, "lol")
	assert.True(t, core.IsNotFound(err))

	sug, err := svc.Suggest(ctx, testutil.Assessor, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, sug.ItemID)
	assert.Empty(t, sug.Grade, "unknown grade dropped")
	assert.Equal(t, []review.Judgment{{Code: "K1", Met: true}, {Code: "S1", Met: false}}, sug.Judgments)

	require.Len(t, rev.reqs, 1)
	assert.Equal(t, item.ID, rev.reqs[0].Item.ID)
	assert.Len(t, rev.reqs[0].Criteria, 3, "criteria of the item's category")

	rev.sug.Grade = submission.GradeMerit
	rev.sug.Judgments = nil
	sug, err = svc.Suggest(ctx, testutil.Admin, item.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.GradeMerit, sug.Grade)

	// suggestions never move the workflow
	assert.Empty(t, env.EventsOf(core.EventSubmissionTransitioned))

	rev.err = errors.New("upstream down")
	_, err = svc.Suggest(ctx, testutil.Assessor, item.ID)
	assert.Error(t, err)
}

func TestService_SuggestUnavailable(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := review.NewService(nil, env.Evidence, env.Catalogue, core.NopLogger{})
	assert.False(t, svc.Enabled())

	_, err := svc.Suggest(context.Background(), testutil.Assessor, "any")
	assert.Equal(t, review.ErrUnavailable, err)
}
