package requirement_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/catalogue"
	"github.com/trezcool/evidencehub/core/requirement"
	"github.com/trezcool/evidencehub/tests"
)

func newRequirement(categoryID string) requirement.NewRequirement {
	return requirement.NewRequirement{
		StudentID:        testutil.Student.ID,
		QualificationID:  testutil.QualificationID,
		CategoryID:       categoryID,
		Title:            " Isolation log ",
		EvidenceTypes:    []string{" Document "},
		QuantityRequired: 1,
		Mandatory:        true,
	}
}

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	_, err := env.Requirement.Create(ctx, testutil.Assessor, newRequirement(testutil.CategoryID))
	assert.Equal(t, core.ErrForbidden, err)

	bad := newRequirement(testutil.CategoryID)
	bad.QuantityRequired = 0
	_, err = env.Requirement.Create(ctx, testutil.Tutor, bad)
	assert.Error(t, err)

	_, err = env.Requirement.Create(ctx, testutil.Tutor, newRequirement("lol"))
	assert.True(t, core.IsNotFound(err))

	req, err := env.Requirement.Create(ctx, testutil.Tutor, newRequirement(testutil.CategoryID))
	require.NoError(t, err)
	assert.Equal(t, "Isolation log", req.Title)
	assert.Equal(t, []string{catalogue.EvidenceDocument}, req.EvidenceTypes)
	assert.Equal(t, testutil.Tutor.ID, req.TutorID)
	assert.Equal(t, requirement.StatusActive, req.Status)
	assert.Len(t, env.EventsOf(core.EventRequirementChanged), 1)
}

func TestService_Lifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	req, err := env.Requirement.Create(ctx, testutil.Tutor, newRequirement(testutil.CategoryID))
	require.NoError(t, err)

	otherTutor := core.Actor{ID: "tut-2", Roles: []string{core.RoleTutor}}
	_, err = env.Requirement.MarkComplete(ctx, otherTutor, req.ID)
	assert.Equal(t, core.ErrForbidden, err, "only the owning tutor")

	_, err = env.Requirement.Reactivate(ctx, testutil.Tutor, req.ID)
	assert.True(t, core.IsInvalidTransition(err))

	req, err = env.Requirement.MarkComplete(ctx, testutil.Tutor, req.ID)
	require.NoError(t, err)
	assert.Equal(t, requirement.StatusCompleted, req.Status)

	req, err = env.Requirement.Reactivate(ctx, testutil.Admin, req.ID)
	require.NoError(t, err)
	assert.Equal(t, requirement.StatusActive, req.Status)

	guidance := "take a photo of the lock-off"
	req, err = env.Requirement.Update(ctx, testutil.Tutor, req.ID, requirement.UpdateRequirement{QuantityRequired: 3, Guidance: &guidance})
	require.NoError(t, err)
	assert.Equal(t, 3, req.QuantityRequired)
	assert.Equal(t, guidance, req.Guidance)
	assert.Equal(t, "Isolation log", req.Title, "zero values are kept")

	req, err = env.Requirement.Cancel(ctx, testutil.Tutor, req.ID)
	require.NoError(t, err)
	assert.Equal(t, requirement.StatusCancelled, req.Status)

	_, err = env.Requirement.Update(ctx, testutil.Tutor, req.ID, requirement.UpdateRequirement{Title: "lol"})
	assert.True(t, core.IsInvalidTransition(err))
	_, err = env.Requirement.Cancel(ctx, testutil.Tutor, req.ID)
	assert.True(t, core.IsInvalidTransition(err))
}

func TestService_Delete(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	// unit-2 has no catalogue requirements nor mandatory criteria
	fresh, err := env.Requirement.Create(ctx, testutil.Tutor, newRequirement(testutil.OpenCategoryID))
	require.NoError(t, err)

	_, _, err = env.Requirement.Delete(ctx, testutil.Student, fresh.ID)
	assert.Equal(t, core.ErrForbidden, err)

	_, erased, err := env.Requirement.Delete(ctx, testutil.Tutor, fresh.ID)
	require.NoError(t, err)
	assert.True(t, erased, "never contributed")
	_, err = env.Requirement.Get(ctx, fresh.ID)
	assert.True(t, core.IsNotFound(err))

	used, err := env.Requirement.Create(ctx, testutil.Tutor, newRequirement(testutil.OpenCategoryID))
	require.NoError(t, err)
	env.CreateItem(t, testutil.Student, testutil.OpenCategoryID, catalogue.EvidenceDocument)

	entry, err := env.Coverage.Category(ctx, testutil.Student.ID, testutil.QualificationID, testutil.OpenCategoryID)
	require.NoError(t, err)
	require.Equal(t, "complete", string(entry.Status))

	used, err = env.Requirement.Get(ctx, used.ID)
	require.NoError(t, err)
	assert.True(t, used.Contributed)

	req, erased, err := env.Requirement.Delete(ctx, testutil.Tutor, used.ID)
	require.NoError(t, err)
	assert.False(t, erased, "contributed requirements are cancelled instead")
	assert.Equal(t, requirement.StatusCancelled, req.Status)

	req, err = env.Requirement.Get(ctx, used.ID)
	require.NoError(t, err)
	assert.Equal(t, requirement.StatusCancelled, req.Status)

	// deleting again is a no-op
	_, erased, err = env.Requirement.Delete(ctx, testutil.Tutor, used.ID)
	require.NoError(t, err)
	assert.False(t, erased)
}
