package gateway_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/gateway"
	"github.com/trezcool/evidencehub/tests"
)

func TestService_GetStatus(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	st, err := env.Gateway.GetStatus(ctx, testutil.Student.ID, testutil.QualificationID)
	require.NoError(t, err)
	assert.Equal(t, 0, st.OverallProgress)
	assert.Equal(t, gateway.ReadinessNotReady, st.ReadinessStatus)
	assert.Equal(t, 100.0, st.OJTHoursRequired, "policy default")
	assert.Len(t, st.Checklist, 5)
	require.NotNil(t, st.Coverage)
	assert.Equal(t, 2, st.Coverage.Categories)

	_, err = env.Gateway.GetStatus(ctx, "ghost", testutil.QualificationID)
	assert.True(t, core.IsNotFound(err), "unknown student")
	_, err = env.Gateway.GetStatus(ctx, testutil.Student.ID, "other-qualification")
	assert.True(t, core.IsNotFound(err), "not enrolled")
}

func TestService_Mutations(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	sid, qid := testutil.Student.ID, testutil.QualificationID

	_, err := env.Gateway.SetChecklistItem(ctx, testutil.Student, sid, qid, "english_level2", true)
	assert.Equal(t, core.ErrForbidden, err)
	_, err = env.Gateway.SetChecklistItem(ctx, testutil.Tutor, sid, qid, "lol", true)
	assert.True(t, core.IsValidation(err))
	_, err = env.Gateway.SetChecklistItem(ctx, testutil.Tutor, sid, qid, gateway.KeyOJTHoursVerified, true)
	assert.True(t, core.IsValidation(err), "derived item")

	st, err := env.Gateway.SetChecklistItem(ctx, testutil.Tutor, sid, qid, " English_Level2 ", true)
	require.NoError(t, err)
	assert.Equal(t, 20, st.OverallProgress)

	// marking twice keeps the first completion
	before := st.Checklist
	st, err = env.Gateway.SetChecklistItem(ctx, testutil.Assessor, sid, qid, "english_level2", true)
	require.NoError(t, err)
	assert.Equal(t, before, st.Checklist)

	st, err = env.Gateway.SetChecklistItem(ctx, testutil.Tutor, sid, qid, "english_level2", false)
	require.NoError(t, err)
	assert.Equal(t, 0, st.OverallProgress)

	_, err = env.Gateway.UpdateOJTHours(ctx, testutil.Tutor, sid, qid, gateway.OJTUpdate{Hours: -1})
	assert.True(t, core.IsValidation(err))
	zero := 0.0
	_, err = env.Gateway.UpdateOJTHours(ctx, testutil.Tutor, sid, qid, gateway.OJTUpdate{Hours: 10, Required: &zero})
	assert.True(t, core.IsValidation(err), "nothing required would verify the hours for free")

	required := 80.0
	st, err = env.Gateway.UpdateOJTHours(ctx, testutil.Tutor, sid, qid, gateway.OJTUpdate{Hours: 120, Required: &required})
	require.NoError(t, err)
	assert.True(t, st.OJTHoursVerified, "exceeding is fine")
	assert.Equal(t, 100, st.OJTPercentage)
	assert.Equal(t, 80.0, st.OJTHoursRequired)
	assert.Equal(t, 20, st.OverallProgress)
}

func TestService_BookEPA(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	sid, qid := testutil.Student.ID, testutil.QualificationID
	date := time.Date(2026, 11, 20, 9, 0, 0, 0, time.UTC)

	_, err := env.Gateway.BookEPA(ctx, testutil.Tutor, sid, qid, time.Time{})
	assert.True(t, core.IsValidation(err))

	_, err = env.Gateway.BookEPA(ctx, testutil.Tutor, sid, qid, date)
	assert.Equal(t, core.ErrGatewayNotPassed, err)

	for _, key := range []string{gateway.KeyPortfolioSignedOff, "english_level2", "maths_level2"} {
		_, err = env.Gateway.SetChecklistItem(ctx, testutil.Tutor, sid, qid, key, true)
		require.NoError(t, err)
	}
	_, err = env.Gateway.UpdateOJTHours(ctx, testutil.Tutor, sid, qid, gateway.OJTUpdate{Hours: 100})
	require.NoError(t, err)
	assert.Empty(t, env.EventsOf(core.EventGatewayPassed))

	st, err := env.Gateway.SetChecklistItem(ctx, testutil.Assessor, sid, qid, "employer_satisfied", true)
	require.NoError(t, err)
	assert.True(t, st.GatewayPassed)
	assert.Equal(t, gateway.ReadinessGatewayPassed, st.ReadinessStatus)
	assert.Equal(t, 100, st.OverallProgress)

	evts := env.EventsOf(core.EventGatewayPassed)
	require.Len(t, evts, 1)
	assert.Equal(t, sid, evts[0].StudentID)
	assert.Equal(t, string(gateway.ReadinessNearlyReady), evts[0].From, "4 of 5")

	st, err = env.Gateway.BookEPA(ctx, testutil.Tutor, sid, qid, date)
	require.NoError(t, err)
	require.NotNil(t, st.EPABookedDate)
	assert.True(t, date.Equal(*st.EPABookedDate))

	// re-booking overwrites and does not pass the gateway again
	later := date.Add(7 * 24 * time.Hour)
	st, err = env.Gateway.BookEPA(ctx, testutil.Tutor, sid, qid, later)
	require.NoError(t, err)
	assert.True(t, later.Equal(*st.EPABookedDate))
	assert.Len(t, env.EventsOf(core.EventGatewayPassed), 1)
}
