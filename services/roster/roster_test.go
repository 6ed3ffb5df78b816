package rostersvc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/roster"
)

func TestClient_GetStudent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer roster-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/students/stu-1":
			_, _ = w.Write([]byte(`{"id":"stu-1","name":"Amani","email":"amani@test.cd","status":"active",
				"enrolments":[{"qualification_id":"st0152","cohort":"2026"}]}`))
		case "/v1/students/boom":
			w.WriteHeader(http.StatusBadRequest)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	conf := &core.Config{Roster: core.RosterConfig{BaseURL: srv.URL, APIKey: "roster-key", Timeout: time.Second}}
	c := NewClient(conf)
	ctx := context.Background()

	st, err := c.GetStudent(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "Amani", st.Name)
	assert.True(t, st.EnrolledIn("st0152"))
	assert.False(t, st.EnrolledIn("st0154"))

	_, err = c.GetStudent(ctx, "ghost")
	assert.True(t, core.IsNotFound(err))

	_, err = c.GetStudent(ctx, "boom")
	assert.Error(t, err)
	assert.False(t, core.IsNotFound(err))
}

func TestLoadFile(t *testing.T) {
	students, err := LoadFile("testdata/roster.yml")
	require.NoError(t, err)
	require.Len(t, students, 2)

	assert.Equal(t, roster.Student{
		ID:         "stu-1",
		Name:       "Amani",
		Email:      "amani@test.cd",
		Status:     roster.StatusActive,
		Enrolments: []roster.Enrolment{{QualificationID: "st0152", Cohort: "2026"}},
	}, students[0])
	assert.Equal(t, roster.StatusOnBreak, students[1].Status)
	assert.Empty(t, students[1].Enrolments)

	_, err = LoadFile("testdata/missing.yml")
	assert.Error(t, err)
}
