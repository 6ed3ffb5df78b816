package catalogue_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/catalogue"
	"github.com/trezcool/evidencehub/tests"
	inmemdb "github.com/trezcool/evidencehub/storage/database/inmem"
)

func newService() *catalogue.Service {
	validate, _ := testutil.NewValidator()
	return catalogue.NewService(inmemdb.NewCatalogueRepository(inmemdb.NewDB()), validate)
}

func TestService_Load(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	q := testutil.Qualification()
	q.Title = "  Installation Electrician "
	q.Categories[0].Criteria[0].Type = " Knowledge"
	q.Categories[0].Requirements[0].EvidenceTypes = []string{" PHOTO "}
	// listed out of order
	q.Categories[0], q.Categories[1] = q.Categories[1], q.Categories[0]

	got, err := svc.Load(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "Installation Electrician", got.Title)
	require.Len(t, got.Categories, 2)
	assert.Equal(t, testutil.CategoryID, got.Categories[0].ID, "sorted by position")
	assert.Equal(t, catalogue.Knowledge, got.Categories[0].Criteria[0].Type)
	assert.Equal(t, []string{catalogue.EvidencePhoto}, got.Categories[0].Requirements[0].EvidenceTypes)
	assert.Equal(t, testutil.QualificationID, got.Categories[0].QualificationID)
	assert.Equal(t, testutil.CategoryID, got.Categories[0].Criteria[0].CategoryID)

	stored, err := svc.GetQualification(ctx, testutil.QualificationID)
	require.NoError(t, err)
	assert.Equal(t, got, stored)

	cat, err := svc.GetCategory(ctx, testutil.QualificationID, testutil.OpenCategoryID)
	require.NoError(t, err)
	assert.Len(t, cat.Criteria, 2)

	_, err = svc.GetCategory(ctx, testutil.QualificationID, "lol")
	assert.True(t, core.IsNotFound(err))
	_, err = svc.GetCategory(ctx, "lol", testutil.CategoryID)
	assert.True(t, core.IsNotFound(err))

	all, err := svc.ListQualifications(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestService_LoadInvalid(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(q *catalogue.Qualification)
		wantField string
	}{
		{name: "blank title", mutate: func(q *catalogue.Qualification) { q.Title = "  " }},
		{name: "no categories", mutate: func(q *catalogue.Qualification) { q.Categories = nil }},
		{name: "unknown ksb type", mutate: func(q *catalogue.Qualification) { q.Categories[0].Criteria[0].Type = "attitude" }},
		{name: "unknown evidence type", mutate: func(q *catalogue.Qualification) {
			q.Categories[0].Requirements[0].EvidenceTypes = []string{"photo", "hologram"}
		}},
		{name: "zero quantity", mutate: func(q *catalogue.Qualification) { q.Categories[0].Requirements[0].QuantityRequired = 0 }},
		{
			name:      "duplicate criterion code across categories",
			mutate:    func(q *catalogue.Qualification) { q.Categories[1].Criteria[0].Code = "K1" },
			wantField: "criteria.K1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService()
			q := testutil.Qualification()
			tt.mutate(&q)

			assert.Error(t, svc.Validate(q))
			_, err := svc.Load(context.Background(), q)
			require.Error(t, err)

			if tt.wantField == "" {
				var verrs validator.ValidationErrors
				assert.ErrorAs(t, err, &verrs)
			} else {
				require.True(t, core.IsValidation(err))
				var verr *core.ValidationError
				require.ErrorAs(t, err, &verr)
				require.Len(t, verr.Fields, 1)
				assert.Equal(t, tt.wantField, verr.Fields[0].Field)
			}

			_, err = svc.GetQualification(context.Background(), q.ID)
			assert.True(t, core.IsNotFound(err), "nothing stored")
		})
	}
}
