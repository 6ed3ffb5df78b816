package catalogue

import (
	"context"
	"fmt"
	"sort"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
)

type (
	Repository interface {
		SaveQualification(ctx context.Context, q Qualification) error
		GetQualification(ctx context.Context, id string) (Qualification, error)
		ListQualifications(ctx context.Context) ([]Qualification, error)
	}

	// Service is read-only for every caller but catalogue administration (Load).
	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

// InitValidators registers the catalogue validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	types := make([]string, 0, len(KSBTypes))
	for _, t := range KSBTypes {
		types = append(types, string(t))
	}
	core.RegisterEnumValidation(validate, translator, "ksbtype", "must be one of: "+strings.Join(types, ", "), types)
	core.RegisterEnumValidation(validate, translator, "evidencetypes", "unknown evidence type", EvidenceTypes)
}

// Validate checks a qualification without storing it.
func (svc *Service) Validate(q Qualification) error {
	q = normalize(q)
	if err := svc.validate.Struct(q); err != nil {
		return err
	}
	return checkUniqueCodes(q)
}

// Load validates and stores a qualification catalogue, replacing any previous version.
func (svc *Service) Load(ctx context.Context, q Qualification) (Qualification, error) {
	q = normalize(q)
	if err := svc.validate.Struct(q); err != nil {
		return Qualification{}, err
	}
	if err := checkUniqueCodes(q); err != nil {
		return Qualification{}, err
	}
	if err := svc.repo.SaveQualification(ctx, q); err != nil {
		return Qualification{}, errors.Wrap(err, "saving qualification")
	}
	return q, nil
}

func (svc *Service) GetQualification(ctx context.Context, id string) (Qualification, error) {
	return svc.repo.GetQualification(ctx, id)
}

func (svc *Service) ListQualifications(ctx context.Context) ([]Qualification, error) {
	return svc.repo.ListQualifications(ctx)
}

// GetCategory returns a category of the given qualification.
func (svc *Service) GetCategory(ctx context.Context, qualificationID, categoryID string) (Category, error) {
	q, err := svc.repo.GetQualification(ctx, qualificationID)
	if err != nil {
		return Category{}, err
	}
	cat, ok := q.Category(categoryID)
	if !ok {
		return Category{}, core.NewNotFoundError("category", categoryID)
	}
	return cat, nil
}

func normalize(q Qualification) Qualification {
	q.Code = core.CleanString(q.Code)
	q.Title = core.CleanString(q.Title)
	if q.ID == "" {
		q.ID = uuid.New().String()
	}

	cats := make([]Category, len(q.Categories))
	for i, cat := range q.Categories {
		if cat.ID == "" {
			cat.ID = uuid.New().String()
		}
		if cat.Position == 0 {
			cat.Position = i + 1
		}
		cat.QualificationID = q.ID

		criteria := make([]Criterion, len(cat.Criteria))
		for j, cr := range cat.Criteria {
			cr.Code = core.CleanString(cr.Code)
			cr.Type = KSBType(core.CleanString(string(cr.Type), true /* lower */))
			cr.CategoryID = cat.ID
			criteria[j] = cr
		}
		cat.Criteria = criteria

		reqs := make([]Requirement, len(cat.Requirements))
		for j, r := range cat.Requirements {
			if r.ID == "" {
				r.ID = uuid.New().String()
			}
			r.CategoryID = cat.ID
			r.EvidenceTypes = core.CleanStrings(r.EvidenceTypes, true /* lower */)
			reqs[j] = r
		}
		cat.Requirements = reqs
		cats[i] = cat
	}
	sort.SliceStable(cats, func(i, j int) bool { return cats[i].Position < cats[j].Position })
	q.Categories = cats
	return q
}

// checkUniqueCodes enforces that a criterion code is unique within its qualification.
func checkUniqueCodes(q Qualification) error {
	seen := make(map[string]string)
	var flds []core.FieldError
	for _, cat := range q.Categories {
		for _, cr := range cat.Criteria {
			if prev, ok := seen[cr.Code]; ok {
				flds = append(flds, core.FieldError{
					Field: "criteria." + cr.Code,
					Error: fmt.Sprintf("criterion code already used in category %q", prev),
				})
				continue
			}
			seen[cr.Code] = cat.Code
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(errors.New("duplicate criterion codes"), flds...)
	}
	return nil
}
