package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/evidencehub/core/catalogue"
)

type (
	qualificationRow struct {
		ID    string `db:"id"`
		Code  string `db:"code"`
		Title string `db:"title"`
	}

	categoryRow struct {
		ID              string `db:"id"`
		QualificationID string `db:"qualification_id"`
		Code            string `db:"code"`
		Title           string `db:"title"`
		Position        int    `db:"position"`
	}

	criterionRow struct {
		Code       string `db:"code"`
		CategoryID string `db:"category_id"`
		Type       string `db:"type"`
		Text       string `db:"text"`
		Mandatory  bool   `db:"mandatory"`
	}

	catalogueRequirementRow struct {
		ID               string         `db:"id"`
		CategoryID       string         `db:"category_id"`
		Title            string         `db:"title"`
		EvidenceTypes    pq.StringArray `db:"evidence_types"`
		QuantityRequired int            `db:"quantity_required"`
		Mandatory        bool           `db:"mandatory"`
		DueDate          null.Time      `db:"due_date"`
		Guidance         string         `db:"guidance"`
	}
)

type catalogueRepository struct {
	db *sqlx.DB
}

var _ catalogue.Repository = (*catalogueRepository)(nil)

func NewCatalogueRepository(db *sqlx.DB) *catalogueRepository {
	return &catalogueRepository{db: db}
}

// SaveQualification replaces the whole qualification tree in one transaction.
func (repo *catalogueRepository) SaveQualification(ctx context.Context, q catalogue.Qualification) (err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM qualification WHERE id = $1 OR code = $2`, q.ID, q.Code); err != nil {
		return errors.Wrap(err, "deleting previous qualification")
	}
	if _, err = tx.NamedExecContext(ctx,
		`INSERT INTO qualification (id, code, title) VALUES (:id, :code, :title)`,
		qualificationRow{ID: q.ID, Code: q.Code, Title: q.Title}); err != nil {
		return errors.Wrap(err, "inserting qualification")
	}

	for _, cat := range q.Categories {
		if _, err = tx.NamedExecContext(ctx,
			`INSERT INTO category (id, qualification_id, code, title, position)
			 VALUES (:id, :qualification_id, :code, :title, :position)`,
			categoryRow{ID: cat.ID, QualificationID: q.ID, Code: cat.Code, Title: cat.Title, Position: cat.Position}); err != nil {
			return errors.Wrap(err, "inserting category")
		}
		for _, cr := range cat.Criteria {
			if _, err = tx.NamedExecContext(ctx,
				`INSERT INTO criterion (code, category_id, type, text, mandatory)
				 VALUES (:code, :category_id, :type, :text, :mandatory)`,
				criterionRow{Code: cr.Code, CategoryID: cat.ID, Type: string(cr.Type), Text: cr.Text, Mandatory: cr.Mandatory}); err != nil {
				return errors.Wrap(err, "inserting criterion")
			}
		}
		for _, r := range cat.Requirements {
			if _, err = tx.NamedExecContext(ctx,
				`INSERT INTO catalogue_requirement (id, category_id, title, evidence_types, quantity_required, mandatory, due_date, guidance)
				 VALUES (:id, :category_id, :title, :evidence_types, :quantity_required, :mandatory, :due_date, :guidance)`,
				catalogueRequirementRow{
					ID:               r.ID,
					CategoryID:       cat.ID,
					Title:            r.Title,
					EvidenceTypes:    r.EvidenceTypes,
					QuantityRequired: r.QuantityRequired,
					Mandatory:        r.Mandatory,
					DueDate:          null.TimeFromPtr(r.DueDate),
					Guidance:         r.Guidance,
				}); err != nil {
				return errors.Wrap(err, "inserting catalogue requirement")
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing qualification")
	}
	return nil
}

func (repo *catalogueRepository) GetQualification(ctx context.Context, id string) (catalogue.Qualification, error) {
	var row qualificationRow
	if err := repo.db.GetContext(ctx, &row, `SELECT id, code, title FROM qualification WHERE id = $1`, id); err != nil {
		return catalogue.Qualification{}, trapNoRowsErr(err, "qualification", id, "finding qualification")
	}
	return repo.load(ctx, row)
}

func (repo *catalogueRepository) ListQualifications(ctx context.Context) ([]catalogue.Qualification, error) {
	var rows []qualificationRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT id, code, title FROM qualification ORDER BY code`); err != nil {
		return nil, trapTimeout(err, "listing qualifications")
	}
	quals := make([]catalogue.Qualification, 0, len(rows))
	for _, row := range rows {
		q, err := repo.load(ctx, row)
		if err != nil {
			return nil, err
		}
		quals = append(quals, q)
	}
	return quals, nil
}

func (repo *catalogueRepository) load(ctx context.Context, row qualificationRow) (catalogue.Qualification, error) {
	q := catalogue.Qualification{ID: row.ID, Code: row.Code, Title: row.Title}

	var cats []categoryRow
	if err := repo.db.SelectContext(ctx, &cats,
		`SELECT id, qualification_id, code, title, position FROM category WHERE qualification_id = $1 ORDER BY position`,
		row.ID); err != nil {
		return q, trapTimeout(err, "querying categories")
	}
	var crits []criterionRow
	if err := repo.db.SelectContext(ctx, &crits,
		`SELECT cr.code, cr.category_id, cr.type, cr.text, cr.mandatory
		 FROM criterion cr JOIN category c ON c.id = cr.category_id
		 WHERE c.qualification_id = $1 ORDER BY cr.code`,
		row.ID); err != nil {
		return q, trapTimeout(err, "querying criteria")
	}
	var reqs []catalogueRequirementRow
	if err := repo.db.SelectContext(ctx, &reqs,
		`SELECT r.id, r.category_id, r.title, r.evidence_types, r.quantity_required, r.mandatory, r.due_date, r.guidance
		 FROM catalogue_requirement r JOIN category c ON c.id = r.category_id
		 WHERE c.qualification_id = $1 ORDER BY r.title`,
		row.ID); err != nil {
		return q, trapTimeout(err, "querying catalogue requirements")
	}

	for _, c := range cats {
		cat := catalogue.Category{
			ID:              c.ID,
			QualificationID: c.QualificationID,
			Code:            c.Code,
			Title:           c.Title,
			Position:        c.Position,
		}
		for _, cr := range crits {
			if cr.CategoryID == c.ID {
				cat.Criteria = append(cat.Criteria, catalogue.Criterion{
					Code:       cr.Code,
					CategoryID: cr.CategoryID,
					Type:       catalogue.KSBType(cr.Type),
					Text:       cr.Text,
					Mandatory:  cr.Mandatory,
				})
			}
		}
		for _, r := range reqs {
			if r.CategoryID == c.ID {
				cat.Requirements = append(cat.Requirements, catalogue.Requirement{
					ID:               r.ID,
					CategoryID:       r.CategoryID,
					Title:            r.Title,
					EvidenceTypes:    r.EvidenceTypes,
					QuantityRequired: r.QuantityRequired,
					Mandatory:        r.Mandatory,
					DueDate:          r.DueDate.Ptr(),
					Guidance:         r.Guidance,
				})
			}
		}
		q.Categories = append(q.Categories, cat)
	}
	return q, nil
}

