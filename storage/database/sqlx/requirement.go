package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/requirement"
)

const requirementColumns = `id, student_id, tutor_id, qualification_id, category_id, title, evidence_types,
	quantity_required, mandatory, due_date, guidance, status, contributed, created_at, updated_at`

type requirementRow struct {
	ID               string         `db:"id"`
	StudentID        string         `db:"student_id"`
	TutorID          string         `db:"tutor_id"`
	QualificationID  string         `db:"qualification_id"`
	CategoryID       string         `db:"category_id"`
	Title            string         `db:"title"`
	EvidenceTypes    pq.StringArray `db:"evidence_types"`
	QuantityRequired int            `db:"quantity_required"`
	Mandatory        bool           `db:"mandatory"`
	DueDate          null.Time      `db:"due_date"`
	Guidance         string         `db:"guidance"`
	Status           string         `db:"status"`
	Contributed      bool           `db:"contributed"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func toRequirementRow(r requirement.Requirement) requirementRow {
	return requirementRow{
		ID:               r.ID,
		StudentID:        r.StudentID,
		TutorID:          r.TutorID,
		QualificationID:  r.QualificationID,
		CategoryID:       r.CategoryID,
		Title:            r.Title,
		EvidenceTypes:    r.EvidenceTypes,
		QuantityRequired: r.QuantityRequired,
		Mandatory:        r.Mandatory,
		DueDate:          null.TimeFromPtr(r.DueDate),
		Guidance:         r.Guidance,
		Status:           string(r.Status),
		Contributed:      r.Contributed,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func (row requirementRow) requirement() requirement.Requirement {
	return requirement.Requirement{
		ID:               row.ID,
		StudentID:        row.StudentID,
		TutorID:          row.TutorID,
		QualificationID:  row.QualificationID,
		CategoryID:       row.CategoryID,
		Title:            row.Title,
		EvidenceTypes:    row.EvidenceTypes,
		QuantityRequired: row.QuantityRequired,
		Mandatory:        row.Mandatory,
		DueDate:          row.DueDate.Ptr(),
		Guidance:         row.Guidance,
		Status:           requirement.Status(row.Status),
		Contributed:      row.Contributed,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

type requirementRepository struct {
	db sqlx.ExtContext
}

var _ requirement.Repository = (*requirementRepository)(nil)

func NewRequirementRepository(db sqlx.ExtContext) *requirementRepository {
	return &requirementRepository{db: db}
}

func (repo *requirementRepository) CreateRequirement(ctx context.Context, r requirement.Requirement) (requirement.Requirement, error) {
	r.ID = uuid.New().String()
	if _, err := sqlx.NamedExecContext(ctx, repo.db,
		`INSERT INTO requirement (`+requirementColumns+`) VALUES (:id, :student_id, :tutor_id, :qualification_id,
		 :category_id, :title, :evidence_types, :quantity_required, :mandatory, :due_date, :guidance, :status,
		 :contributed, :created_at, :updated_at)`,
		toRequirementRow(r)); err != nil {
		return requirement.Requirement{}, trapTimeout(err, "inserting requirement")
	}
	return r, nil
}

func (repo *requirementRepository) GetRequirement(ctx context.Context, id string) (requirement.Requirement, error) {
	if !validUUID(id) {
		return requirement.Requirement{}, core.NewNotFoundError("requirement", id)
	}
	var row requirementRow
	if err := sqlx.GetContext(ctx, repo.db, &row, `SELECT `+requirementColumns+` FROM requirement WHERE id = $1`, id); err != nil {
		return requirement.Requirement{}, trapNoRowsErr(err, "requirement", id, "finding requirement")
	}
	return row.requirement(), nil
}

func (repo *requirementRepository) QueryRequirements(ctx context.Context, filter requirement.QueryFilter) ([]requirement.Requirement, error) {
	var w where
	if filter.StudentID != "" {
		w.add("student_id = %s", filter.StudentID)
	}
	if filter.QualificationID != "" {
		w.add("qualification_id = %s", filter.QualificationID)
	}
	if filter.CategoryID != "" {
		w.add("category_id = %s", filter.CategoryID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make(pq.StringArray, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		w.add("status = ANY(%s)", statuses)
	}

	var rows []requirementRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows,
		`SELECT `+requirementColumns+` FROM requirement`+w.String()+` ORDER BY created_at`, w.args...); err != nil {
		return nil, trapTimeout(err, "querying requirements")
	}
	reqs := make([]requirement.Requirement, 0, len(rows))
	for _, row := range rows {
		reqs = append(reqs, row.requirement())
	}
	return reqs, nil
}

func (repo *requirementRepository) UpdateRequirement(ctx context.Context, r requirement.Requirement) (requirement.Requirement, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.db,
		`UPDATE requirement SET title = :title, evidence_types = :evidence_types, quantity_required = :quantity_required,
		 mandatory = :mandatory, due_date = :due_date, guidance = :guidance, status = :status,
		 contributed = contributed OR :contributed, updated_at = :updated_at
		 WHERE id = :id`,
		toRequirementRow(r))
	if err != nil {
		return requirement.Requirement{}, trapTimeout(err, "updating requirement")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return requirement.Requirement{}, trapTimeout(err, "updating requirement")
	}
	if n == 0 {
		return requirement.Requirement{}, core.NewNotFoundError("requirement", r.ID)
	}
	return r, nil
}

func (repo *requirementRepository) MarkContributed(ctx context.Context, ids []string) error {
	if _, err := repo.db.ExecContext(ctx,
		`UPDATE requirement SET contributed = TRUE WHERE id::text = ANY($1) AND NOT contributed`,
		pq.StringArray(ids)); err != nil {
		return trapTimeout(err, "marking requirements as contributed")
	}
	return nil
}

func (repo *requirementRepository) DeleteRequirement(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM requirement WHERE id = $1 AND NOT contributed`, id)
	if err != nil {
		return trapTimeout(err, "deleting requirement")
	}
	return checkAffected(res, "requirement", id)
}
