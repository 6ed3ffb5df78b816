package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/evidence"
)

const itemColumns = `id, student_id, qualification_id, category_id, title, description, time_spent,
	files, links, reflection_notes, status, version, created_at, updated_at`

type itemRow struct {
	ID              string         `db:"id"`
	StudentID       string         `db:"student_id"`
	QualificationID string         `db:"qualification_id"`
	CategoryID      string         `db:"category_id"`
	Title           string         `db:"title"`
	Description     string         `db:"description"`
	TimeSpent       int            `db:"time_spent"`
	Files           types.JSONText `db:"files"`
	Links           types.JSONText `db:"links"`
	ReflectionNotes string         `db:"reflection_notes"`
	Status          string         `db:"status"`
	Version         int            `db:"version"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func toItemRow(it evidence.Item) (itemRow, error) {
	files, err := json.Marshal(nonNilFiles(it.Files))
	if err != nil {
		return itemRow{}, errors.Wrap(err, "encoding files")
	}
	links, err := json.Marshal(nonNilLinks(it.Links))
	if err != nil {
		return itemRow{}, errors.Wrap(err, "encoding links")
	}
	return itemRow{
		ID:              it.ID,
		StudentID:       it.StudentID,
		QualificationID: it.QualificationID,
		CategoryID:      it.CategoryID,
		Title:           it.Title,
		Description:     it.Description,
		TimeSpent:       it.TimeSpent,
		Files:           files,
		Links:           links,
		ReflectionNotes: it.ReflectionNotes,
		Status:          string(it.Status),
		Version:         it.Version,
		CreatedAt:       it.CreatedAt.UTC(),
		UpdatedAt:       it.UpdatedAt.UTC(),
	}, nil
}

func (row itemRow) item() (evidence.Item, error) {
	it := evidence.Item{
		ID:              row.ID,
		StudentID:       row.StudentID,
		QualificationID: row.QualificationID,
		CategoryID:      row.CategoryID,
		Title:           row.Title,
		Description:     row.Description,
		TimeSpent:       row.TimeSpent,
		ReflectionNotes: row.ReflectionNotes,
		Status:          evidence.Status(row.Status),
		Version:         row.Version,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if err := row.Files.Unmarshal(&it.Files); err != nil {
		return it, errors.Wrap(err, "decoding files")
	}
	if err := row.Links.Unmarshal(&it.Links); err != nil {
		return it, errors.Wrap(err, "decoding links")
	}
	return it, nil
}

func nonNilFiles(f []evidence.File) []evidence.File {
	if f == nil {
		return []evidence.File{}
	}
	return f
}

func nonNilLinks(l []evidence.CriterionLink) []evidence.CriterionLink {
	if l == nil {
		return []evidence.CriterionLink{}
	}
	return l
}

type evidenceRepository struct {
	db sqlx.ExtContext
}

var _ evidence.Repository = (*evidenceRepository)(nil)

func NewEvidenceRepository(db sqlx.ExtContext) *evidenceRepository {
	return &evidenceRepository{db: db}
}

func (repo *evidenceRepository) CreateItem(ctx context.Context, it evidence.Item) (evidence.Item, error) {
	it.ID = uuid.New().String()
	it.Version = 1
	row, err := toItemRow(it)
	if err != nil {
		return evidence.Item{}, err
	}
	if _, err = sqlx.NamedExecContext(ctx, repo.db,
		`INSERT INTO evidence_item (`+itemColumns+`) VALUES (:id, :student_id, :qualification_id, :category_id, :title,
		 :description, :time_spent, :files, :links, :reflection_notes, :status, :version, :created_at, :updated_at)`,
		row); err != nil {
		return evidence.Item{}, trapTimeout(err, "inserting evidence")
	}
	return it, nil
}

func (repo *evidenceRepository) GetItem(ctx context.Context, id string) (evidence.Item, error) {
	if !validUUID(id) {
		return evidence.Item{}, core.NewNotFoundError("evidence", id)
	}
	var row itemRow
	if err := sqlx.GetContext(ctx, repo.db, &row, `SELECT `+itemColumns+` FROM evidence_item WHERE id = $1`, id); err != nil {
		return evidence.Item{}, trapNoRowsErr(err, "evidence", id, "finding evidence")
	}
	return row.item()
}

func (repo *evidenceRepository) QueryItems(ctx context.Context, filter evidence.QueryFilter) ([]evidence.Item, error) {
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
	if len(filter.IDs) > 0 {
		w.add("id::text = ANY(%s)", pq.StringArray(filter.IDs))
	}
	if !filter.IncludeWithdrawn {
		w.add("status = %s", string(evidence.StatusActive))
	}
	q := `SELECT ` + itemColumns + ` FROM evidence_item` + w.String() + ` ORDER BY created_at`

	var rows []itemRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, w.args...); err != nil {
		return nil, trapTimeout(err, "querying evidence")
	}
	items := make([]evidence.Item, 0, len(rows))
	for _, row := range rows {
		it, err := row.item()
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func (repo *evidenceRepository) UpdateItem(ctx context.Context, it evidence.Item) (evidence.Item, error) {
	row, err := toItemRow(it)
	if err != nil {
		return evidence.Item{}, err
	}
	res, err := sqlx.NamedExecContext(ctx, repo.db,
		`UPDATE evidence_item SET title = :title, description = :description, time_spent = :time_spent,
		 files = :files, links = :links, reflection_notes = :reflection_notes, status = :status,
		 version = version + 1, updated_at = :updated_at
		 WHERE id = :id AND version = :version`,
		row)
	if err != nil {
		return evidence.Item{}, trapTimeout(err, "updating evidence")
	}
	if err = checkAffected(res, "evidence", it.ID); err != nil {
		return evidence.Item{}, err
	}
	it.Version++
	return it, nil
}
