package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/submission"
)

const submissionColumns = `id, student_id, qualification_id, category_id, item_ids, status, attempt_number,
	grade, feedback, strengths, improvements, previous_feedback, previous_grade, reviewer_id, review_started_at,
	suggestion_similarity, submitted_at, signed_off_by, signed_off_at, cancelled_reason, version, updated_at`

type submissionRow struct {
	ID                   string         `db:"id"`
	StudentID            string         `db:"student_id"`
	QualificationID      string         `db:"qualification_id"`
	CategoryID           string         `db:"category_id"`
	ItemIDs              pq.StringArray `db:"item_ids"`
	Status               string         `db:"status"`
	AttemptNumber        int            `db:"attempt_number"`
	Grade                string         `db:"grade"`
	Feedback             string         `db:"feedback"`
	Strengths            string         `db:"strengths"`
	Improvements         string         `db:"improvements"`
	PreviousFeedback     string         `db:"previous_feedback"`
	PreviousGrade        string         `db:"previous_grade"`
	ReviewerID           string         `db:"reviewer_id"`
	ReviewStartedAt      null.Time      `db:"review_started_at"`
	SuggestionSimilarity null.Float64   `db:"suggestion_similarity"`
	SubmittedAt          time.Time      `db:"submitted_at"`
	SignedOffBy          string         `db:"signed_off_by"`
	SignedOffAt          null.Time      `db:"signed_off_at"`
	CancelledReason      string         `db:"cancelled_reason"`
	Version              int            `db:"version"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

func toSubmissionRow(s submission.Submission) submissionRow {
	return submissionRow{
		ID:                   s.ID,
		StudentID:            s.StudentID,
		QualificationID:      s.QualificationID,
		CategoryID:           s.CategoryID,
		ItemIDs:              s.ItemIDs,
		Status:               string(s.Status),
		AttemptNumber:        s.AttemptNumber,
		Grade:                s.Grade,
		Feedback:             s.Feedback,
		Strengths:            s.Strengths,
		Improvements:         s.Improvements,
		PreviousFeedback:     s.PreviousFeedback,
		PreviousGrade:        s.PreviousGrade,
		ReviewerID:           s.ReviewerID,
		ReviewStartedAt:      null.TimeFromPtr(s.ReviewStartedAt),
		SuggestionSimilarity: null.Float64FromPtr(s.SuggestionSimilarity),
		SubmittedAt:          s.SubmittedAt.UTC(),
		SignedOffBy:          s.SignedOffBy,
		SignedOffAt:          null.TimeFromPtr(s.SignedOffAt),
		CancelledReason:      s.CancelledReason,
		Version:              s.Version,
		UpdatedAt:            s.UpdatedAt.UTC(),
	}
}

func (row submissionRow) submission() submission.Submission {
	return submission.Submission{
		ID:                   row.ID,
		StudentID:            row.StudentID,
		QualificationID:      row.QualificationID,
		CategoryID:           row.CategoryID,
		ItemIDs:              row.ItemIDs,
		Status:               submission.Status(row.Status),
		AttemptNumber:        row.AttemptNumber,
		Grade:                row.Grade,
		Feedback:             row.Feedback,
		Strengths:            row.Strengths,
		Improvements:         row.Improvements,
		PreviousFeedback:     row.PreviousFeedback,
		PreviousGrade:        row.PreviousGrade,
		ReviewerID:           row.ReviewerID,
		ReviewStartedAt:      row.ReviewStartedAt.Ptr(),
		SuggestionSimilarity: row.SuggestionSimilarity.Ptr(),
		SubmittedAt:          row.SubmittedAt,
		SignedOffBy:          row.SignedOffBy,
		SignedOffAt:          row.SignedOffAt.Ptr(),
		CancelledReason:      row.CancelledReason,
		Version:              row.Version,
		UpdatedAt:            row.UpdatedAt,
	}
}

type submissionRepository struct {
	db sqlx.ExtContext
}

var _ submission.Repository = (*submissionRepository)(nil)

func NewSubmissionRepository(db sqlx.ExtContext) *submissionRepository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) CreateSubmission(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	s.ID = uuid.New().String()
	s.Version = 1
	if _, err := sqlx.NamedExecContext(ctx, repo.db,
		`INSERT INTO submission (`+submissionColumns+`) VALUES (:id, :student_id, :qualification_id, :category_id,
		 :item_ids, :status, :attempt_number, :grade, :feedback, :strengths, :improvements, :previous_feedback,
		 :previous_grade, :reviewer_id, :review_started_at, :suggestion_similarity, :submitted_at, :signed_off_by,
		 :signed_off_at, :cancelled_reason, :version, :updated_at)`,
		toSubmissionRow(s)); err != nil {
		return submission.Submission{}, trapTimeout(err, "inserting submission")
	}
	return s, nil
}

func (repo *submissionRepository) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	if !validUUID(id) {
		return submission.Submission{}, core.NewNotFoundError("submission", id)
	}
	var row submissionRow
	if err := sqlx.GetContext(ctx, repo.db, &row, `SELECT `+submissionColumns+` FROM submission WHERE id = $1`, id); err != nil {
		return submission.Submission{}, trapNoRowsErr(err, "submission", id, "finding submission")
	}
	return row.submission(), nil
}

func (repo *submissionRepository) QuerySubmissions(ctx context.Context, filter submission.QueryFilter) ([]submission.Submission, error) {
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
	if filter.ReviewerID != "" {
		w.add("reviewer_id = %s", filter.ReviewerID)
	}
	if filter.ItemID != "" {
		w.add("%s = ANY(item_ids)", filter.ItemID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make(pq.StringArray, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		w.add("status = ANY(%s)", statuses)
	}

	var rows []submissionRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows,
		`SELECT `+submissionColumns+` FROM submission`+w.String()+` ORDER BY submitted_at`, w.args...); err != nil {
		return nil, trapTimeout(err, "querying submissions")
	}
	subs := make([]submission.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.submission())
	}
	return subs, nil
}

func (repo *submissionRepository) UpdateSubmission(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.db,
		`UPDATE submission SET status = :status, attempt_number = :attempt_number, grade = :grade, feedback = :feedback,
		 strengths = :strengths, improvements = :improvements, previous_feedback = :previous_feedback,
		 previous_grade = :previous_grade, reviewer_id = :reviewer_id, review_started_at = :review_started_at,
		 suggestion_similarity = :suggestion_similarity, submitted_at = :submitted_at, signed_off_by = :signed_off_by,
		 signed_off_at = :signed_off_at, cancelled_reason = :cancelled_reason, version = version + 1,
		 updated_at = :updated_at
		 WHERE id = :id AND version = :version`,
		toSubmissionRow(s))
	if err != nil {
		return submission.Submission{}, trapTimeout(err, "updating submission")
	}
	if err = checkAffected(res, "submission", s.ID); err != nil {
		return submission.Submission{}, err
	}
	s.Version++
	return s, nil
}
