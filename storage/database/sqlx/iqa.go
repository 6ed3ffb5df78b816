package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/iqa"
)

const samplingColumns = `id, submission_id, assessor_id, student_id, qualification_id, category_id, grade,
	verification_status, notes, feedback_quality, grading_accuracy, action_required, sampled_by, sampled_at,
	verified_by, verified_at, version`

type samplingRow struct {
	ID                 string    `db:"id"`
	SubmissionID       string    `db:"submission_id"`
	AssessorID         string    `db:"assessor_id"`
	StudentID          string    `db:"student_id"`
	QualificationID    string    `db:"qualification_id"`
	CategoryID         string    `db:"category_id"`
	Grade              string    `db:"grade"`
	VerificationStatus string    `db:"verification_status"`
	Notes              string    `db:"notes"`
	FeedbackQuality    int       `db:"feedback_quality"`
	GradingAccuracy    int       `db:"grading_accuracy"`
	ActionRequired     string    `db:"action_required"`
	SampledBy          string    `db:"sampled_by"`
	SampledAt          time.Time `db:"sampled_at"`
	VerifiedBy         string    `db:"verified_by"`
	VerifiedAt         null.Time `db:"verified_at"`
	Version            int       `db:"version"`
}

func toSamplingRow(r iqa.Record) samplingRow {
	return samplingRow{
		ID:                 r.ID,
		SubmissionID:       r.SubmissionID,
		AssessorID:         r.AssessorID,
		StudentID:          r.StudentID,
		QualificationID:    r.QualificationID,
		CategoryID:         r.CategoryID,
		Grade:              r.Grade,
		VerificationStatus: string(r.VerificationStatus),
		Notes:              r.Notes,
		FeedbackQuality:    r.FeedbackQuality,
		GradingAccuracy:    r.GradingAccuracy,
		ActionRequired:     r.ActionRequired,
		SampledBy:          r.SampledBy,
		SampledAt:          r.SampledAt.UTC(),
		VerifiedBy:         r.VerifiedBy,
		VerifiedAt:         null.TimeFromPtr(r.VerifiedAt),
		Version:            r.Version,
	}
}

func (row samplingRow) record() iqa.Record {
	return iqa.Record{
		ID:                 row.ID,
		SubmissionID:       row.SubmissionID,
		AssessorID:         row.AssessorID,
		StudentID:          row.StudentID,
		QualificationID:    row.QualificationID,
		CategoryID:         row.CategoryID,
		Grade:              row.Grade,
		VerificationStatus: iqa.VerificationStatus(row.VerificationStatus),
		Notes:              row.Notes,
		FeedbackQuality:    row.FeedbackQuality,
		GradingAccuracy:    row.GradingAccuracy,
		ActionRequired:     row.ActionRequired,
		SampledBy:          row.SampledBy,
		SampledAt:          row.SampledAt,
		VerifiedBy:         row.VerifiedBy,
		VerifiedAt:         row.VerifiedAt.Ptr(),
		Version:            row.Version,
	}
}

type samplingRepository struct {
	db sqlx.ExtContext
}

var _ iqa.Repository = (*samplingRepository)(nil)

func NewSamplingRepository(db sqlx.ExtContext) *samplingRepository {
	return &samplingRepository{db: db}
}

// CreateRecord relies on the unique index on submission_id.
func (repo *samplingRepository) CreateRecord(ctx context.Context, r iqa.Record) (iqa.Record, error) {
	r.ID = uuid.New().String()
	r.Version = 1
	_, err := sqlx.NamedExecContext(ctx, repo.db,
		`INSERT INTO sampling_record (`+samplingColumns+`) VALUES (:id, :submission_id, :assessor_id, :student_id,
		 :qualification_id, :category_id, :grade, :verification_status, :notes, :feedback_quality, :grading_accuracy,
		 :action_required, :sampled_by, :sampled_at, :verified_by, :verified_at, :version)`,
		toSamplingRow(r))
	if isUniqueViolation(err) {
		return iqa.Record{}, core.ErrAlreadySampled
	}
	if err != nil {
		return iqa.Record{}, trapTimeout(err, "inserting sampling record")
	}
	return r, nil
}

func (repo *samplingRepository) GetRecord(ctx context.Context, id string) (iqa.Record, error) {
	if !validUUID(id) {
		return iqa.Record{}, core.NewNotFoundError("sampling record", id)
	}
	var row samplingRow
	if err := sqlx.GetContext(ctx, repo.db, &row, `SELECT `+samplingColumns+` FROM sampling_record WHERE id = $1`, id); err != nil {
		return iqa.Record{}, trapNoRowsErr(err, "sampling record", id, "finding sampling record")
	}
	return row.record(), nil
}

func (repo *samplingRepository) QueryRecords(ctx context.Context, filter iqa.QueryFilter) ([]iqa.Record, error) {
	var w where
	if filter.Status != "" {
		w.add("verification_status = %s", string(filter.Status))
	}
	if filter.AssessorID != "" {
		w.add("assessor_id = %s", filter.AssessorID)
	}
	if filter.SubmissionID != "" {
		if !validUUID(filter.SubmissionID) {
			return []iqa.Record{}, nil
		}
		w.add("submission_id = %s", filter.SubmissionID)
	}

	var rows []samplingRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows,
		`SELECT `+samplingColumns+` FROM sampling_record`+w.String()+` ORDER BY sampled_at`, w.args...); err != nil {
		return nil, trapTimeout(err, "querying sampling records")
	}
	recs := make([]iqa.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.record())
	}
	return recs, nil
}

func (repo *samplingRepository) UpdateRecord(ctx context.Context, r iqa.Record) (iqa.Record, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.db,
		`UPDATE sampling_record SET verification_status = :verification_status, notes = :notes,
		 feedback_quality = :feedback_quality, grading_accuracy = :grading_accuracy, action_required = :action_required,
		 verified_by = :verified_by, verified_at = :verified_at, version = version + 1
		 WHERE id = :id AND version = :version`,
		toSamplingRow(r))
	if err != nil {
		return iqa.Record{}, trapTimeout(err, "updating sampling record")
	}
	if err = checkAffected(res, "sampling record", r.ID); err != nil {
		return iqa.Record{}, err
	}
	r.Version++
	return r, nil
}
