package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/gateway"
)

const gatewayColumns = `student_id, qualification_id, checklist, ojt_hours_completed, ojt_hours_required,
	epa_booked_date, version, updated_at`

type gatewayRow struct {
	StudentID         string         `db:"student_id"`
	QualificationID   string         `db:"qualification_id"`
	Checklist         types.JSONText `db:"checklist"`
	OJTHoursCompleted float64        `db:"ojt_hours_completed"`
	OJTHoursRequired  float64        `db:"ojt_hours_required"`
	EPABookedDate     null.Time      `db:"epa_booked_date"`
	Version           int            `db:"version"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

type gatewayRepository struct {
	db sqlx.ExtContext
}

var _ gateway.Repository = (*gatewayRepository)(nil)

func NewGatewayRepository(db sqlx.ExtContext) *gatewayRepository {
	return &gatewayRepository{db: db}
}

func (repo *gatewayRepository) GetRecord(ctx context.Context, studentID, qualificationID string) (gateway.Record, error) {
	var row gatewayRow
	if err := sqlx.GetContext(ctx, repo.db, &row,
		`SELECT `+gatewayColumns+` FROM gateway_record WHERE student_id = $1 AND qualification_id = $2`,
		studentID, qualificationID); err != nil {
		return gateway.Record{}, trapNoRowsErr(err, "gateway record", studentID+"/"+qualificationID, "finding gateway record")
	}

	rec := gateway.Record{
		StudentID:         row.StudentID,
		QualificationID:   row.QualificationID,
		OJTHoursCompleted: row.OJTHoursCompleted,
		OJTHoursRequired:  row.OJTHoursRequired,
		EPABookedDate:     row.EPABookedDate.Ptr(),
		Version:           row.Version,
		UpdatedAt:         row.UpdatedAt,
	}
	if err := row.Checklist.Unmarshal(&rec.Checklist); err != nil {
		return gateway.Record{}, errors.Wrap(err, "decoding checklist")
	}
	return rec, nil
}

func (repo *gatewayRepository) SaveRecord(ctx context.Context, rec gateway.Record) (gateway.Record, error) {
	checklist, err := json.Marshal(rec.Checklist)
	if err != nil {
		return gateway.Record{}, errors.Wrap(err, "encoding checklist")
	}
	row := gatewayRow{
		StudentID:         rec.StudentID,
		QualificationID:   rec.QualificationID,
		Checklist:         checklist,
		OJTHoursCompleted: rec.OJTHoursCompleted,
		OJTHoursRequired:  rec.OJTHoursRequired,
		EPABookedDate:     null.TimeFromPtr(rec.EPABookedDate),
		Version:           rec.Version,
		UpdatedAt:         rec.UpdatedAt.UTC(),
	}
	key := rec.StudentID + "/" + rec.QualificationID

	if rec.Version == 0 {
		row.Version = 1
		_, err = sqlx.NamedExecContext(ctx, repo.db,
			`INSERT INTO gateway_record (`+gatewayColumns+`) VALUES (:student_id, :qualification_id, :checklist,
			 :ojt_hours_completed, :ojt_hours_required, :epa_booked_date, :version, :updated_at)`,
			row)
		if isUniqueViolation(err) {
			return gateway.Record{}, core.NewConflictError("gateway record", key, "created concurrently")
		}
		if err != nil {
			return gateway.Record{}, trapTimeout(err, "inserting gateway record")
		}
		rec.Version = 1
		return rec, nil
	}

	res, err := sqlx.NamedExecContext(ctx, repo.db,
		`UPDATE gateway_record SET checklist = :checklist, ojt_hours_completed = :ojt_hours_completed,
		 ojt_hours_required = :ojt_hours_required, epa_booked_date = :epa_booked_date, version = version + 1,
		 updated_at = :updated_at
		 WHERE student_id = :student_id AND qualification_id = :qualification_id AND version = :version`,
		row)
	if err != nil {
		return gateway.Record{}, trapTimeout(err, "updating gateway record")
	}
	if err = checkAffected(res, "gateway record", key); err != nil {
		return gateway.Record{}, err
	}
	rec.Version++
	return rec, nil
}
