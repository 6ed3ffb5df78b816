package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/iqa"
)

type samplingRepository struct {
	db *samplingTable
}

var _ iqa.Repository = (*samplingRepository)(nil)

func NewSamplingRepository(db *DB) *samplingRepository {
	return &samplingRepository{db: db.sampling}
}

func (repo *samplingRepository) CreateRecord(_ context.Context, rec iqa.Record) (iqa.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, r := range repo.db.table {
		if r.SubmissionID == rec.SubmissionID {
			return iqa.Record{}, core.ErrAlreadySampled
		}
	}
	rec.ID = uuid.New().String()
	rec.Version = 1
	repo.db.table[rec.ID] = rec
	return rec, nil
}

func (repo *samplingRepository) GetRecord(_ context.Context, id string) (iqa.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.table[id]; ok {
		return rec, nil
	}
	return iqa.Record{}, core.NewNotFoundError("sampling record", id)
}

func (repo *samplingRepository) QueryRecords(_ context.Context, filter iqa.QueryFilter) ([]iqa.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	recs := make([]iqa.Record, 0)
	for _, rec := range repo.db.table {
		if filter.Status != "" && rec.VerificationStatus != filter.Status {
			continue
		}
		if filter.AssessorID != "" && rec.AssessorID != filter.AssessorID {
			continue
		}
		if filter.SubmissionID != "" && rec.SubmissionID != filter.SubmissionID {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].SampledAt.Before(recs[j].SampledAt) })
	return recs, nil
}

func (repo *samplingRepository) UpdateRecord(_ context.Context, rec iqa.Record) (iqa.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[rec.ID]
	if !ok {
		return iqa.Record{}, core.NewNotFoundError("sampling record", rec.ID)
	}
	if orig.Version != rec.Version {
		return iqa.Record{}, core.NewConflictError("sampling record", rec.ID, "modified concurrently")
	}
	rec.Version++
	repo.db.table[rec.ID] = rec
	return rec, nil
}
