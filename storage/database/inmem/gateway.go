package inmemdb

import (
	"context"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/gateway"
)

type gatewayRepository struct {
	db *gatewayTable
}

var _ gateway.Repository = (*gatewayRepository)(nil)

func NewGatewayRepository(db *DB) *gatewayRepository {
	return &gatewayRepository{db: db.gateway}
}

func gatewayKey(studentID, qualificationID string) string {
	return studentID + "/" + qualificationID
}

func cloneRecord(rec gateway.Record) gateway.Record {
	checklist := make(map[string]gateway.ChecklistItem, len(rec.Checklist))
	for k, v := range rec.Checklist {
		checklist[k] = v
	}
	rec.Checklist = checklist
	return rec
}

func (repo *gatewayRepository) GetRecord(_ context.Context, studentID, qualificationID string) (gateway.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	key := gatewayKey(studentID, qualificationID)
	if rec, ok := repo.db.table[key]; ok {
		return cloneRecord(rec), nil
	}
	return gateway.Record{}, core.NewNotFoundError("gateway record", key)
}

func (repo *gatewayRepository) SaveRecord(_ context.Context, rec gateway.Record) (gateway.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := gatewayKey(rec.StudentID, rec.QualificationID)
	orig, exists := repo.db.table[key]
	switch {
	case rec.Version == 0 && exists, rec.Version != 0 && (!exists || orig.Version != rec.Version):
		return gateway.Record{}, core.NewConflictError("gateway record", key, "modified concurrently")
	}
	rec.Version++
	repo.db.table[key] = cloneRecord(rec)
	return rec, nil
}
