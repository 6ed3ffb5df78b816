package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/evidence"
)

type evidenceRepository struct {
	db *itemTable
}

var _ evidence.Repository = (*evidenceRepository)(nil)

func NewEvidenceRepository(db *DB) *evidenceRepository {
	return &evidenceRepository{db: db.item}
}

func cloneItem(it evidence.Item) evidence.Item {
	if it.Files != nil {
		it.Files = append([]evidence.File(nil), it.Files...)
	}
	if it.Links != nil {
		it.Links = append([]evidence.CriterionLink(nil), it.Links...)
	}
	return it
}

func (repo *evidenceRepository) CreateItem(_ context.Context, it evidence.Item) (evidence.Item, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	it.ID = uuid.New().String()
	it.Version = 1
	repo.db.table[it.ID] = cloneItem(it)
	return it, nil
}

func (repo *evidenceRepository) GetItem(_ context.Context, id string) (evidence.Item, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if it, ok := repo.db.table[id]; ok {
		return cloneItem(it), nil
	}
	return evidence.Item{}, core.NewNotFoundError("evidence", id)
}

func (repo *evidenceRepository) QueryItems(_ context.Context, filter evidence.QueryFilter) ([]evidence.Item, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	items := make([]evidence.Item, 0)
	for _, it := range repo.db.table {
		if filter.StudentID != "" && it.StudentID != filter.StudentID {
			continue
		}
		if filter.QualificationID != "" && it.QualificationID != filter.QualificationID {
			continue
		}
		if filter.CategoryID != "" && it.CategoryID != filter.CategoryID {
			continue
		}
		if len(filter.IDs) > 0 && !core.ContainsString(filter.IDs, it.ID) {
			continue
		}
		if !filter.IncludeWithdrawn && !it.IsActive() {
			continue
		}
		items = append(items, cloneItem(it))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (repo *evidenceRepository) UpdateItem(_ context.Context, it evidence.Item) (evidence.Item, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[it.ID]
	if !ok {
		return evidence.Item{}, core.NewNotFoundError("evidence", it.ID)
	}
	if orig.Version != it.Version {
		return evidence.Item{}, core.NewConflictError("evidence", it.ID, "modified concurrently")
	}
	it.Version++
	repo.db.table[it.ID] = cloneItem(it)
	return it, nil
}
