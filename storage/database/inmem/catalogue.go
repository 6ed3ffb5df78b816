package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/catalogue"
)

type catalogueRepository struct {
	db *qualificationTable
}

var _ catalogue.Repository = (*catalogueRepository)(nil)

func NewCatalogueRepository(db *DB) *catalogueRepository {
	return &catalogueRepository{db: db.qualification}
}

func cloneQualification(q catalogue.Qualification) catalogue.Qualification {
	cats := make([]catalogue.Category, len(q.Categories))
	for i, cat := range q.Categories {
		cat.Criteria = append([]catalogue.Criterion(nil), cat.Criteria...)
		reqs := make([]catalogue.Requirement, len(cat.Requirements))
		for j, r := range cat.Requirements {
			r.EvidenceTypes = cloneStrings(r.EvidenceTypes)
			reqs[j] = r
		}
		cat.Requirements = reqs
		cats[i] = cat
	}
	q.Categories = cats
	return q
}

func (repo *catalogueRepository) SaveQualification(_ context.Context, q catalogue.Qualification) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.table[q.ID] = cloneQualification(q)
	return nil
}

func (repo *catalogueRepository) GetQualification(_ context.Context, id string) (catalogue.Qualification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if q, ok := repo.db.table[id]; ok {
		return cloneQualification(q), nil
	}
	return catalogue.Qualification{}, core.NewNotFoundError("qualification", id)
}

func (repo *catalogueRepository) ListQualifications(_ context.Context) ([]catalogue.Qualification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	quals := make([]catalogue.Qualification, 0, len(repo.db.table))
	for _, q := range repo.db.table {
		quals = append(quals, cloneQualification(q))
	}
	sort.Slice(quals, func(i, j int) bool { return quals[i].Code < quals[j].Code })
	return quals, nil
}
