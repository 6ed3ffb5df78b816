package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/requirement"
)

type requirementRepository struct {
	db *requirementTable
}

var _ requirement.Repository = (*requirementRepository)(nil)

func NewRequirementRepository(db *DB) *requirementRepository {
	return &requirementRepository{db: db.requirement}
}

func cloneRequirement(r requirement.Requirement) requirement.Requirement {
	r.EvidenceTypes = cloneStrings(r.EvidenceTypes)
	return r
}

func (repo *requirementRepository) CreateRequirement(_ context.Context, r requirement.Requirement) (requirement.Requirement, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	r.ID = uuid.New().String()
	repo.db.table[r.ID] = cloneRequirement(r)
	return r, nil
}

func (repo *requirementRepository) GetRequirement(_ context.Context, id string) (requirement.Requirement, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.table[id]; ok {
		return cloneRequirement(r), nil
	}
	return requirement.Requirement{}, core.NewNotFoundError("requirement", id)
}

func (repo *requirementRepository) QueryRequirements(_ context.Context, filter requirement.QueryFilter) ([]requirement.Requirement, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	reqs := make([]requirement.Requirement, 0)
	for _, r := range repo.db.table {
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		if filter.QualificationID != "" && r.QualificationID != filter.QualificationID {
			continue
		}
		if filter.CategoryID != "" && r.CategoryID != filter.CategoryID {
			continue
		}
		if len(filter.Statuses) > 0 && !hasRequirementStatus(filter.Statuses, r.Status) {
			continue
		}
		reqs = append(reqs, cloneRequirement(r))
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.Before(reqs[j].CreatedAt) })
	return reqs, nil
}

func (repo *requirementRepository) UpdateRequirement(_ context.Context, r requirement.Requirement) (requirement.Requirement, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[r.ID]
	if !ok {
		return requirement.Requirement{}, core.NewNotFoundError("requirement", r.ID)
	}
	// the flag is owned by MarkContributed and never goes back
	r.Contributed = r.Contributed || orig.Contributed
	repo.db.table[r.ID] = cloneRequirement(r)
	return r, nil
}

func (repo *requirementRepository) MarkContributed(_ context.Context, ids []string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		if r, ok := repo.db.table[id]; ok {
			r.Contributed = true
			repo.db.table[id] = r
		}
	}
	return nil
}

func (repo *requirementRepository) DeleteRequirement(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	r, ok := repo.db.table[id]
	if !ok {
		return core.NewNotFoundError("requirement", id)
	}
	if r.Contributed {
		return core.NewConflictError("requirement", id, "contributed to a complete coverage entry")
	}
	delete(repo.db.table, id)
	return nil
}

func hasRequirementStatus(statuses []requirement.Status, s requirement.Status) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}
