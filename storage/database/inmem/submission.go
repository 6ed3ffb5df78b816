package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/submission"
)

type submissionRepository struct {
	db *submissionTable
}

var _ submission.Repository = (*submissionRepository)(nil)

func NewSubmissionRepository(db *DB) *submissionRepository {
	return &submissionRepository{db: db.submission}
}

func cloneSubmission(s submission.Submission) submission.Submission {
	s.ItemIDs = cloneStrings(s.ItemIDs)
	return s
}

func (repo *submissionRepository) CreateSubmission(_ context.Context, s submission.Submission) (submission.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s.ID = uuid.New().String()
	s.Version = 1
	repo.db.table[s.ID] = cloneSubmission(s)
	return s, nil
}

func (repo *submissionRepository) GetSubmission(_ context.Context, id string) (submission.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.table[id]; ok {
		return cloneSubmission(s), nil
	}
	return submission.Submission{}, core.NewNotFoundError("submission", id)
}

func (repo *submissionRepository) QuerySubmissions(_ context.Context, filter submission.QueryFilter) ([]submission.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subs := make([]submission.Submission, 0)
	for _, s := range repo.db.table {
		if filter.StudentID != "" && s.StudentID != filter.StudentID {
			continue
		}
		if filter.QualificationID != "" && s.QualificationID != filter.QualificationID {
			continue
		}
		if filter.CategoryID != "" && s.CategoryID != filter.CategoryID {
			continue
		}
		if filter.ReviewerID != "" && s.ReviewerID != filter.ReviewerID {
			continue
		}
		if filter.ItemID != "" && !s.HasItem(filter.ItemID) {
			continue
		}
		if len(filter.Statuses) > 0 && !hasSubmissionStatus(filter.Statuses, s.Status) {
			continue
		}
		subs = append(subs, cloneSubmission(s))
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs, nil
}

func (repo *submissionRepository) UpdateSubmission(_ context.Context, s submission.Submission) (submission.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[s.ID]
	if !ok {
		return submission.Submission{}, core.NewNotFoundError("submission", s.ID)
	}
	if orig.Version != s.Version {
		return submission.Submission{}, core.NewConflictError("submission", s.ID, "modified concurrently")
	}
	s.Version++
	repo.db.table[s.ID] = cloneSubmission(s)
	return s, nil
}

func hasSubmissionStatus(statuses []submission.Status, s submission.Status) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}
