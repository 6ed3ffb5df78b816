package coverage

import (
	"context"
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/catalogue"
	"github.com/trezcool/evidencehub/core/evidence"
	"github.com/trezcool/evidencehub/core/requirement"
	"github.com/trezcool/evidencehub/core/submission"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evidencehub_coverage_cache_hits_total",
		Help: "Number of coverage reads served from the cache.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evidencehub_coverage_cache_misses_total",
		Help: "Number of coverage reads that had to be recomputed.",
	})
)

type (
	QualificationLookup interface {
		GetQualification(ctx context.Context, id string) (catalogue.Qualification, error)
	}

	ItemQuerier interface {
		Query(ctx context.Context, filter evidence.QueryFilter) ([]evidence.Item, error)
	}

	SubmissionQuerier interface {
		Query(ctx context.Context, filter submission.QueryFilter) ([]submission.Submission, error)
	}

	RequirementStore interface {
		Query(ctx context.Context, filter requirement.QueryFilter) ([]requirement.Requirement, error)
		MarkContributed(ctx context.Context, ids []string) error
	}

	// Service computes coverage on read and caches it per (student, qualification).
	// Cached entries are dropped synchronously by HandleEvent.
	Service struct {
		catalogue    QualificationLookup
		items        ItemQuerier
		submissions  SubmissionQuerier
		requirements RequirementStore
		logger       core.Logger
		cache        *expirable.LRU[string, []Entry]

		mu     sync.Mutex
		epochs map[string]uint64
	}
)

func NewService(
	cat QualificationLookup,
	items ItemQuerier,
	subs SubmissionQuerier,
	reqs RequirementStore,
	logger core.Logger,
	conf *core.Config,
) *Service {
	size := conf.Cache.Size
	if size <= 0 {
		size = 1
	}
	return &Service{
		catalogue:    cat,
		items:        items,
		submissions:  subs,
		requirements: reqs,
		logger:       logger,
		cache:        expirable.NewLRU[string, []Entry](size, nil, conf.Cache.TTL),
		epochs:       make(map[string]uint64),
	}
}

func cacheKey(studentID, qualificationID string) string {
	return studentID + "/" + qualificationID
}

// Coverage returns one entry per category of the qualification, in catalogue order.
func (svc *Service) Coverage(ctx context.Context, studentID, qualificationID string) ([]Entry, error) {
	key := cacheKey(studentID, qualificationID)
	if entries, ok := svc.cache.Get(key); ok {
		cacheHitsTotal.Inc()
		return entries, nil
	}
	cacheMissesTotal.Inc()

	epoch := svc.epoch(key)
	entries, err := svc.compute(ctx, studentID, qualificationID)
	if err != nil {
		return nil, err
	}

	// an invalidation that raced with compute means entries may already be stale
	svc.mu.Lock()
	if svc.epochs[key] == epoch {
		svc.cache.Add(key, entries)
	}
	svc.mu.Unlock()
	return entries, nil
}

// Category returns the coverage entry of a single category.
func (svc *Service) Category(ctx context.Context, studentID, qualificationID, categoryID string) (Entry, error) {
	entries, err := svc.Coverage(ctx, studentID, qualificationID)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.CategoryID == categoryID {
			return e, nil
		}
	}
	return Entry{}, core.NewNotFoundError("category", categoryID)
}

// Invalidate drops the cached coverage of a student for a qualification.
func (svc *Service) Invalidate(studentID, qualificationID string) {
	key := cacheKey(studentID, qualificationID)
	svc.mu.Lock()
	svc.epochs[key]++
	svc.cache.Remove(key)
	svc.mu.Unlock()
}

// HandleEvent invalidates the cache on every change coverage depends on.
func (svc *Service) HandleEvent(_ context.Context, evt core.Event) {
	switch evt.Type {
	case core.EventSubmissionTransitioned,
		core.EventCriterionLinkChanged,
		core.EventEvidenceChanged,
		core.EventRequirementChanged:
		svc.Invalidate(evt.StudentID, evt.QualificationID)
	}
}

func (svc *Service) epoch(key string) uint64 {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.epochs[key]
}

func (svc *Service) compute(ctx context.Context, studentID, qualificationID string) ([]Entry, error) {
	qual, err := svc.catalogue.GetQualification(ctx, qualificationID)
	if err != nil {
		return nil, err
	}
	items, err := svc.items.Query(ctx, evidence.QueryFilter{StudentID: studentID, QualificationID: qualificationID})
	if err != nil {
		return nil, errors.Wrap(err, "querying evidence")
	}
	subs, err := svc.submissions.Query(ctx, submission.QueryFilter{StudentID: studentID, QualificationID: qualificationID})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	reqs, err := svc.requirements.Query(ctx, requirement.QueryFilter{
		StudentID:       studentID,
		QualificationID: qualificationID,
		Statuses:        []requirement.Status{requirement.StatusActive, requirement.StatusCompleted},
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying requirements")
	}

	entries := make([]Entry, 0, len(qual.Categories))
	var contributed []string
	for _, cat := range qual.Categories {
		in := Input{
			Category:     cat,
			Requirements: append([]catalogue.Requirement{}, cat.Requirements...),
			Items:        items,
			Submissions:  subs,
		}
		var tutorReqs []string
		for _, r := range reqs {
			if r.CategoryID == cat.ID {
				in.Requirements = append(in.Requirements, r.AsCatalogue())
				if !r.Contributed {
					tutorReqs = append(tutorReqs, r.ID)
				}
			}
		}

		entry := Aggregate(in)
		if entry.Status == StatusComplete {
			contributed = append(contributed, tutorReqs...)
		}
		entries = append(entries, entry)
	}

	if len(contributed) > 0 {
		if err = svc.requirements.MarkContributed(ctx, contributed); err != nil {
			return nil, errors.Wrap(err, "marking requirements as contributed")
		}
	}
	return entries, nil
}
