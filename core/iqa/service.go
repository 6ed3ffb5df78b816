package iqa

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/submission"
)

type (
	Repository interface {
		// CreateRecord returns core.ErrAlreadySampled if the submission already has a record.
		CreateRecord(ctx context.Context, rec Record) (Record, error)
		GetRecord(ctx context.Context, id string) (Record, error)
		QueryRecords(ctx context.Context, filter QueryFilter) ([]Record, error)
		// UpdateRecord saves the record if its stored version still equals rec.Version,
		// returns a core.ConflictError otherwise.
		UpdateRecord(ctx context.Context, rec Record) (Record, error)
	}

	SubmissionReader interface {
		Get(ctx context.Context, id string) (submission.Submission, error)
		Query(ctx context.Context, filter submission.QueryFilter) ([]submission.Submission, error)
	}

	Service struct {
		repo         Repository
		submissions  SubmissionReader
		events       core.EventPublisher
		validate     *validator.Validate
		storeTimeout time.Duration
	}
)

func NewService(repo Repository, subs SubmissionReader, events core.EventPublisher, validate *validator.Validate, conf *core.Config) *Service {
	return &Service{
		repo:         repo,
		submissions:  subs,
		events:       events,
		validate:     validate,
		storeTimeout: conf.StoreTimeout,
	}
}

func canSample(actor core.Actor) bool {
	return actor.HasRole(core.RoleIQA, core.RoleAdmin)
}

// assessorOf returns who graded the submission.
func assessorOf(sub submission.Submission) string {
	if sub.ReviewerID != "" {
		return sub.ReviewerID
	}
	return sub.SignedOffBy
}

// Candidates lists signed off submissions not sampled yet, round-robin by assessor:
// assessors with the fewest samples first (then by ID), each one's oldest sign-off first.
func (svc *Service) Candidates(ctx context.Context, filter CandidateFilter) ([]Candidate, error) {
	subs, err := svc.submissions.Query(ctx, submission.QueryFilter{
		QualificationID: filter.QualificationID,
		Statuses:        []submission.Status{submission.StatusSignedOff},
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	records, err := svc.repo.QueryRecords(ctx, QueryFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "querying sampling records")
	}

	sampled := make(map[string]bool, len(records))
	samples := make(map[string]int)
	for _, rec := range records {
		sampled[rec.SubmissionID] = true
		samples[rec.AssessorID]++
	}

	queues := make(map[string][]Candidate)
	for _, sub := range subs {
		if sampled[sub.ID] {
			continue
		}
		assessor := assessorOf(sub)
		if filter.AssessorID != "" && assessor != filter.AssessorID {
			continue
		}
		c := Candidate{
			SubmissionID:    sub.ID,
			StudentID:       sub.StudentID,
			QualificationID: sub.QualificationID,
			CategoryID:      sub.CategoryID,
			AssessorID:      assessor,
			Grade:           sub.Grade,
			AssessorSamples: samples[assessor],
		}
		if sub.SignedOffAt != nil {
			c.SignedOffAt = *sub.SignedOffAt
		}
		queues[assessor] = append(queues[assessor], c)
	}

	assessors := make([]string, 0, len(queues))
	for a, q := range queues {
		assessors = append(assessors, a)
		sort.Slice(q, func(i, j int) bool {
			if !q[i].SignedOffAt.Equal(q[j].SignedOffAt) {
				return q[i].SignedOffAt.Before(q[j].SignedOffAt)
			}
			return q[i].SubmissionID < q[j].SubmissionID
		})
	}
	sort.Slice(assessors, func(i, j int) bool {
		if samples[assessors[i]] != samples[assessors[j]] {
			return samples[assessors[i]] < samples[assessors[j]]
		}
		return assessors[i] < assessors[j]
	})

	var out []Candidate
	for round := 0; ; round++ {
		added := false
		for _, a := range assessors {
			if round < len(queues[a]) {
				out = append(out, queues[a][round])
				added = true
			}
		}
		if !added {
			break
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Sample pulls a signed off submission into the IQA pool. A submission is sampled at most once.
func (svc *Service) Sample(ctx context.Context, actor core.Actor, submissionID string) (Record, error) {
	if !canSample(actor) {
		return Record{}, core.ErrForbidden
	}
	sub, err := svc.submissions.Get(ctx, submissionID)
	if err != nil {
		return Record{}, err
	}
	if sub.Status != submission.StatusSignedOff {
		return Record{}, core.NewStateTransitionError("submission", string(sub.Status), "sample")
	}

	existing, err := svc.repo.QueryRecords(ctx, QueryFilter{SubmissionID: submissionID})
	if err != nil {
		return Record{}, errors.Wrap(err, "querying sampling records")
	}
	if len(existing) > 0 {
		return Record{}, core.ErrAlreadySampled
	}

	rec := Record{
		SubmissionID:       sub.ID,
		AssessorID:         assessorOf(sub),
		StudentID:          sub.StudentID,
		QualificationID:    sub.QualificationID,
		CategoryID:         sub.CategoryID,
		Grade:              sub.Grade,
		VerificationStatus: StatusPending,
		SampledBy:          actor.ID,
		SampledAt:          core.NowFunc(),
	}
	// The idempotency key is the submission id: if a create timed out but landed, the retry
	// finds this sampler's record and returns it.
	attempt := 0
	err = core.RetryOnce(ctx, "sampling record", submissionID, func(ctx context.Context) error {
		attempt++
		ctx, cancel := core.WithStoreTimeout(ctx, svc.storeTimeout)
		defer cancel()

		created, err := svc.repo.CreateRecord(ctx, rec)
		if attempt > 1 && err == core.ErrAlreadySampled {
			landed, qerr := svc.repo.QueryRecords(ctx, QueryFilter{SubmissionID: submissionID})
			if qerr != nil {
				return qerr
			}
			if len(landed) == 1 && landed[0].SampledBy == actor.ID {
				created, err = landed[0], nil
			}
		}
		if err != nil {
			return err
		}
		rec = created
		return nil
	})
	if err != nil {
		return Record{}, err
	}

	svc.events.Publish(ctx, core.Event{
		Type:            core.EventSamplingCreated,
		StudentID:       rec.StudentID,
		QualificationID: rec.QualificationID,
		CategoryID:      rec.CategoryID,
		SubmissionID:    rec.SubmissionID,
		RecordID:        rec.ID,
		ActorID:         actor.ID,
		To:              string(rec.VerificationStatus),
		At:              rec.SampledAt,
	})
	return rec, nil
}

// CompleteVerification closes a pending record. Raising concerns requires the action to take.
func (svc *Service) CompleteVerification(ctx context.Context, actor core.Actor, recordID string, v Verification) (Record, error) {
	if !canSample(actor) {
		return Record{}, core.ErrForbidden
	}
	v.Clean()
	if err := svc.validate.Struct(v); err != nil {
		return Record{}, err
	}

	var (
		saved   Record
		attempt int
	)
	err := core.RetryOnce(ctx, "sampling record", recordID, func(ctx context.Context) error {
		attempt++
		ctx, cancel := core.WithStoreTimeout(ctx, svc.storeTimeout)
		defer cancel()

		rec, err := svc.repo.GetRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if attempt > 1 && v.matches(rec, actor.ID) {
			saved = rec
			return nil
		}
		if !rec.IsPending() {
			return core.ErrAlreadyVerified
		}
		now := core.NowFunc()
		rec.VerificationStatus = v.Status
		rec.Notes = v.Notes
		rec.FeedbackQuality = v.FeedbackQuality
		rec.GradingAccuracy = v.GradingAccuracy
		rec.ActionRequired = v.ActionRequired
		rec.VerifiedBy = actor.ID
		rec.VerifiedAt = &now
		saved, err = svc.repo.UpdateRecord(ctx, rec)
		return err
	})
	if err != nil {
		return Record{}, err
	}
	return saved, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Record, error) {
	return svc.repo.GetRecord(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Record, error) {
	return svc.repo.QueryRecords(ctx, filter)
}

// Stats reports the sample rate overall and per assessor.
func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	subs, err := svc.submissions.Query(ctx, submission.QueryFilter{Statuses: []submission.Status{submission.StatusSignedOff}})
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying submissions")
	}
	records, err := svc.repo.QueryRecords(ctx, QueryFilter{})
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying sampling records")
	}

	per := make(map[string]*AssessorStats)
	get := func(id string) *AssessorStats {
		if per[id] == nil {
			per[id] = &AssessorStats{AssessorID: id}
		}
		return per[id]
	}

	st := Stats{SignedOff: len(subs), Sampled: len(records)}
	for _, sub := range subs {
		get(assessorOf(sub)).SignedOff++
	}
	for _, rec := range records {
		as := get(rec.AssessorID)
		as.Sampled++
		switch rec.VerificationStatus {
		case StatusPending:
			as.Pending++
			st.Pending++
		case StatusVerified:
			st.Verified++
		case StatusConcernsRaised:
			as.ConcernsRaised++
			st.ConcernsRaised++
		}
	}
	st.SampleRate = rate(st.Sampled, st.SignedOff)

	for _, as := range per {
		as.SampleRate = rate(as.Sampled, as.SignedOff)
		st.Assessors = append(st.Assessors, *as)
	}
	sort.Slice(st.Assessors, func(i, j int) bool { return st.Assessors[i].AssessorID < st.Assessors[j].AssessorID })
	return st, nil
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
