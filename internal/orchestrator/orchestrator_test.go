package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvillareal/intake-scheduler/internal/dates"
	"github.com/mvillareal/intake-scheduler/internal/ledger"
	"github.com/mvillareal/intake-scheduler/internal/lock"
	"github.com/mvillareal/intake-scheduler/internal/registry"
	"github.com/mvillareal/intake-scheduler/internal/requests"
	"github.com/mvillareal/intake-scheduler/internal/state"
)

type fakeLocker struct {
	mu       sync.Mutex
	busy     bool
	acquires int
	releases int
}

func (f *fakeLocker) Acquire(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return lock.ErrBusy
	}
	f.acquires++
	return nil
}

func (f *fakeLocker) Release(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
}

type fakeLedger struct {
	seedErr      error
	decrementErr error
	lefts        []int
	seeds        int
	decrements   int
	reverts      int
	availability map[string]int
}

func (f *fakeLedger) SeedWindow(context.Context, dates.Date, int) error {
	f.seeds++
	return f.seedErr
}

func (f *fakeLedger) WindowAvailability(context.Context, dates.Date, dates.Date) (map[string]int, error) {
	return f.availability, nil
}

func (f *fakeLedger) DecrementAllCategories(context.Context, dates.Date) ([]int, error) {
	f.decrements++
	if f.decrementErr != nil {
		return nil, f.decrementErr
	}
	return f.lefts, nil
}

func (f *fakeLedger) Revert(context.Context, dates.Date) error {
	f.reverts++
	return nil
}

type fakeSyncer struct {
	purges       int
	ranges       int
	holidayRuns  int
	dateSyncs    int
	syncDateErr  error
	syncRangeErr error
}

func (f *fakeSyncer) PurgeInvalid(context.Context) error { f.purges++; return nil }
func (f *fakeSyncer) SyncRange(context.Context, dates.Date, dates.Date) error {
	f.ranges++
	return f.syncRangeErr
}
func (f *fakeSyncer) SyncHolidayMarkers(context.Context, dates.Date, dates.Date) error {
	f.holidayRuns++
	return nil
}
func (f *fakeSyncer) SyncDate(context.Context, dates.Date) error {
	f.dateSyncs++
	return f.syncDateErr
}

type fakeRequestStore struct {
	insertErr error
	inserted  []requests.Request
	deleted   []uuid.UUID
	pruned    []string
	count     int64
}

func (f *fakeRequestStore) Insert(_ context.Context, req requests.Request) (requests.Request, error) {
	if f.insertErr != nil {
		return requests.Request{}, f.insertErr
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	f.inserted = append(f.inserted, req)
	return req, nil
}

func (f *fakeRequestStore) DeleteByID(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRequestStore) DeleteOlderThan(_ context.Context, categoryID string, _ time.Time) (int64, error) {
	f.pruned = append(f.pruned, categoryID)
	return 0, nil
}

func (f *fakeRequestStore) Count(context.Context) (int64, error) { return f.count, nil }

type recordingAlerter struct {
	mu      sync.Mutex
	classes []string
}

func (r *recordingAlerter) AlertError(_ context.Context, class string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes = append(r.classes, class)
}

type fakePublisher struct {
	published [][]string
}

func (f *fakePublisher) ReplaceAll(_ context.Context, labels []string) error {
	f.published = append(f.published, labels)
	return nil
}

var testNow = time.Date(2026, time.August, 28, 10, 0, 0, 0, time.UTC) // Friday

func testValidator() *dates.Validator {
	return dates.NewValidator(time.UTC, 60, nil).WithNow(func() time.Time { return testNow })
}

func testStateStore(t *testing.T) *state.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return state.NewStore(client)
}

func day(s string) dates.Date {
	d, err := dates.Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNightlyRunsFullSequence(t *testing.T) {
	locker := &fakeLocker{}
	lgr := &fakeLedger{availability: map[string]int{"2026-09-01": 5}}
	syncer := &fakeSyncer{}
	pub := &fakePublisher{}
	states := testStateStore(t)

	n := NewNightly(locker, lgr, syncer, pub, testValidator(), states, nil, nil, nil).
		WithNow(func() time.Time { return testNow })
	require.NoError(t, n.Run(context.Background()))

	assert.Equal(t, 1, locker.acquires)
	assert.Equal(t, 1, locker.releases)
	assert.Equal(t, 1, syncer.purges)
	assert.Equal(t, 1, lgr.seeds)
	assert.Equal(t, 1, syncer.ranges)
	assert.Equal(t, 1, syncer.holidayRuns)
	require.Len(t, pub.published, 1)
	assert.Contains(t, pub.published[0][0], "2026-09-01")

	last, err := states.LastSync(context.Background(), "nightly")
	require.NoError(t, err)
	assert.True(t, last.Equal(testNow))
}

func TestNightlySeedFailureAborts(t *testing.T) {
	locker := &fakeLocker{}
	lgr := &fakeLedger{seedErr: errors.New("db down")}
	syncer := &fakeSyncer{}
	alerter := &recordingAlerter{}

	n := NewNightly(locker, lgr, syncer, nil, testValidator(), nil, alerter, nil, nil)
	err := n.Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, 0, syncer.ranges)
	assert.Equal(t, 1, locker.releases)
	assert.Contains(t, alerter.classes, "nightly_seed")
}

func TestNightlySyncFailureIsNonFatal(t *testing.T) {
	locker := &fakeLocker{}
	lgr := &fakeLedger{availability: map[string]int{}}
	syncer := &fakeSyncer{syncRangeErr: errors.New("api down")}
	alerter := &recordingAlerter{}
	pub := &fakePublisher{}

	n := NewNightly(locker, lgr, syncer, pub, testValidator(), nil, alerter, nil, nil)
	require.NoError(t, n.Run(context.Background()))

	assert.Contains(t, alerter.classes, "nightly_sync")
	assert.Len(t, pub.published, 1) // later steps still ran
}

func TestNightlyPropagatesLockBusy(t *testing.T) {
	n := NewNightly(&fakeLocker{busy: true}, &fakeLedger{}, &fakeSyncer{}, nil, testValidator(), nil, nil, nil, nil)
	err := n.Run(context.Background())
	assert.ErrorIs(t, err, lock.ErrBusy)
}

func newIncremental(t *testing.T, locker *fakeLocker, lgr *fakeLedger, reqs *fakeRequestStore, syncer *fakeSyncer, states *state.Store, alerter Alerter) *Incremental {
	t.Helper()
	reg, err := registry.New(registry.DefaultCategories())
	require.NoError(t, err)
	return NewIncremental(locker, lgr, reqs, syncer, reg, testValidator(), states, alerter, nil, 30, nil).
		WithNow(func() time.Time { return testNow })
}

func sampleRequest() requests.Request {
	return requests.Request{
		CategoryID: "medical",
		LastName:   "Dela Cruz",
		FirstName:  "Juan",
		Purok:      "Purok 3",
		Barangay:   "Poblacion",
		Date:       day("2026-09-01"),
	}
}

func TestOnSubmissionBooksAndSyncs(t *testing.T) {
	locker := &fakeLocker{}
	lgr := &fakeLedger{lefts: []int{4, 2, 7}}
	reqs := &fakeRequestStore{}
	syncer := &fakeSyncer{}
	states := testStateStore(t)

	inc := newIncremental(t, locker, lgr, reqs, syncer, states, nil)
	lefts, err := inc.OnSubmission(context.Background(), sampleRequest())

	require.NoError(t, err)
	assert.Equal(t, []int{4, 2, 7}, lefts)
	assert.Equal(t, 1, lgr.decrements)
	require.Len(t, reqs.inserted, 1)
	assert.Equal(t, 1, syncer.dateSyncs)
	assert.Equal(t, []string{"medical"}, reqs.pruned)
	assert.Equal(t, 1, locker.releases)

	n, err := states.SubmissionCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOnSubmissionRejectsUnknownCategory(t *testing.T) {
	locker := &fakeLocker{}
	inc := newIncremental(t, locker, &fakeLedger{}, &fakeRequestStore{}, &fakeSyncer{}, nil, nil)

	req := sampleRequest()
	req.CategoryID = "livelihood"
	_, err := inc.OnSubmission(context.Background(), req)

	assert.ErrorIs(t, err, ErrUnknownCategory)
	assert.Equal(t, 0, locker.acquires)
}

func TestOnSubmissionPassesThroughLedgerSentinels(t *testing.T) {
	lgr := &fakeLedger{decrementErr: ledger.ErrNoSlots}
	inc := newIncremental(t, &fakeLocker{}, lgr, &fakeRequestStore{}, &fakeSyncer{}, nil, nil)

	_, err := inc.OnSubmission(context.Background(), sampleRequest())

	assert.ErrorIs(t, err, ledger.ErrNoSlots)
	assert.Equal(t, 0, lgr.reverts)
}

func TestOnSubmissionRevertsWhenInsertFails(t *testing.T) {
	lgr := &fakeLedger{lefts: []int{1, 1, 1}}
	reqs := &fakeRequestStore{insertErr: errors.New("db down")}
	syncer := &fakeSyncer{}

	inc := newIncremental(t, &fakeLocker{}, lgr, reqs, syncer, nil, nil)
	_, err := inc.OnSubmission(context.Background(), sampleRequest())

	require.Error(t, err)
	assert.Equal(t, 1, lgr.reverts)
	assert.Equal(t, 0, syncer.dateSyncs)
}

func TestOnSubmissionCompensatesWhenCalendarFails(t *testing.T) {
	lgr := &fakeLedger{lefts: []int{1, 1, 1}}
	reqs := &fakeRequestStore{}
	syncer := &fakeSyncer{syncDateErr: errors.New("calendar api hard failure")}
	alerter := &recordingAlerter{}

	inc := newIncremental(t, &fakeLocker{}, lgr, reqs, syncer, nil, alerter)
	_, err := inc.OnSubmission(context.Background(), sampleRequest())

	require.Error(t, err)
	assert.Equal(t, 1, lgr.reverts)
	require.Len(t, reqs.deleted, 1)
	assert.Equal(t, reqs.inserted[0].ID, reqs.deleted[0])
	assert.Contains(t, alerter.classes, "incremental_sync")
}

func TestOnSubmissionBusyLock(t *testing.T) {
	inc := newIncremental(t, &fakeLocker{busy: true}, &fakeLedger{}, &fakeRequestStore{}, &fakeSyncer{}, nil, nil)
	_, err := inc.OnSubmission(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, lock.ErrBusy)
}

func newIntegrity(t *testing.T, locker *fakeLocker, syncer *fakeSyncer, reqs *fakeRequestStore, states *state.Store) *Integrity {
	t.Helper()
	return NewIntegrity(locker, syncer, reqs, testValidator(), states, nil, nil, time.Hour, nil).
		WithNow(func() time.Time { return testNow })
}

func TestIntegrityReconcilesWhenCountChanged(t *testing.T) {
	locker := &fakeLocker{}
	syncer := &fakeSyncer{}
	reqs := &fakeRequestStore{count: 7}
	states := testStateStore(t)

	g := newIntegrity(t, locker, syncer, reqs, states)
	require.NoError(t, g.Run(context.Background()))

	assert.Equal(t, 1, syncer.purges)
	assert.Equal(t, 1, syncer.ranges)
	assert.Equal(t, 1, syncer.holidayRuns)
	assert.Equal(t, 1, locker.releases)

	seen, err := states.LastSeenCount(context.Background(), "integrity")
	require.NoError(t, err)
	assert.Equal(t, int64(7), seen)
}

func TestIntegrityShortCircuitsOnUnchangedCount(t *testing.T) {
	locker := &fakeLocker{}
	syncer := &fakeSyncer{}
	reqs := &fakeRequestStore{count: 7}
	states := testStateStore(t)
	require.NoError(t, states.MarkSeenCount(context.Background(), "integrity", 7))

	g := newIntegrity(t, locker, syncer, reqs, states)
	require.NoError(t, g.Run(context.Background()))

	assert.Equal(t, 0, locker.acquires)
	assert.Equal(t, 0, syncer.ranges)
}

func TestIntegrityThrottledByInterval(t *testing.T) {
	locker := &fakeLocker{}
	syncer := &fakeSyncer{}
	states := testStateStore(t)
	require.NoError(t, states.MarkSync(context.Background(), "integrity", testNow.Add(-10*time.Minute)))

	g := newIntegrity(t, locker, syncer, &fakeRequestStore{count: 3}, states)
	require.NoError(t, g.Run(context.Background()))

	assert.Equal(t, 0, locker.acquires)
}

func TestIntegrityBusyLockIsSoft(t *testing.T) {
	states := testStateStore(t)
	g := newIntegrity(t, &fakeLocker{busy: true}, &fakeSyncer{}, &fakeRequestStore{count: 3}, states)
	assert.NoError(t, g.Run(context.Background()))
}

type fakeRunQuota struct {
	resets int
}

func (f *fakeRunQuota) ResetRun() { f.resets++ }

func TestPassesStartWithFreshRunBudget(t *testing.T) {
	q := &fakeRunQuota{}

	n := NewNightly(&fakeLocker{}, &fakeLedger{availability: map[string]int{}}, &fakeSyncer{}, nil, testValidator(), nil, nil, nil, nil).
		WithNow(func() time.Time { return testNow }).
		WithQuota(q)
	require.NoError(t, n.Run(context.Background()))
	assert.Equal(t, 1, q.resets)

	inc := newIncremental(t, &fakeLocker{}, &fakeLedger{lefts: []int{4, 2, 7}}, &fakeRequestStore{}, &fakeSyncer{}, testStateStore(t), nil).
		WithQuota(q)
	_, err := inc.OnSubmission(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, q.resets)

	g := newIntegrity(t, &fakeLocker{}, &fakeSyncer{}, &fakeRequestStore{count: 3}, testStateStore(t)).
		WithQuota(q)
	require.NoError(t, g.Run(context.Background()))
	assert.Equal(t, 3, q.resets)
}
