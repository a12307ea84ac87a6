package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/common"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/config"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/notify"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/security"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/service"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/source"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/testutil"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	args := m.Called(ctx)
	profiles, _ := args.Get(0).([]model.Profile)
	return profiles, args.Error(1)
}

func (m *mockStore) GetProfile(ctx context.Context, id int64) (*model.Profile, error) {
	args := m.Called(ctx, id)
	profile, _ := args.Get(0).(*model.Profile)
	return profile, args.Error(1)
}

func (m *mockStore) CreateProfile(ctx context.Context, profile *model.Profile) (int64, error) {
	args := m.Called(ctx, profile)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) UpdateProfile(ctx context.Context, profile *model.Profile) error {
	return m.Called(ctx, profile).Error(0)
}

func (m *mockStore) DeleteProfile(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) UpsertListing(ctx context.Context, listing *model.Listing, profileName string) (int64, error) {
	args := m.Called(ctx, listing, profileName)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) ListListings(ctx context.Context, filter service.ListingFilter) ([]model.Listing, error) {
	args := m.Called(ctx, filter)
	listings, _ := args.Get(0).([]model.Listing)
	return listings, args.Error(1)
}

func (m *mockStore) GetListing(ctx context.Context, id int64) (*model.Listing, error) {
	args := m.Called(ctx, id)
	listing, _ := args.Get(0).(*model.Listing)
	return listing, args.Error(1)
}

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Fetch(ctx context.Context) ([]model.CandidateListing, error) {
	args := m.Called(ctx)
	listings, _ := args.Get(0).([]model.CandidateListing)
	return listings, args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, listing model.Listing, profile model.Profile) notify.Outcome {
	return m.Called(ctx, listing, profile).Get(0).(notify.Outcome)
}

type stubOracle struct {
	result security.OracleResult
}

func (s stubOracle) Assess(context.Context, model.Profile, model.Listing) security.OracleResult {
	return s.result
}

func (s stubOracle) Model() string { return "gpt-4o-mini" }

func iphoneProfile() model.Profile {
	return model.Profile{
		ID:            1,
		Name:          "iPhone deals",
		Keywords:      "iphone,128gb",
		PriceMinCents: model.Int64Ptr(20000),
		PriceMaxCents: model.Int64Ptr(30000),
		MinScore:      model.DefaultMinScore,
	}
}

var observed = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func candidate(title string, price int64, url string) model.CandidateListing {
	return model.CandidateListing{Title: title, PriceCents: price, URL: url, ObservedAt: observed}
}

func heuristicEvaluator() *security.Evaluator {
	return security.NewEvaluator(nil, common.DiscardLogger())
}

func TestRun_NoProfilesSkipsSource(t *testing.T) {
	store := new(mockStore)
	src := new(mockSource)
	notifier := new(mockNotifier)

	store.On("ListProfiles", mock.Anything).Return([]model.Profile{}, nil)

	p := New(store, store, src, heuristicEvaluator(), notifier, WithLogger(common.DiscardLogger()))
	summary, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
	assert.Zero(t, summary.Sent)
	assert.NotEmpty(t, summary.RunID)
	src.AssertNotCalled(t, "Fetch", mock.Anything)
	store.AssertNotCalled(t, "UpsertListing", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_HeuristicScenario(t *testing.T) {
	store := new(mockStore)
	src := new(mockSource)
	notifier := new(mockNotifier)

	store.On("ListProfiles", mock.Anything).Return([]model.Profile{iphoneProfile()}, nil)
	src.On("Fetch", mock.Anything).Return([]model.CandidateListing{
		candidate("Apple iPhone 13 128GB — Great condition", 25000, "u-13"),
		candidate("Apple iPhone 12 128GB", 18000, "u-12"),
	}, nil)

	var stored []model.Listing
	store.On("UpsertListing", mock.Anything, mock.AnythingOfType("*model.Listing"), "iPhone deals").
		Run(func(args mock.Arguments) {
			stored = append(stored, *args.Get(1).(*model.Listing))
		}).
		Return(int64(7), nil)
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return(notify.NotConfigured)

	p := New(store, store, src, heuristicEvaluator(), notifier, WithLogger(common.DiscardLogger()))
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Zero(t, summary.Sent)
	assert.Equal(t, 2, summary.Accepted)
	assert.Equal(t, 2, summary.NotConfigured)

	require.Len(t, stored, 2)

	inRange := stored[0]
	assert.InDelta(t, 1.0, inRange.Score, 1e-9)
	assert.Equal(t, "2/2 keywords matched", inRange.Reason)
	assert.Equal(t, 100, inRange.SecurityScore)
	assert.Equal(t, model.StatusAccepted, inRange.Status)
	assert.Equal(t, "heuristic", inRange.AIModel)
	assert.Equal(t, "2/2 keywords matched; price within desired range", inRange.AIReasons)
	assert.Equal(t, observed, inRange.CreatedAt)

	// The matcher zeroes an out-of-range price, but status follows the
	// security verdict.
	outOfRange := stored[1]
	assert.InDelta(t, 0.0, outOfRange.Score, 1e-9)
	assert.Contains(t, outOfRange.Reason, "price 180.00 < min 200.00")
	assert.Equal(t, 82, outOfRange.SecurityScore)
	assert.Equal(t, model.StatusAccepted, outOfRange.Status)

	notifier.AssertNumberOfCalls(t, "Notify", 2)
	notifier.AssertCalled(t, "Notify", mock.Anything, mock.MatchedBy(func(l model.Listing) bool {
		return l.ID == 7 && l.URL == "u-13"
	}), mock.Anything)
}

func TestRun_CountsOnlySentNotifications(t *testing.T) {
	store := new(mockStore)
	src := new(mockSource)
	notifier := new(mockNotifier)

	other := model.Profile{ID: 2, Name: "consoles", Keywords: "ps5"}
	store.On("ListProfiles", mock.Anything).Return([]model.Profile{iphoneProfile(), other}, nil)
	src.On("Fetch", mock.Anything).Return([]model.CandidateListing{
		candidate("Apple iPhone 13 128GB", 25000, "u-1"),
		candidate("PS5 Disc", 40000, "u-2"),
	}, nil)
	store.On("UpsertListing", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(l model.Listing) bool { return l.URL == "u-1" }), mock.Anything).Return(notify.Sent)
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(l model.Listing) bool { return l.URL == "u-2" }), mock.Anything).Return(notify.Failed)

	var progress []int
	p := New(store, store, src, heuristicEvaluator(), notifier,
		WithLogger(common.DiscardLogger()),
		WithProgress(func(done, total int) {
			assert.Equal(t, 4, total)
			progress = append(progress, done)
		}))

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 2, summary.Sent)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, []int{1, 2, 3, 4}, progress)
	store.AssertCalled(t, "UpsertListing", mock.Anything, mock.Anything, "consoles")
}

func TestRun_OracleRejectionSkipsNotifier(t *testing.T) {
	store := new(mockStore)
	src := new(mockSource)
	notifier := new(mockNotifier)

	store.On("ListProfiles", mock.Anything).Return([]model.Profile{iphoneProfile()}, nil)
	src.On("Fetch", mock.Anything).Return([]model.CandidateListing{
		candidate("Apple iPhone 13 128GB", 25000, "u-1"),
	}, nil)

	var stored model.Listing
	store.On("UpsertListing", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = *args.Get(1).(*model.Listing) }).
		Return(int64(1), nil)

	oracle := stubOracle{result: security.Success(model.EvaluationResult{
		SecurityScore: 35,
		FinalDecision: model.DecisionReject,
		Reasons:       []string{"price too good", "new seller"},
	})}
	evaluator := security.NewEvaluator(oracle, common.DiscardLogger())

	p := New(store, store, src, evaluator, notifier, WithLogger(common.DiscardLogger()))
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, model.StatusRejected, stored.Status)
	assert.Equal(t, "gpt-4o-mini", stored.AIModel)
	assert.Equal(t, "price too good; new seller", stored.AIReasons)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_OracleFallbackKeepsConfiguredTag(t *testing.T) {
	store := new(mockStore)
	src := new(mockSource)
	notifier := new(mockNotifier)

	store.On("ListProfiles", mock.Anything).Return([]model.Profile{iphoneProfile()}, nil)
	src.On("Fetch", mock.Anything).Return([]model.CandidateListing{
		candidate("Apple iPhone 13 128GB", 25000, "u-1"),
	}, nil)

	var stored model.Listing
	store.On("UpsertListing", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = *args.Get(1).(*model.Listing) }).
		Return(int64(1), nil)
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return(notify.Sent)

	evaluator := security.NewEvaluator(stubOracle{result: security.Unavailable("boom")}, common.DiscardLogger())

	p := New(store, store, src, evaluator, notifier, WithLogger(common.DiscardLogger()))
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 100, stored.SecurityScore)
	assert.Equal(t, "gpt-4o-mini", stored.AIModel)
}

func TestRun_PersistenceFailureEndsRun(t *testing.T) {
	store := new(mockStore)
	src := new(mockSource)
	notifier := new(mockNotifier)

	store.On("ListProfiles", mock.Anything).Return([]model.Profile{iphoneProfile()}, nil)
	src.On("Fetch", mock.Anything).Return([]model.CandidateListing{
		candidate("Apple iPhone 13 128GB", 25000, "u-1"),
		candidate("Apple iPhone 13 128GB", 25000, "u-2"),
		candidate("Apple iPhone 13 128GB", 25000, "u-3"),
	}, nil)
	diskFull := errors.New("disk full")
	store.On("UpsertListing", mock.Anything, mock.MatchedBy(func(l *model.Listing) bool { return l.URL == "u-1" }), mock.Anything).Return(int64(1), nil)
	store.On("UpsertListing", mock.Anything, mock.MatchedBy(func(l *model.Listing) bool { return l.URL == "u-2" }), mock.Anything).Return(int64(0), diskFull)
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return(notify.Sent)

	p := New(store, store, src, heuristicEvaluator(), notifier, WithLogger(common.DiscardLogger()))
	summary, err := p.Run(context.Background())

	require.ErrorIs(t, err, diskFull)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Sent)
	notifier.AssertNumberOfCalls(t, "Notify", 1)
}

func TestRun_InputFailures(t *testing.T) {
	t.Run("profiles", func(t *testing.T) {
		store := new(mockStore)
		store.On("ListProfiles", mock.Anything).Return(nil, errors.New("db locked"))

		p := New(store, store, new(mockSource), heuristicEvaluator(), new(mockNotifier), WithLogger(common.DiscardLogger()))
		_, err := p.Run(context.Background())
		require.ErrorContains(t, err, "failed to load profiles")
	})

	t.Run("source", func(t *testing.T) {
		store := new(mockStore)
		src := new(mockSource)
		store.On("ListProfiles", mock.Anything).Return([]model.Profile{iphoneProfile()}, nil)
		src.On("Fetch", mock.Anything).Return(nil, errors.New("scraper down"))

		p := New(store, store, src, heuristicEvaluator(), new(mockNotifier), WithLogger(common.DiscardLogger()))
		summary, err := p.Run(context.Background())
		require.ErrorContains(t, err, "failed to fetch listings")
		assert.Zero(t, summary.Processed)
	})
}

func TestRun_CanceledContext(t *testing.T) {
	store := new(mockStore)
	src := new(mockSource)

	store.On("ListProfiles", mock.Anything).Return([]model.Profile{iphoneProfile()}, nil)
	src.On("Fetch", mock.Anything).Return([]model.CandidateListing{candidate("x", 1, "u")}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(store, store, src, heuristicEvaluator(), new(mockNotifier), WithLogger(common.DiscardLogger()))
	summary, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Processed)
}

type slowSource struct {
	active    atomic.Int32
	maxActive atomic.Int32
}

func (s *slowSource) Fetch(context.Context) ([]model.CandidateListing, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		current := s.maxActive.Load()
		if n <= current || s.maxActive.CompareAndSwap(current, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return nil, nil
}

func TestRun_SerializesConcurrentRuns(t *testing.T) {
	store := new(mockStore)
	store.On("ListProfiles", mock.Anything).Return([]model.Profile{iphoneProfile()}, nil)
	src := &slowSource{}

	p := New(store, store, src, heuristicEvaluator(), new(mockNotifier), WithLogger(common.DiscardLogger()))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Run(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.maxActive.Load())
}

func TestRun_RerunIsIdempotentWithSQLite(t *testing.T) {
	ctx := context.Background()
	store := testutil.SetupTestDB(t, testutil.PhoneProfile()).Storage

	notifier := notify.NewTelegramNotifier(config.NotificationConfig{}, "", common.DiscardLogger())
	p := New(store, store, source.NewMockSource(), heuristicEvaluator(), notifier, WithLogger(common.DiscardLogger()))

	first, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Processed)
	assert.Zero(t, first.Sent)
	assert.Equal(t, 4, first.NotConfigured)

	before, err := store.ListListings(ctx, service.ListingFilter{})
	require.NoError(t, err)
	require.Len(t, before, 4)

	_, err = p.Run(ctx)
	require.NoError(t, err)

	after, err := store.ListListings(ctx, service.ListingFilter{})
	require.NoError(t, err)
	require.Len(t, after, 4)

	ids := func(ls []model.Listing) map[string]int64 {
		out := make(map[string]int64, len(ls))
		for _, l := range ls {
			out[l.URL] = l.ID
		}
		return out
	}
	assert.Equal(t, ids(before), ids(after))

	accepted, err := store.ListListings(ctx, service.ListingFilter{MinScore: 1.0})
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, "Apple iPhone 13 128GB — Great condition", accepted[0].Title)
	assert.Equal(t, 100, accepted[0].SecurityScore)
}
