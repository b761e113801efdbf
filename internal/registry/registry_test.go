package registry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"news_aggregator/internal/domain"
	"news_aggregator/internal/registry/mocks"
)

type RegistryTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	store     *mocks.MockSourceStore
	prober    *mocks.MockProber
	directory *mocks.MockDirectory

	registry *Registry
	now      time.Time
}

func (s *RegistryTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.store = mocks.NewMockSourceStore(s.ctrl)
	s.prober = mocks.NewMockProber(s.ctrl)
	s.directory = mocks.NewMockDirectory(s.ctrl)
	s.directory.EXPECT().Name().Return("NewsAPI").AnyTimes()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.registry = New(s.store, s.prober, s.directory, logger)

	s.now = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	s.registry.now = func() time.Time { return s.now }
}

func (s *RegistryTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func (s *RegistryTestSuite) TestDiscover_InsertsNewSource() {
	ctx := context.Background()

	s.store.EXPECT().InsertIfAbsent(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, src *domain.Source) (bool, error) {
			s.Equal("KLEW TV", src.Name)
			s.Equal("https://klewtv.com/rss", src.Website)
			s.Equal(domain.SourceStatusActive, src.Status)
			s.Equal(domain.DiscoveredByManual, src.DiscoveredBy)
			s.Equal(s.now, src.DiscoveredAt)
			s.Zero(src.ReliabilityScore)
			src.ID = 7
			return true, nil
		},
	)

	inserted, err := s.registry.Discover(ctx, "KLEW <TV>", " https://klewtv.com/rss ", domain.DiscoveredByManual, domain.SourceStatusActive)

	s.NoError(err)
	s.True(inserted)
}

func (s *RegistryTestSuite) TestDiscover_DuplicateIsNoop() {
	ctx := context.Background()

	s.store.EXPECT().InsertIfAbsent(ctx, gomock.Any()).Return(false, nil)

	inserted, err := s.registry.Discover(ctx, "KLEW TV", "https://klewtv.com/rss", domain.DiscoveredByManual, domain.SourceStatusActive)

	s.NoError(err)
	s.False(inserted)
}

func (s *RegistryTestSuite) TestDiscover_InvalidURLRejected() {
	inserted, err := s.registry.Discover(context.Background(), "Bad", "klewtv.com/rss", domain.DiscoveredByManual, domain.SourceStatusActive)

	s.ErrorIs(err, domain.ErrValidation)
	s.False(inserted)
}

func (s *RegistryTestSuite) TestDiscover_EmptyNameFallsBackToHost() {
	ctx := context.Background()

	s.store.EXPECT().InsertIfAbsent(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, src *domain.Source) (bool, error) {
			s.Equal("klewtv.com", src.Name)
			return true, nil
		},
	)

	inserted, err := s.registry.Discover(ctx, "<>", "https://klewtv.com/rss", domain.DiscoveredByManual, domain.SourceStatusActive)

	s.NoError(err)
	s.True(inserted)
}

func (s *RegistryTestSuite) TestDiscover_StoreError() {
	ctx := context.Background()

	s.store.EXPECT().InsertIfAbsent(ctx, gomock.Any()).Return(false, errors.New("connection reset"))

	_, err := s.registry.Discover(ctx, "KLEW TV", "https://klewtv.com/rss", domain.DiscoveredByManual, domain.SourceStatusActive)

	s.ErrorIs(err, domain.ErrPersistence)
}

func (s *RegistryTestSuite) TestListActive() {
	ctx := context.Background()
	sources := []domain.Source{
		{ID: 2, Name: "B", ReliabilityScore: 9, Status: domain.SourceStatusActive},
		{ID: 1, Name: "A", ReliabilityScore: 3, Status: domain.SourceStatusActive},
	}

	s.store.EXPECT().ListByStatus(ctx, domain.SourceStatusActive).Return(sources, nil)

	got, err := s.registry.ListActive(ctx)

	s.NoError(err)
	s.Equal(sources, got)
}

func (s *RegistryTestSuite) TestDiscoverLocalDefaults_SeedsActive() {
	ctx := context.Background()
	var websites []string

	s.store.EXPECT().InsertIfAbsent(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, src *domain.Source) (bool, error) {
			s.Equal(domain.SourceStatusActive, src.Status)
			s.Equal(domain.DiscoveredByLocalList, src.DiscoveredBy)
			websites = append(websites, src.Website)
			return true, nil
		},
	).Times(len(LocalSources))

	added, err := s.registry.DiscoverLocalDefaults(ctx)

	s.NoError(err)
	s.Equal(len(LocalSources), added)
	s.Contains(websites, "https://lmtribune.com/rss")
}

func (s *RegistryTestSuite) TestDiscoverLocalDefaults_Idempotent() {
	ctx := context.Background()

	s.store.EXPECT().InsertIfAbsent(ctx, gomock.Any()).Return(false, nil).Times(len(LocalSources))

	added, err := s.registry.DiscoverLocalDefaults(ctx)

	s.NoError(err)
	s.Equal(0, added)
}

func (s *RegistryTestSuite) TestDiscoverFromExternal_InsertsPending() {
	ctx := context.Background()

	s.directory.EXPECT().ListSources(ctx).Return([]domain.DirectoryEntry{
		{Name: "Spokesman Review", URL: "https://spokesman.com/rss"},
		{Name: "Malformed", URL: "not a url"},
		{Name: "Lewiston Tribune", URL: "https://lmtribune.com/rss"},
	}, nil)

	s.store.EXPECT().InsertIfAbsent(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, src *domain.Source) (bool, error) {
			s.Equal(domain.SourceStatusPending, src.Status)
			s.Equal("NewsAPI", src.DiscoveredBy)
			return src.Website == "https://spokesman.com/rss", nil
		},
	).Times(2)

	names, err := s.registry.DiscoverFromExternal(ctx)

	s.NoError(err)
	s.Equal([]string{"Spokesman Review"}, names)
}

func (s *RegistryTestSuite) TestDiscoverFromExternal_TransportErrorPropagates() {
	ctx := context.Background()

	s.directory.EXPECT().ListSources(ctx).Return(nil, domain.ErrUpstreamFetch)

	names, err := s.registry.DiscoverFromExternal(ctx)

	s.ErrorIs(err, domain.ErrUpstreamFetch)
	s.Nil(names)
}

func (s *RegistryTestSuite) TestDiscoverFromExternal_NotConfigured() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	r := New(s.store, s.prober, nil, logger)

	_, err := r.DiscoverFromExternal(context.Background())

	s.Error(err)
}

func (s *RegistryTestSuite) TestValidate_SetsStatusAndTimestamp() {
	ctx := context.Background()
	src := domain.Source{ID: 1, Website: "https://klewtv.com/rss", Status: domain.SourceStatusPending}

	s.prober.EXPECT().Check(ctx, src.Website).Return(nil)
	s.store.EXPECT().UpdateValidation(ctx, int64(1), domain.SourceStatusActive, s.now).Return(nil)

	status, err := s.registry.Validate(ctx, src)

	s.NoError(err)
	s.Equal(domain.SourceStatusActive, status)
}

func (s *RegistryTestSuite) TestValidate_ActiveCanBecomeInactive() {
	ctx := context.Background()
	src := domain.Source{ID: 1, Website: "https://klewtv.com/rss", Status: domain.SourceStatusActive}

	s.prober.EXPECT().Check(ctx, src.Website).Return(domain.ErrUpstreamFetch)
	s.store.EXPECT().UpdateValidation(ctx, int64(1), domain.SourceStatusInactive, s.now).Return(nil)

	status, err := s.registry.Validate(ctx, src)

	s.NoError(err)
	s.Equal(domain.SourceStatusInactive, status)
}

func (s *RegistryTestSuite) TestValidateAll_Deterministic() {
	ctx := context.Background()
	sources := []domain.Source{
		{ID: 1, Website: "https://a.example/rss", Status: domain.SourceStatusPending},
		{ID: 2, Website: "https://b.example/rss", Status: domain.SourceStatusActive},
		{ID: 3, Website: "https://c.example/rss", Status: domain.SourceStatusInactive},
	}
	reachable := map[string]bool{
		"https://a.example/rss": true,
		"https://b.example/rss": false,
		"https://c.example/rss": true,
	}

	s.store.EXPECT().ListAll(ctx).Return(sources, nil).Times(2)
	s.prober.EXPECT().Check(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, url string) error {
			if reachable[url] {
				return nil
			}
			return domain.ErrUpstreamFetch
		},
	).Times(6)

	assigned := map[int][]domain.SourceStatus{}
	pass := 0
	s.store.EXPECT().UpdateValidation(ctx, gomock.Any(), gomock.Any(), s.now).DoAndReturn(
		func(_ context.Context, id int64, status domain.SourceStatus, _ time.Time) error {
			assigned[pass] = append(assigned[pass], status)
			return nil
		},
	).Times(6)

	first, err := s.registry.ValidateAll(ctx)
	s.NoError(err)
	pass++
	second, err := s.registry.ValidateAll(ctx)
	s.NoError(err)

	s.Equal(first, second)
	s.Equal(assigned[0], assigned[1])
	s.Equal([]domain.SourceStatus{
		domain.SourceStatusActive,
		domain.SourceStatusInactive,
		domain.SourceStatusActive,
	}, assigned[0])
	s.Equal(3, first.Checked)
	s.Equal(2, first.Active)
	s.Equal(1, first.Inactive)
}

func (s *RegistryTestSuite) TestValidateAll_ContinuesPastUpdateFailure() {
	ctx := context.Background()
	sources := []domain.Source{
		{ID: 1, Website: "https://a.example/rss"},
		{ID: 2, Website: "https://b.example/rss"},
	}

	s.store.EXPECT().ListAll(ctx).Return(sources, nil)
	s.prober.EXPECT().Check(ctx, gomock.Any()).Return(nil).Times(2)
	s.store.EXPECT().UpdateValidation(ctx, int64(1), domain.SourceStatusActive, s.now).Return(errors.New("deadlock"))
	s.store.EXPECT().UpdateValidation(ctx, int64(2), domain.SourceStatusActive, s.now).Return(nil)

	report, err := s.registry.ValidateAll(ctx)

	s.NoError(err)
	s.Equal(1, report.Checked)
	s.Equal(1, report.Failed)
}

func (s *RegistryTestSuite) TestValidateAll_ListError() {
	ctx := context.Background()

	s.store.EXPECT().ListAll(ctx).Return(nil, errors.New("db down"))

	report, err := s.registry.ValidateAll(ctx)

	s.Error(err)
	s.Nil(report)
}

func (s *RegistryTestSuite) TestSetReliabilityScore() {
	ctx := context.Background()

	s.store.EXPECT().UpdateReliabilityScore(ctx, int64(4), 87).Return(nil)

	s.NoError(s.registry.SetReliabilityScore(ctx, 4, 87))
}
