package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/pra-edge/internal/config"
	"github.com/yourusername/pra-edge/internal/datasource"
	"github.com/yourusername/pra-edge/internal/models"
	"github.com/yourusername/pra-edge/internal/service"
)

type MockPuller struct {
	mock.Mock
}

func (m *MockPuller) Pull(ctx context.Context, src datasource.Source) (*service.MergeResult, error) {
	args := m.Called(ctx, src.Name())
	res, _ := args.Get(0).(*service.MergeResult)
	return res, args.Error(1)
}

type namedSource string

func (n namedSource) Name() string { return string(n) }

func (n namedSource) Fetch(context.Context, time.Time) (models.Batch, error) {
	return models.Batch{}, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestScheduleSource(t *testing.T) {
	s := NewScheduler(&MockPuller{}, quietLogger())

	require.NoError(t, s.ScheduleSource("@every 1h", namedSource("odds")))
	assert.Error(t, s.ScheduleSource("@every 1h", namedSource("odds")), "duplicate source")
	assert.Error(t, s.ScheduleSource("not a cron", namedSource("box")))
	assert.Equal(t, []string{"odds"}, s.Jobs())

	_, ok := s.NextRun("odds")
	assert.False(t, ok, "entries have no next run until started")

	require.NoError(t, s.Start())
	defer s.Stop()
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())
	assert.Error(t, s.ScheduleSource("@every 1h", namedSource("box")))
	assert.Error(t, s.RemoveJob("odds"))

	next, ok := s.NextRun("odds")
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Hour), next, time.Minute)
}

func TestStartRequiresJobs(t *testing.T) {
	s := NewScheduler(&MockPuller{}, quietLogger())
	assert.Error(t, s.Start())
	assert.NoError(t, s.Stop())
}

func TestScheduleSources(t *testing.T) {
	s := NewScheduler(&MockPuller{}, quietLogger())
	cfgs := []config.SourceConfig{
		{Name: "odds", Enabled: true, Schedule: "*/15 * * * *"},
		{Name: "box", Enabled: true},
		{Name: "archive", Enabled: false, Schedule: "@daily"},
	}

	n, err := s.ScheduleSources(cfgs, []datasource.Source{namedSource("odds"), namedSource("box")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s2 := NewScheduler(&MockPuller{}, quietLogger())
	_, err = s2.ScheduleSources(cfgs, nil)
	assert.Error(t, err, "scheduled source without a built source")
}

func TestRunOnce(t *testing.T) {
	puller := &MockPuller{}
	puller.On("Pull", mock.Anything, "odds").Return(&service.MergeResult{Source: "odds", Inserted: 3}, nil).Once()
	puller.On("Pull", mock.Anything, "odds").Return(nil, &models.ConcurrentSyncError{Source: "odds"}).Once()
	puller.On("Pull", mock.Anything, "odds").Return(nil, errors.New("upstream down")).Once()

	s := NewScheduler(puller, quietLogger())
	for i := 0; i < 3; i++ {
		s.RunOnce(context.Background(), namedSource("odds"))
	}
	puller.AssertExpectations(t)
}

func TestRunOnceAppliesTimeout(t *testing.T) {
	puller := &MockPuller{}
	puller.On("Pull", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), "odds").Return(&service.MergeResult{}, nil)

	s := NewScheduler(puller, quietLogger())
	s.jobTimeout = time.Second
	s.RunOnce(context.Background(), namedSource("odds"))
	puller.AssertExpectations(t)
}

func TestRemoveJob(t *testing.T) {
	s := NewScheduler(&MockPuller{}, quietLogger())
	require.NoError(t, s.ScheduleSource("@daily", namedSource("odds")))
	require.NoError(t, s.RemoveJob("odds"))
	assert.Empty(t, s.Jobs())
	assert.Error(t, s.RemoveJob("odds"))
}
