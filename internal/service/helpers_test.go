package service

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/offline-triage-engine/internal/domain"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func obs(code string, severity int) domain.SymptomObservation {
	return domain.SymptomObservation{Code: code, Severity: severity}
}

func newNullLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *test.Hook) {
	t.Helper()
	logger, hook := newNullLogger()
	engine, err := NewEngine(context.Background(), append([]Option{WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	return engine, hook
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Load(ctx context.Context) (*domain.KnowledgeBase, error) {
	args := m.Called(ctx)
	kb, _ := args.Get(0).(*domain.KnowledgeBase)
	return kb, args.Error(1)
}

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Kind() domain.BackendKind { return domain.BackendWeb }
func (m *mockBackend) Available() bool          { return true }

func (m *mockBackend) Predict(ctx context.Context, symptoms []domain.SymptomObservation) ([]domain.ConditionCandidate, error) {
	args := m.Called(ctx, symptoms)
	out, _ := args.Get(0).([]domain.ConditionCandidate)
	return out, args.Error(1)
}

func hasEntry(hook *test.Hook, level logrus.Level, msg string) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}
