package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/offline-triage-engine/internal/domain"
	"github.com/offline-triage-engine/internal/records"
	"github.com/offline-triage-engine/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type errorBody struct {
	Error domain.TriageError `json:"error"`
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Save(ctx context.Context, record *domain.HealthRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *mockStore) Get(ctx context.Context, id string) (*domain.HealthRecord, error) {
	args := m.Called(ctx, id)
	record, _ := args.Get(0).(*domain.HealthRecord)
	return record, args.Error(1)
}

func (m *mockStore) List(ctx context.Context, filter domain.RecordFilter) ([]*domain.HealthRecord, error) {
	args := m.Called(ctx, filter)
	list, _ := args.Get(0).([]*domain.HealthRecord)
	return list, args.Error(1)
}

func (m *mockStore) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) Close() error { return nil }

func testConfig() domain.ServerConfig {
	return domain.ServerConfig{Host: "127.0.0.1", Port: 0}
}

func newTestServer(t *testing.T, store domain.HealthRecordStore, cfg domain.ServerConfig) (*Server, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	engine, err := service.NewEngine(context.Background(), service.WithLogger(logger))
	require.NoError(t, err)
	return NewServer(cfg, "v-test", engine, store, logger), hook
}

func newSQLiteStore(t *testing.T) *records.SQLiteStore {
	t.Helper()
	store, err := records.NewSQLiteStore(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func doJSON(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		_ = json.NewEncoder(&buf).Encode(v)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func coldBody() map[string]interface{} {
	return map[string]interface{}{
		"symptoms": []map[string]interface{}{
			{"code": "cough", "severity": 4},
			{"code": "sore_throat", "severity": 3},
			{"code": "headache", "severity": 2},
		},
		"patient_ref": "patient-1",
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil, testConfig())

	w := doJSON(s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "v-test", body["version"])
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer(t, nil, testConfig())

	w := doJSON(s, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status domain.EngineStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Initialized)
	assert.Equal(t, "rule_only", status.Backend)
	assert.Greater(t, status.KnowledgeBaseSize, 0)
}

func TestAnalyze(t *testing.T) {
	s, _ := newTestServer(t, nil, testConfig())

	w := doJSON(s, http.MethodPost, "/api/v1/analyze", coldBody())
	require.Equal(t, http.StatusOK, w.Code)

	var result domain.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, domain.LOW, result.UrgencyLevel)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "common_cold", result.Candidates[0].ConditionID)
	assert.Empty(t, w.Header().Get(RecordIDHeader))
}

func TestAnalyze_Emergency(t *testing.T) {
	s, _ := newTestServer(t, nil, testConfig())

	w := doJSON(s, http.MethodPost, "/api/v1/analyze", map[string]interface{}{
		"symptoms": []map[string]interface{}{{"code": "chest_pain", "severity": 2}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"urgency_level":"EMERGENCY"`)
	assert.Contains(t, w.Body.String(), `"emergency_actions"`)
}

func TestAnalyze_VitalsOnly(t *testing.T) {
	s, _ := newTestServer(t, nil, testConfig())

	w := doJSON(s, http.MethodPost, "/api/v1/analyze", `{"symptoms": [], "vitals": {"oxygen_saturation_pct": 85}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"urgency_level":"EMERGENCY"`)
}

func TestAnalyze_Validation(t *testing.T) {
	s, _ := newTestServer(t, nil, testConfig())

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"symptoms": [`, domain.ErrCodeInputValidation},
		{"severity out of range", `{"symptoms": [{"code": "cough", "severity": 11}]}`, domain.ErrCodeInputValidation},
		{"negative age", `{"symptoms": [{"code": "cough"}], "age": -1}`, domain.ErrCodeInputValidation},
		{"negative systolic", `{"symptoms": [{"code": "cough"}], "vitals": {"blood_pressure": {"systolic": -5, "diastolic": 80}}}`, domain.ErrCodeInputValidation},
		{"diastolic above systolic", `{"symptoms": [{"code": "cough"}], "vitals": {"blood_pressure": {"systolic": 80, "diastolic": 120}}}`, domain.ErrCodeInputValidation},
		{"implausible diastolic", `{"symptoms": [{"code": "cough"}], "vitals": {"blood_pressure": {"diastolic": 900}}}`, domain.ErrCodeInputValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(s, http.MethodPost, "/api/v1/analyze", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body.Error.Code)
			assert.Equal(t, w.Header().Get("X-Correlation-ID"), body.Error.RequestID)
		})
	}
}

func TestAnalyze_PersistsRecord(t *testing.T) {
	store := newSQLiteStore(t)
	s, _ := newTestServer(t, store, testConfig())

	w := doJSON(s, http.MethodPost, "/api/v1/analyze", coldBody())
	require.Equal(t, http.StatusOK, w.Code)
	recordID := w.Header().Get(RecordIDHeader)
	require.NotEmpty(t, recordID)

	w = doJSON(s, http.MethodGet, "/api/v1/records/"+recordID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var record domain.HealthRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, "patient-1", record.PatientRef)
	assert.Equal(t, domain.LOW, record.UrgencyLevel)
	assert.Equal(t, []string{"cough", "sore_throat", "headache"}, record.SymptomCodes)

	w = doJSON(s, http.MethodGet, "/api/v1/records?patient_ref=patient-1&urgency_level=low", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list RecordListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, int64(1), list.Total)

	w = doJSON(s, http.MethodGet, "/api/v1/records?urgency_level=HIGH", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 0, list.Count)
}

func TestAnalyze_PersistenceFailureStillReturnsResult(t *testing.T) {
	store := &mockStore{}
	store.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	s, hook := newTestServer(t, store, testConfig())

	w := doJSON(s, http.MethodPost, "/api/v1/analyze", coldBody())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(RecordIDHeader))

	found := false
	for _, e := range hook.AllEntries() {
		if e.Message == "Failed to persist health record" && e.Level == logrus.WarnLevel {
			found = true
		}
	}
	assert.True(t, found)
	store.AssertExpectations(t)
}

func TestRecords_Errors(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s, _ := newTestServer(t, nil, testConfig())
		w := doJSON(s, http.MethodGet, "/api/v1/records", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), domain.ErrCodeStorage)
	})

	t.Run("not found", func(t *testing.T) {
		s, _ := newTestServer(t, newSQLiteStore(t), testConfig())
		w := doJSON(s, http.MethodGet, "/api/v1/records/missing", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), domain.ErrCodeNotFound)
	})

	t.Run("bad filter", func(t *testing.T) {
		s, _ := newTestServer(t, newSQLiteStore(t), testConfig())
		for _, q := range []string{"urgency_level=SEVERE", "since=yesterday", "limit=-1", "offset=x"} {
			w := doJSON(s, http.MethodGet, "/api/v1/records?"+q, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, q)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		store := &mockStore{}
		store.On("List", mock.Anything, mock.Anything).Return(nil, errors.New("locked"))
		s, _ := newTestServer(t, store, testConfig())
		w := doJSON(s, http.MethodGet, "/api/v1/records", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), domain.ErrCodeStorage)
	})
}

func TestInteractions(t *testing.T) {
	s, _ := newTestServer(t, nil, testConfig())

	w := doJSON(s, http.MethodPost, "/api/v1/interactions", map[string]interface{}{"medicines": []string{"Warfarin", "Aspirin"}})
	require.Equal(t, http.StatusOK, w.Code)
	var resp InteractionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, domain.MAJOR, resp.Interactions[0].Severity)

	w = doJSON(s, http.MethodPost, "/api/v1/interactions", map[string]interface{}{"medicines": []string{"Paracetamol"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"interactions": [], "count": 0}`, w.Body.String())

	w = doJSON(s, http.MethodPost, "/api/v1/interactions", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimitApplied(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1
	s, _ := newTestServer(t, nil, cfg)

	assert.Equal(t, http.StatusOK, doJSON(s, http.MethodGet, "/api/v1/status", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doJSON(s, http.MethodGet, "/api/v1/status", nil).Code)
	// Health checks are never limited.
	assert.Equal(t, http.StatusOK, doJSON(s, http.MethodGet, "/health", nil).Code)
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t, nil, testConfig())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	assert.NoError(t, <-done)
}
