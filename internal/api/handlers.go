package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/offline-triage-engine/internal/domain"
	"github.com/offline-triage-engine/internal/middleware"
	"github.com/offline-triage-engine/internal/records"
	"github.com/offline-triage-engine/internal/service"
)

// RecordIDHeader carries the ID of a persisted result.
const RecordIDHeader = "X-Record-ID"

// MaxSymptoms bounds a single analyze request.
const MaxSymptoms = 50

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	service.AnalysisRequest
	PatientRef string `json:"patient_ref,omitempty"`
}

// InteractionsRequest is the body of POST /api/v1/interactions.
type InteractionsRequest struct {
	Medicines []string `json:"medicines" binding:"required"`
}

// InteractionsResponse is the body returned by POST /api/v1/interactions.
type InteractionsResponse struct {
	Interactions []domain.DrugInteractionFinding `json:"interactions"`
	Count        int                             `json:"count"`
}

// RecordListResponse is the body returned by GET /api/v1/records.
type RecordListResponse struct {
	Records []*domain.HealthRecord `json:"records"`
	Count   int                    `json:"count"`
	Total   int64                  `json:"total"`
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	if !s.engine.Status().Initialized {
		status = "initializing"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   s.version,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, domain.NewTriageError(domain.ErrCodeInputValidation, "request body is not valid JSON", err.Error()))
		return
	}
	if err := validateAnalyzeRequest(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}

	result := s.engine.Analyze(c.Request.Context(), req.AnalysisRequest)

	if s.store != nil {
		record := records.NewRecord(middleware.GetCorrelationID(c), req.PatientRef, req.Symptoms, result)
		if err := s.store.Save(c.Request.Context(), record); err != nil {
			// The result is still returned; persistence is best effort.
			s.logger.WithError(err).WithFields(logrus.Fields{
				"correlation_id": middleware.GetCorrelationID(c),
				"error_code":     domain.ErrCodeStorage,
			}).Warn("Failed to persist health record")
		} else {
			c.Header(RecordIDHeader, record.ID)
		}
	}

	c.JSON(http.StatusOK, result)
}

func validateAnalyzeRequest(req *AnalyzeRequest) error {
	if len(req.Symptoms) > MaxSymptoms {
		return domain.NewValidationError("symptoms", fmt.Sprintf("at most %d symptoms are accepted", MaxSymptoms), len(req.Symptoms))
	}
	for i, sym := range req.Symptoms {
		if sym.Severity < 0 || sym.Severity > domain.MaxSeverity {
			return domain.NewValidationError(fmt.Sprintf("symptoms[%d].severity", i), "severity must be between 1 and 10", sym.Severity)
		}
	}
	if req.Age != nil && (*req.Age < 0 || *req.Age > 150) {
		return domain.NewValidationError("age", "age must be between 0 and 150", *req.Age)
	}
	if req.Vitals != nil {
		if err := req.Vitals.BloodPressure.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleInteractions(c *gin.Context) {
	var req InteractionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, domain.NewValidationError("medicines", "a list of medicines is required", nil))
		return
	}

	findings := s.engine.CheckDrugInteractions(req.Medicines)
	c.JSON(http.StatusOK, InteractionsResponse{Interactions: findings, Count: len(findings)})
}

func (s *Server) handleListRecords(c *gin.Context) {
	if !s.recordsEnabled(c) {
		return
	}

	filter, err := parseRecordFilter(c)
	if err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}

	list, err := s.store.List(c.Request.Context(), filter)
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, domain.WrapTriageError(domain.ErrCodeStorage, "failed to list records", err))
		return
	}
	total, err := s.store.Count(c.Request.Context())
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, domain.WrapTriageError(domain.ErrCodeStorage, "failed to count records", err))
		return
	}

	c.JSON(http.StatusOK, RecordListResponse{Records: list, Count: len(list), Total: total})
}

func (s *Server) handleGetRecord(c *gin.Context) {
	if !s.recordsEnabled(c) {
		return
	}

	record, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, domain.ErrRecordNotFound) {
		s.writeError(c, http.StatusNotFound, domain.NewTriageError(domain.ErrCodeNotFound, "record not found", c.Param("id")))
		return
	}
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, domain.WrapTriageError(domain.ErrCodeStorage, "failed to load record", err))
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *Server) recordsEnabled(c *gin.Context) bool {
	if s.store != nil {
		return true
	}
	s.writeError(c, http.StatusServiceUnavailable, domain.NewTriageError(domain.ErrCodeStorage, "record keeping is disabled", ""))
	return false
}

func parseRecordFilter(c *gin.Context) (domain.RecordFilter, error) {
	filter := domain.RecordFilter{PatientRef: c.Query("patient_ref")}

	if raw := c.Query("urgency_level"); raw != "" {
		level, err := domain.ParseUrgencyLevel(raw)
		if err != nil {
			return filter, domain.NewValidationError("urgency_level", err.Error(), raw)
		}
		filter.UrgencyLevel = level
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, domain.NewValidationError("since", "since must be an RFC 3339 timestamp", raw)
		}
		filter.Since = since
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, domain.NewValidationError(name, name+" must be a non-negative integer", raw)
		}
		*dst = n
	}
	return filter, nil
}
