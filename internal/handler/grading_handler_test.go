package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-go/internal/config"
	"github.com/noah-isme/gema-grading-go/internal/dto"
	"github.com/noah-isme/gema-grading-go/internal/grading"
	"github.com/noah-isme/gema-grading-go/internal/handler"
	"github.com/noah-isme/gema-grading-go/internal/middleware"
	"github.com/noah-isme/gema-grading-go/internal/service"
)

type gradingServiceStub struct {
	gradeErr  error
	gradeResp dto.GradingRunResponse
	lastMode  string
	lastActor service.Actor
}

func (s *gradingServiceStub) CheckReadiness(ctx context.Context, submissionID uint) (dto.ReadinessResponse, error) {
	if submissionID == 404 {
		return dto.ReadinessResponse{}, service.ErrSubmissionNotFound
	}
	return dto.ReadinessResponse{SubmissionID: submissionID, Ready: true, Report: grading.ReadinessReport{OK: true}}, nil
}

func (s *gradingServiceStub) Grade(ctx context.Context, submissionID uint, payload dto.GradeSubmissionRequest, actor service.Actor) (dto.GradingRunResponse, error) {
	s.lastMode = payload.Mode
	s.lastActor = actor
	if s.gradeErr != nil {
		return dto.GradingRunResponse{}, s.gradeErr
	}
	return s.gradeResp, nil
}

func (s *gradingServiceStub) ListRuns(ctx context.Context, submissionID uint) ([]dto.GradingRunResponse, error) {
	return []dto.GradingRunResponse{{ID: 1, SubmissionID: submissionID, ValidationErrors: []string{}}}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newGradingApp(svc service.GradingService) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		middleware.BindActor(c, service.Actor{ID: 5, Role: service.RoleTeacher})
		return c.Next()
	})
	handler.NewGradingHandler(svc, zerolog.Nop()).Register(app.Group("/api/v2/grading"))
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp.StatusCode, payload
}

func TestGradingHandlerGradeSuccess(t *testing.T) {
	confidence := 0.9
	stub := &gradingServiceStub{gradeResp: dto.GradingRunResponse{ID: 3, Status: "completed", FinalConfidence: &confidence}}
	app := newGradingApp(stub)

	status, payload := doRequest(t, app, http.MethodPost, "/api/v2/grading/submissions/1/grade", `{"mode":"raw"}`)

	require.Equal(t, http.StatusCreated, status)
	require.True(t, payload.Success)
	require.Equal(t, "raw", stub.lastMode)
	require.Equal(t, service.Actor{ID: 5, Role: "teacher"}, stub.lastActor)
}

func TestGradingHandlerGradeModeFromQuery(t *testing.T) {
	stub := &gradingServiceStub{}
	app := newGradingApp(stub)

	status, _ := doRequest(t, app, http.MethodPost, "/api/v2/grading/submissions/1/grade?mode=extracted", "")

	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "extracted", stub.lastMode)
}

func TestGradingHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, data json.RawMessage)
	}{
		{
			name:   "blocked",
			err:    &service.GradingBlockedError{RunID: 4, Report: grading.ReadinessReport{Blockers: []string{"no extraction run recorded"}, Warnings: []string{}}},
			status: http.StatusConflict,
			check: func(t *testing.T, data json.RawMessage) {
				var body struct {
					RunID  uint                    `json:"run_id"`
					Report grading.ReadinessReport `json:"report"`
				}
				require.NoError(t, json.Unmarshal(data, &body))
				require.Equal(t, uint(4), body.RunID)
				require.Equal(t, []string{"no extraction run recorded"}, body.Report.Blockers)
			},
		},
		{
			name:   "rejected",
			err:    &service.DecisionRejectedError{RunID: 6, Errors: []string{"overallGrade is required"}},
			status: http.StatusUnprocessableEntity,
			check: func(t *testing.T, data json.RawMessage) {
				var body struct {
					Errors []string `json:"errors"`
				}
				require.NoError(t, json.Unmarshal(data, &body))
				require.Equal(t, []string{"overallGrade is required"}, body.Errors)
			},
		},
		{name: "not found", err: service.ErrSubmissionNotFound, status: http.StatusNotFound},
		{name: "criteria", err: service.ErrCriteriaNotLocked, status: http.StatusConflict},
		{name: "grader", err: fmt.Errorf("%w: timeout", service.ErrGraderUnavailable), status: http.StatusServiceUnavailable},
		{name: "mode", err: fmt.Errorf("%w: audio", service.ErrInvalidInputMode), status: http.StatusBadRequest},
		{name: "internal", err: errors.New("db down"), status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newGradingApp(&gradingServiceStub{gradeErr: tc.err})

			status, payload := doRequest(t, app, http.MethodPost, "/api/v2/grading/submissions/1/grade", "")

			require.Equal(t, tc.status, status)
			require.False(t, payload.Success)
			if tc.check != nil {
				tc.check(t, payload.Data)
			}
		})
	}
}

func TestGradingHandlerReadinessAndRuns(t *testing.T) {
	app := newGradingApp(&gradingServiceStub{})

	status, payload := doRequest(t, app, http.MethodGet, "/api/v2/grading/submissions/2/readiness", "")
	require.Equal(t, http.StatusOK, status)
	var readiness dto.ReadinessResponse
	require.NoError(t, json.Unmarshal(payload.Data, &readiness))
	require.True(t, readiness.Ready)

	status, _ = doRequest(t, app, http.MethodGet, "/api/v2/grading/submissions/404/readiness", "")
	require.Equal(t, http.StatusNotFound, status)

	status, _ = doRequest(t, app, http.MethodGet, "/api/v2/grading/submissions/abc/readiness", "")
	require.Equal(t, http.StatusBadRequest, status)

	status, payload = doRequest(t, app, http.MethodGet, "/api/v2/grading/submissions/2/runs", "")
	require.Equal(t, http.StatusOK, status)
	var runs []dto.GradingRunResponse
	require.NoError(t, json.Unmarshal(payload.Data, &runs))
	require.Len(t, runs, 1)
}

func TestHealthCheckReportsDegradedDependency(t *testing.T) {
	app := fiber.New()
	app.Get("/health", handler.HealthCheck(config.Config{AppName: "GEMA Grading"}, map[string]handler.DependencyCheck{
		"database": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	}))

	status, payload := doRequest(t, app, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, status)

	var body handler.HealthResponse
	require.NoError(t, json.Unmarshal(payload.Data, &body))
	require.Equal(t, "degraded", body.Status)
	require.Equal(t, "ok", body.Components["database"])
	require.Equal(t, "connection refused", body.Components["redis"])
}
