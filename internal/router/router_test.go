package router_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-go/internal/config"
	"github.com/noah-isme/gema-grading-go/internal/database"
	"github.com/noah-isme/gema-grading-go/internal/grading"
	"github.com/noah-isme/gema-grading-go/internal/handler"
	"github.com/noah-isme/gema-grading-go/internal/middleware"
	"github.com/noah-isme/gema-grading-go/internal/models"
	"github.com/noah-isme/gema-grading-go/internal/repository"
	"github.com/noah-isme/gema-grading-go/internal/router"
	"github.com/noah-isme/gema-grading-go/internal/service"
	"github.com/noah-isme/gema-grading-go/pkg/ai"
)

const secret = "router-secret"

type fixedGrader struct{}

func (fixedGrader) Grade(ctx context.Context, req ai.GradeRequest) (ai.GradeResponse, error) {
	return ai.GradeResponse{Provider: "fixed", Model: "fixed-1", Raw: []byte(`{
		"overallGrade": "MERIT",
		"feedbackSummary": "Strong design with costed plan.",
		"feedbackBullets": ["Justify the switch choice"],
		"criterionChecks": [
			{"code": "P1", "decision": "ACHIEVED", "rationale": "Topology shown", "evidence": [{"page": 2, "quote": "star topology"}, {"page": 3, "quote": "core switch"}], "confidence": 0.92},
			{"code": "M1", "decision": "ACHIEVED", "rationale": "Alternatives compared", "evidence": [{"page": 5, "quote": "bus versus star"}, {"page": 6, "quote": "trade-offs"}], "confidence": 0.88}
		],
		"confidence": 0.9
	}`)}, nil
}

func setupApp(t *testing.T) (*fiber.App, uint) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	student := models.Student{Name: "Rani", Email: "rani@example.com"}
	require.NoError(t, db.Create(&student).Error)
	assignment := models.Assignment{Title: "Networking", Description: "Design a LAN", DueDate: time.Now().Add(24 * time.Hour), CriteriaLocked: true}
	assignment.SetCriteriaCodes([]string{"P1", "M1"})
	assignment.SetBriefCriteriaCodes([]string{"P1", "M1"})
	require.NoError(t, db.Create(&assignment).Error)
	submission := models.Submission{AssignmentID: assignment.ID, StudentID: student.ID, FileURL: "https://files.example/s.pdf", FileMime: "application/pdf", Status: models.SubmissionStatusExtracted}
	require.NoError(t, db.Create(&submission).Error)

	chars, pages, confidence := 6400, 9, 0.95
	run := models.ExtractionRun{
		SubmissionID:       submission.ID,
		Status:             grading.RunStatusCompleted,
		Mode:               "FULL_TEXT",
		ExtractedCharCount: &chars,
		PageCount:          &pages,
		OverallConfidence:  &confidence,
		ExtractedText:      "The LAN uses a star topology with a core switch.",
	}
	run.SetWarnings(nil)
	run.SetPageImageURLs(nil)
	require.NoError(t, db.Create(&run).Error)

	svc := service.NewGradingService(
		repository.NewSubmissionRepository(db),
		repository.NewExtractionRunRepository(db),
		repository.NewGradingRunRepository(db),
		fixedGrader{},
		nil,
		nil,
		service.GradingServiceConfig{Pipeline: grading.DefaultConfig(), ReviewThreshold: 0.6},
		zerolog.Nop(),
	)

	app := fiber.New()
	cfg := config.Config{AppName: "GEMA Grading", AppEnv: "test"}
	router.Register(app, cfg, router.Dependencies{
		GradingHandler:  handler.NewGradingHandler(svc, zerolog.Nop()),
		CriteriaHandler: handler.NewCriteriaHandler(service.NewCriteriaService(repository.NewAssignmentRepository(db), nil, zerolog.Nop()), zerolog.Nop()),
		JWTMiddleware:   middleware.JWTProtected(secret),
		GradeRateLimit:  2,
	})
	return app, submission.ID
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "11",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + token
}

func call(t *testing.T, app *fiber.App, method, path, auth string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestGradingRoutesRequireTeacherOrAdmin(t *testing.T) {
	app, id := setupApp(t)
	path := fmt.Sprintf("/api/v2/grading/submissions/%d/readiness", id)

	require.Equal(t, http.StatusUnauthorized, call(t, app, http.MethodGet, path, ""))
	require.Equal(t, http.StatusForbidden, call(t, app, http.MethodGet, path, bearer(t, "student")))
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, path, bearer(t, "teacher")))
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, path, bearer(t, "admin")))
}

func TestGradeEndToEndAndRateLimit(t *testing.T) {
	app, id := setupApp(t)
	gradePath := fmt.Sprintf("/api/v2/grading/submissions/%d/grade", id)
	auth := bearer(t, "teacher")

	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, gradePath, auth))
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, gradePath, auth))
	require.Equal(t, http.StatusTooManyRequests, call(t, app, http.MethodPost, gradePath, auth))

	runsPath := fmt.Sprintf("/api/v2/grading/submissions/%d/runs", id)
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, runsPath, auth))
	require.Equal(t, http.StatusNotFound, call(t, app, http.MethodGet, "/api/v2/grading/submissions/999/runs", auth))
}

func TestCriteriaRoute(t *testing.T) {
	app, _ := setupApp(t)

	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/v2/grading/assignments/1/criteria", bearer(t, "teacher")))
	require.Equal(t, http.StatusForbidden, call(t, app, http.MethodGet, "/api/v2/grading/assignments/1/criteria", bearer(t, "student")))
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	app, _ := setupApp(t)

	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/v1/health", ""))
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/metrics", ""))
}
