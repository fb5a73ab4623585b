package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"webaudit_backend/internal/controller"
	"webaudit_backend/internal/model"
	"webaudit_backend/pkg/cron"
	"webaudit_backend/pkg/database"
	"webaudit_backend/pkg/database/databasetest"
	"webaudit_backend/pkg/seed"
	"webaudit_backend/pkg/subscription"
	"webaudit_backend/pkg/utils/jwt"
)

const cronSecret = "cron-secret"

type testServer struct {
	app    *fiber.App
	db     *gorm.DB
	repo   *database.Repository
	signer *jwt.Signer
}

func newTestServer(t *testing.T, seedPlans bool) *testServer {
	t.Helper()
	db := databasetest.Open(t)
	if seedPlans {
		_, err := seed.SeedPlans(context.Background(), db)
		require.NoError(t, err)
	}

	repo := database.NewRepository(db)
	plans := subscription.NewPlanStore(repo)
	svc := subscription.NewService(plans, repo, subscription.NewMemoryDecisionCache(time.Minute, nil))
	signer := jwt.NewSigner("test-secret", time.Hour)

	app := fiber.New()
	controller.SetupRoutes(app, controller.Dependencies{
		Signer:       signer,
		Entitlements: svc,
		Repository:   repo,
		ExpiryJob:    cron.NewPlanExpiryJob(repo, plans, cron.WithDowngradeHook(svc.InvalidateUser)),
		CronSecret:   cronSecret,
	})
	return &testServer{app: app, db: db, repo: repo, signer: signer}
}

func (s *testServer) addUser(t *testing.T, planType subscription.PlanType) model.User {
	t.Helper()
	user := model.User{Email: uuid.NewString() + "@example.com", PlanType: string(planType)}
	if planType != subscription.StarterPlan {
		plan, err := s.repo.FindActivePlanByType(context.Background(), planType)
		require.NoError(t, err)
		user.PlanID = &plan.ID
	}
	require.NoError(t, s.db.Create(&user).Error)
	return user
}

func (s *testServer) token(t *testing.T, user model.User, role string) string {
	t.Helper()
	token, err := s.signer.GenerateToken(user.ID, user.Email, role)
	require.NoError(t, err)
	return "Bearer " + token
}

func (s *testServer) do(t *testing.T, method, path, auth string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestListPlansIsPublic(t *testing.T) {
	s := newTestServer(t, true)

	status, body := s.do(t, http.MethodGet, "/api/plans", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), body["total"])
}

func TestMeRequiresAuth(t *testing.T) {
	s := newTestServer(t, true)

	status, _ := s.do(t, http.MethodGet, "/api/me/plan", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodGet, "/api/me/plan", "Bearer not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestGetMyPlan(t *testing.T) {
	s := newTestServer(t, true)
	user := s.addUser(t, subscription.GrowthPlan)

	status, body := s.do(t, http.MethodGet, "/api/me/plan", s.token(t, user, ""), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Growth", body["plan_type"])
	assert.Equal(t, "plan_id", body["resolved_by"])
	assert.Contains(t, body["features"], "site_crawl")
	quota := body["quota"].(map[string]interface{})
	assert.Equal(t, float64(10), quota["max_projects"])
}

func TestGetMyPlanUnknownUser(t *testing.T) {
	s := newTestServer(t, true)
	ghost := model.User{ID: uuid.New(), Email: "ghost@example.com"}

	status, _ := s.do(t, http.MethodGet, "/api/me/plan", s.token(t, ghost, ""), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGetMyPlanWithoutPlans(t *testing.T) {
	s := newTestServer(t, false)
	user := s.addUser(t, subscription.StarterPlan)

	status, body := s.do(t, http.MethodGet, "/api/me/plan", s.token(t, user, ""), nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "No plan information available", body["error"])

	status, _ = s.do(t, http.MethodGet, "/api/me/features/basic_audit", s.token(t, user, ""), nil)
	assert.Equal(t, http.StatusServiceUnavailable, status, "no plan never grants access")
}

func TestGetFeatureAccess(t *testing.T) {
	s := newTestServer(t, true)
	user := s.addUser(t, subscription.StarterPlan)
	auth := s.token(t, user, "")

	status, body := s.do(t, http.MethodGet, "/api/me/features/seo_analysis", auth, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["has_access"])

	status, body = s.do(t, http.MethodGet, "/api/me/features/site_crawl", auth, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["has_access"])
}

func TestProjectQuotaEnforced(t *testing.T) {
	s := newTestServer(t, true)
	user := s.addUser(t, subscription.StarterPlan)
	auth := s.token(t, user, "")
	project := map[string]string{"name": "Blog", "url": "https://blog.example.com"}

	status, body := s.do(t, http.MethodGet, "/api/me/can-create-project", auth, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["can_create_project"])

	status, _ = s.do(t, http.MethodPost, "/api/projects", auth, project)
	require.Equal(t, http.StatusCreated, status)

	status, body = s.do(t, http.MethodPost, "/api/projects", auth, project)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, float64(1), body["current_count"])
	assert.Equal(t, float64(1), body["max_limit"])
	assert.Equal(t, true, body["upgrade"])

	status, body = s.do(t, http.MethodGet, "/api/projects", auth, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])
}

func TestCreateProjectValidatesInput(t *testing.T) {
	s := newTestServer(t, true)
	user := s.addUser(t, subscription.ScalePlan)
	auth := s.token(t, user, "")

	for _, input := range []map[string]string{
		{"name": "", "url": "https://example.com"},
		{"name": "Site", "url": "example.com"},
		{"name": "Site", "url": "ftp://example.com"},
	} {
		status, _ := s.do(t, http.MethodPost, "/api/projects", auth, input)
		assert.Equal(t, http.StatusBadRequest, status, input)
	}
}

func TestAPIAccessRequiresFeature(t *testing.T) {
	s := newTestServer(t, true)
	growth := s.addUser(t, subscription.GrowthPlan)
	scale := s.addUser(t, subscription.ScalePlan)

	status, body := s.do(t, http.MethodGet, "/api/v1/projects", s.token(t, growth, ""), nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "api_access", body["feature"])
	assert.Equal(t, true, body["upgrade"])

	status, _ = s.do(t, http.MethodGet, "/api/v1/projects", s.token(t, scale, ""), nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestCronTriggerDowngradesExpiredUsers(t *testing.T) {
	s := newTestServer(t, true)
	user := s.addUser(t, subscription.GrowthPlan)
	expired := time.Now().UTC().Add(-24 * time.Hour)
	require.NoError(t, s.db.Model(&model.User{}).Where("id = ?", user.ID).Update("plan_expires_at", expired).Error)
	auth := s.token(t, user, "")

	status, body := s.do(t, http.MethodGet, "/api/me/features/site_crawl", auth, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["has_access"])

	status, _ = s.do(t, http.MethodPost, "/api/cron/downgrade-expired", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = s.do(t, http.MethodPost, "/api/cron/downgrade-expired", "Bearer wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = s.do(t, http.MethodPost, "/api/cron/downgrade-expired", "Bearer "+cronSecret, nil)
	require.Equal(t, http.StatusOK, status)
	result := body["result"].(map[string]interface{})
	assert.Equal(t, float64(1), result["processed"])

	status, body = s.do(t, http.MethodGet, "/api/me/features/site_crawl", auth, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["has_access"], "cached decision is dropped on downgrade")

	ledger, err := s.repo.ListLedgerEntries(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, int64(0), ledger[0].Amount)
}

func TestAdminPlanRoutes(t *testing.T) {
	s := newTestServer(t, true)
	admin := s.addUser(t, subscription.StarterPlan)
	member := s.addUser(t, subscription.StarterPlan)
	plan := map[string]interface{}{
		"name": "Agency", "plan_type": "Scale", "features": []string{"basic_audit", "white_label_reports"},
		"max_projects": 50, "price": 999900,
	}

	status, _ := s.do(t, http.MethodPost, "/api/admin/plans", s.token(t, member, ""), plan)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := s.do(t, http.MethodPost, "/api/admin/plans", s.token(t, admin, jwt.RoleAdmin), plan)
	require.Equal(t, http.StatusCreated, status)
	created := body["plan"].(map[string]interface{})
	assert.Equal(t, "Agency", created["name"])

	plan["features"] = []string{"teleport"}
	status, body = s.do(t, http.MethodPost, "/api/admin/plans", s.token(t, admin, jwt.RoleAdmin), plan)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "teleport")

	plan["features"] = []string{"basic_audit"}
	status, _ = s.do(t, http.MethodPut, "/api/admin/plans/"+created["id"].(string), s.token(t, admin, jwt.RoleAdmin), plan)
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodPut, "/api/admin/plans/"+uuid.NewString(), s.token(t, admin, jwt.RoleAdmin), plan)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodPut, "/api/admin/plans/not-a-uuid", s.token(t, admin, jwt.RoleAdmin), plan)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, true)

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "go_goroutines")
}
