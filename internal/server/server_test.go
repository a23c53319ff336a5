package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/courier/internal/assert/helpers"
	"github.com/kode4food/courier/internal/server"
	"github.com/kode4food/courier/pkg/api"
	"github.com/kode4food/courier/pkg/builder"
)

type testServerEnv struct {
	*helpers.TestEngineEnv
	Server  *server.Server
	Handler http.Handler
}

func testServer(t *testing.T) *testServerEnv {
	t.Helper()
	env := helpers.NewTestEngine(t)
	srv := server.NewServer(env.Engine, "test")
	return &testServerEnv{
		TestEngineEnv: env,
		Server:        srv,
		Handler:       srv.SetupRoutes(),
	}
}

func (e *testServerEnv) do(
	method, path string, body any,
) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.Handler.ServeHTTP(w, req)
	return w
}

func replyPlan() *api.Plan {
	return builder.NewPlan("Reply Boss").
		FromAddress("boss@example.com").
		Then(builder.SendEmail("reply", []string{"{{trigger.from}}"},
			"Re: {{trigger.subject}}", "Got it")).
		MustBuild()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) *T {
	t.Helper()
	var res T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return &res
}

func TestHealthEndpoint(t *testing.T) {
	env := testServer(t)
	_, err := env.Engine.CreatePlan(context.Background(), replyPlan())
	require.NoError(t, err)

	w := env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	res := decode[api.HealthResponse](t, w)
	assert.Equal(t, server.ServiceName, res.Service)
	assert.Equal(t, "test", res.Version)
	assert.Equal(t, server.HealthOK, res.Status)
	assert.Equal(t, 1, res.Plans)
	assert.Equal(t, 1, res.Registered)
}

func TestMetricsEndpoint(t *testing.T) {
	env := testServer(t)
	w := env.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "courier_registered_plans")
}

func TestCORSPreflight(t *testing.T) {
	env := testServer(t)
	w := env.do(http.MethodOptions, "/engine/plan", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCreatePlan(t *testing.T) {
	env := testServer(t)

	w := env.do(http.MethodPost, "/engine/plan", replyPlan())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	res := decode[api.PlanSavedResponse](t, w)
	assert.Equal(t, api.PlanID("reply-boss"), res.Plan.ID)
	assert.True(t, res.Validation.Valid)
	assert.False(t, res.Plan.CreatedAt.IsZero())

	stored, err := env.Engine.GetPlan("reply-boss")
	require.NoError(t, err)
	assert.Equal(t, "Reply Boss", stored.Name)
}

func TestCreatePlanConflict(t *testing.T) {
	env := testServer(t)
	_, err := env.Engine.CreatePlan(context.Background(), replyPlan())
	require.NoError(t, err)

	w := env.do(http.MethodPost, "/engine/plan", replyPlan())
	assert.Equal(t, http.StatusConflict, w.Code)
	res := decode[api.ErrorResponse](t, w)
	assert.Equal(t, http.StatusConflict, res.Status)
}

func TestCreatePlanInvalid(t *testing.T) {
	env := testServer(t)
	p := replyPlan()
	p.Steps[0].Inputs = &api.SendEmailInputs{
		To:      []string{"{{analyze.data}}"},
		Subject: "s",
		Body:    "b",
	}

	w := env.do(http.MethodPost, "/engine/plan", p)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	res := decode[api.ErrorResponse](t, w)
	require.NotNil(t, res.Validation)
	assert.False(t, res.Validation.Valid)
	assert.NotEmpty(t, res.Validation.Errors)
	assert.Equal(t, api.StepID("reply"), res.Validation.Errors[0].StepID)
}

func TestCreatePlanUnknownAction(t *testing.T) {
	env := testServer(t)
	body := `{
		"id": "typo", "name": "Typo",
		"trigger": {"type": "from_address", "address": "a@example.com"},
		"steps": [{"id": "s", "action": "send_emial", "inputs": {}}]
	}`

	w := env.do(http.MethodPost, "/engine/plan", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	res := decode[api.ErrorResponse](t, w)
	require.NotNil(t, res.Validation)
	require.NotEmpty(t, res.Validation.Errors)
	assert.Contains(t, res.Validation.Errors[0].Suggestion, "send_email")
}

func TestCreatePlanBadJSON(t *testing.T) {
	env := testServer(t)
	w := env.do(http.MethodPost, "/engine/plan", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndGetPlan(t *testing.T) {
	env := testServer(t)
	_, err := env.Engine.CreatePlan(context.Background(), replyPlan())
	require.NoError(t, err)

	w := env.do(http.MethodGet, "/engine/plan", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	list := decode[api.PlansListResponse](t, w)
	assert.Equal(t, 1, list.Count)

	w = env.do(http.MethodGet, "/engine/plan/reply-boss", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	plan := decode[api.Plan](t, w)
	assert.Equal(t, api.PlanID("reply-boss"), plan.ID)
	require.Len(t, plan.Steps, 1)
	_, ok := plan.Steps[0].Inputs.(*api.SendEmailInputs)
	assert.True(t, ok)

	w = env.do(http.MethodGet, "/engine/plan/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdatePlan(t *testing.T) {
	env := testServer(t)
	_, err := env.Engine.CreatePlan(context.Background(), replyPlan())
	require.NoError(t, err)

	p := replyPlan()
	p.Description = "updated"
	w := env.do(http.MethodPut, "/engine/plan/reply-boss", p)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[api.PlanSavedResponse](t, w)
	assert.Equal(t, "updated", res.Plan.Description)

	p.ID = "other"
	w = env.do(http.MethodPut, "/engine/plan/reply-boss", p)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	p.ID = ""
	w = env.do(http.MethodPut, "/engine/plan/missing", p)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeletePlan(t *testing.T) {
	env := testServer(t)
	_, err := env.Engine.CreatePlan(context.Background(), replyPlan())
	require.NoError(t, err)

	w := env.do(http.MethodDelete, "/engine/plan/reply-boss", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.Engine.ListPlans())

	w = env.do(http.MethodDelete, "/engine/plan/reply-boss", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidatePlanEndpoint(t *testing.T) {
	env := testServer(t)

	w := env.do(http.MethodPost, "/engine/plan/validate", replyPlan())
	assert.Equal(t, http.StatusOK, w.Code)
	res := decode[api.ValidationResult](t, w)
	assert.True(t, res.Valid)
	assert.Empty(t, env.Engine.ListPlans())
}

func TestExecutePlan(t *testing.T) {
	env := testServer(t)
	_, err := env.Engine.CreatePlan(context.Background(), replyPlan())
	require.NoError(t, err)

	w := env.do(http.MethodPost, "/engine/plan/reply-boss/execute",
		api.ExecuteRequest{TriggerData: map[string]any{
			"from":    "boss@example.com",
			"subject": "Status",
		}},
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ex := decode[api.Execution](t, w)
	assert.Equal(t, api.ExecutionCompleted, ex.Status)
	assert.Equal(t, "manual", ex.Trigger)

	calls := env.Capabilities.InvocationsOf("reply")
	require.Len(t, calls, 1)
	in := calls[0].Inputs.(*api.SendEmailInputs)
	assert.Equal(t, []string{"boss@example.com"}, in.To)
	assert.Equal(t, "Re: Status", in.Subject)

	path := "/engine/logs/execution/" + string(ex.ID)
	w = env.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	logs := decode[api.LogsResponse](t, w)
	assert.NotZero(t, logs.Count)
	for _, e := range logs.Entries {
		assert.Equal(t, ex.ID, e.ExecutionID)
	}

	w = env.do(http.MethodGet, "/engine/logs/plan/reply-boss", nil)
	assert.Equal(t, logs.Count, decode[api.LogsResponse](t, w).Count)

	w = env.do(http.MethodGet, "/engine/logs", nil)
	assert.GreaterOrEqual(t, decode[api.LogsResponse](t, w).Count, logs.Count)
}

func TestExecutePlanWithoutBody(t *testing.T) {
	env := testServer(t)
	_, err := env.Engine.CreatePlan(context.Background(), replyPlan())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost,
		"/engine/plan/reply-boss/execute", nil,
	)
	w := httptest.NewRecorder()
	env.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/engine/plan/missing/execute", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetPlanEnabled(t *testing.T) {
	env := testServer(t)
	_, err := env.Engine.CreatePlan(context.Background(), replyPlan())
	require.NoError(t, err)

	w := env.do(http.MethodPut, "/engine/plan/reply-boss/enabled",
		api.EnabledRequest{Enabled: false},
	)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[api.Plan](t, w).Enabled)
	assert.Empty(t, env.Engine.Triggers().Registered())

	w = env.do(http.MethodPut, "/engine/plan/reply-boss/enabled", "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIncomingEmail(t *testing.T) {
	env := testServer(t)
	_, err := env.Engine.CreatePlan(context.Background(), replyPlan())
	require.NoError(t, err)

	w := env.do(http.MethodPost, "/engine/email", api.Email{
		ID:      "m1",
		From:    "Boss <boss@example.com>",
		To:      []string{"me@example.com"},
		Subject: "Hello",
		Body:    "Hi",
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	res := decode[api.DispatchResponse](t, w)
	assert.Equal(t, []api.PlanID{"reply-boss"}, res.Matched)

	assert.True(t, env.Capabilities.WaitForInvocation("reply", time.Second))

	w = env.do(http.MethodPost, "/engine/email", api.Email{
		From:    "boss@example.com",
		Subject: "no id",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
