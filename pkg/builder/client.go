package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kode4food/courier/pkg/api"
)

// Client talks to a running engine's HTTP API
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var (
	ErrListPlans    = errors.New("failed to list plans")
	ErrGetPlan      = errors.New("failed to get plan")
	ErrCreatePlan   = errors.New("failed to create plan")
	ErrUpdatePlan   = errors.New("failed to update plan")
	ErrDeletePlan   = errors.New("failed to delete plan")
	ErrValidatePlan = errors.New("failed to validate plan")
	ErrExecutePlan  = errors.New("failed to execute plan")
	ErrSetEnabled   = errors.New("failed to set plan enabled")
	ErrSendEmail    = errors.New("failed to deliver email")
	ErrGetLogs      = errors.New("failed to get logs")
	ErrGetHealth    = errors.New("failed to get health")
)

const (
	routePlan   = "/engine/plan"
	routeEmail  = "/engine/email"
	routeLogs   = "/engine/logs"
	routeHealth = "/health"
)

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Health reports the engine's status
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var res api.HealthResponse
	err := c.do(ctx, ErrGetHealth, http.MethodGet, c.url(routeHealth), nil,
		&res, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ListPlans(
	ctx context.Context,
) (*api.PlansListResponse, error) {
	var res api.PlansListResponse
	err := c.do(ctx, ErrListPlans, http.MethodGet, c.url(routePlan), nil,
		&res, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GetPlan(
	ctx context.Context, id api.PlanID,
) (*api.Plan, error) {
	var res api.Plan
	err := c.do(ctx, ErrGetPlan, http.MethodGet, c.planURL(id), nil,
		&res, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CreatePlan stores a new plan. A rejected plan yields an error wrapping
// the engine's validation result
func (c *Client) CreatePlan(
	ctx context.Context, plan *api.Plan,
) (*api.PlanSavedResponse, error) {
	var res api.PlanSavedResponse
	err := c.do(ctx, ErrCreatePlan, http.MethodPost, c.url(routePlan), plan,
		&res, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) UpdatePlan(
	ctx context.Context, plan *api.Plan,
) (*api.PlanSavedResponse, error) {
	var res api.PlanSavedResponse
	err := c.do(ctx, ErrUpdatePlan, http.MethodPut, c.planURL(plan.ID), plan,
		&res, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) DeletePlan(ctx context.Context, id api.PlanID) error {
	return c.do(ctx, ErrDeletePlan, http.MethodDelete, c.planURL(id), nil,
		nil, http.StatusOK)
}

// ValidatePlan runs the engine's validator without storing the plan
func (c *Client) ValidatePlan(
	ctx context.Context, plan *api.Plan,
) (*api.ValidationResult, error) {
	var res api.ValidationResult
	err := c.do(ctx, ErrValidatePlan, http.MethodPost,
		c.url(routePlan+"/validate"), plan, &res, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ExecutePlan runs a stored plan and waits for its execution to finish
func (c *Client) ExecutePlan(
	ctx context.Context, id api.PlanID, triggerData any,
) (*api.Execution, error) {
	var res api.Execution
	err := c.do(ctx, ErrExecutePlan, http.MethodPost,
		c.planURL(id)+"/execute", api.ExecuteRequest{TriggerData: triggerData},
		&res, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) SetPlanEnabled(
	ctx context.Context, id api.PlanID, enabled bool,
) (*api.Plan, error) {
	var res api.Plan
	err := c.do(ctx, ErrSetEnabled, http.MethodPut,
		c.planURL(id)+"/enabled", api.EnabledRequest{Enabled: enabled},
		&res, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SendEmail delivers an incoming email event to the engine
func (c *Client) SendEmail(
	ctx context.Context, email *api.Email,
) (*api.DispatchResponse, error) {
	var res api.DispatchResponse
	err := c.do(ctx, ErrSendEmail, http.MethodPost, c.url(routeEmail), email,
		&res, http.StatusAccepted)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Logs(ctx context.Context) (*api.LogsResponse, error) {
	return c.logs(ctx, c.url(routeLogs))
}

func (c *Client) PlanLogs(
	ctx context.Context, id api.PlanID,
) (*api.LogsResponse, error) {
	return c.logs(ctx, c.url("%s/plan/%s", routeLogs, escape(id)))
}

func (c *Client) ExecutionLogs(
	ctx context.Context, id api.ExecutionID,
) (*api.LogsResponse, error) {
	return c.logs(ctx, c.url("%s/execution/%s", routeLogs, escape(id)))
}

func (c *Client) logs(
	ctx context.Context, target string,
) (*api.LogsResponse, error) {
	var res api.LogsResponse
	err := c.do(ctx, ErrGetLogs, http.MethodGet, target, nil,
		&res, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(
	ctx context.Context, base error, method, target string, body, out any,
	expect int,
) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: %w", base, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%w: %w", base, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", base, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != expect {
		return responseError(base, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", base, err)
	}
	return nil
}

func (c *Client) planURL(id api.PlanID) string {
	return c.url("%s/%s", routePlan, escape(id))
}

func (c *Client) url(format string, args ...any) string {
	path := fmt.Sprintf(format, args...)
	return c.baseURL + path
}

// responseError keeps the engine's validation result reachable through
// errors.As when the API reports one
func responseError(base error, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var er api.ErrorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Error == "" {
		return fmt.Errorf("%w: status %d, body: %s",
			base, resp.StatusCode, string(body))
	}
	if er.Validation != nil {
		return fmt.Errorf("%w: status %d: %w",
			base, resp.StatusCode, er.Validation)
	}
	return fmt.Errorf("%w: status %d: %s", base, resp.StatusCode, er.Error)
}

func escape[T ~string](s T) string {
	return url.PathEscape(string(s))
}
