package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kode4food/courier/pkg/api"
	"github.com/kode4food/courier/pkg/log"
)

type (
	// Capabilities performs the real-world effect of each action. A result
	// with Success false is a failed action; a returned error means the
	// capability could not be reached or answered badly
	Capabilities interface {
		SendEmail(
			context.Context, *api.SendEmailInputs,
		) (*api.ActionResult, error)
		ScheduleEmail(
			context.Context, *api.ScheduleEmailInputs,
		) (*api.ActionResult, error)
		RunAnalysis(
			context.Context, *api.RunAnalysisInputs,
		) (*api.ActionResult, error)
		AddLabels(
			context.Context, *api.AddLabelsInputs,
		) (*api.ActionResult, error)
		RemoveLabels(
			context.Context, *api.RemoveLabelsInputs,
		) (*api.ActionResult, error)
		ListenForSenders(
			context.Context, *api.ListenForSendersInputs,
		) (*api.ActionResult, error)
	}

	// HTTPClient implements Capabilities by posting each action to
	// <endpoint>/<action>
	HTTPClient struct {
		httpClient *http.Client
		endpoint   string
	}

	metadataKey struct{}
)

var (
	ErrHTTPError        = errors.New("capability returned HTTP error")
	ErrUnsupportedInput = errors.New("unsupported inputs")
	ErrNoEndpoint       = errors.New("capability endpoint not configured")
)

var _ Capabilities = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient whose requests time out after timeout
func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		endpoint: strings.TrimRight(endpoint, "/"),
	}
}

// Invoke calls the capability method matching the inputs variant
func Invoke(
	ctx context.Context, caps Capabilities, in api.Inputs,
) (*api.ActionResult, error) {
	switch in := in.(type) {
	case *api.SendEmailInputs:
		return caps.SendEmail(ctx, in)
	case *api.ScheduleEmailInputs:
		return caps.ScheduleEmail(ctx, in)
	case *api.RunAnalysisInputs:
		return caps.RunAnalysis(ctx, in)
	case *api.AddLabelsInputs:
		return caps.AddLabels(ctx, in)
	case *api.RemoveLabelsInputs:
		return caps.RemoveLabels(ctx, in)
	case *api.ListenForSendersInputs:
		return caps.ListenForSenders(ctx, in)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedInput, in)
	}
}

// WithMetadata attaches the invoking step's identity to ctx. HTTPClient
// forwards it with each request
func WithMetadata(
	ctx context.Context, md api.CapabilityMetadata,
) context.Context {
	return context.WithValue(ctx, metadataKey{}, md)
}

// MetadataFrom returns the metadata attached by WithMetadata
func MetadataFrom(ctx context.Context) api.CapabilityMetadata {
	md, _ := ctx.Value(metadataKey{}).(api.CapabilityMetadata)
	return md
}

func (c *HTTPClient) SendEmail(
	ctx context.Context, in *api.SendEmailInputs,
) (*api.ActionResult, error) {
	return c.post(ctx, in)
}

func (c *HTTPClient) ScheduleEmail(
	ctx context.Context, in *api.ScheduleEmailInputs,
) (*api.ActionResult, error) {
	return c.post(ctx, in)
}

func (c *HTTPClient) RunAnalysis(
	ctx context.Context, in *api.RunAnalysisInputs,
) (*api.ActionResult, error) {
	return c.post(ctx, in)
}

func (c *HTTPClient) AddLabels(
	ctx context.Context, in *api.AddLabelsInputs,
) (*api.ActionResult, error) {
	return c.post(ctx, in)
}

func (c *HTTPClient) RemoveLabels(
	ctx context.Context, in *api.RemoveLabelsInputs,
) (*api.ActionResult, error) {
	return c.post(ctx, in)
}

func (c *HTTPClient) ListenForSenders(
	ctx context.Context, in *api.ListenForSendersInputs,
) (*api.ActionResult, error) {
	return c.post(ctx, in)
}

func (c *HTTPClient) post(
	ctx context.Context, in api.Inputs,
) (*api.ActionResult, error) {
	if c.endpoint == "" {
		return nil, ErrNoEndpoint
	}

	md := MetadataFrom(ctx)
	action := in.Action()
	body, err := json.Marshal(api.CapabilityRequest{
		Action:   action,
		Inputs:   in,
		Metadata: md,
	})
	if err != nil {
		slog.Error("Failed to marshal capability request",
			log.Action(action),
			log.Error(err))
		return nil, err
	}

	url := c.endpoint + "/" + string(action)
	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, url, bytes.NewBuffer(body),
	)
	if err != nil {
		slog.Error("Failed to create HTTP request",
			log.Action(action),
			log.Error(err))
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "Courier-Engine/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	dur := time.Since(start)

	if err != nil {
		slog.Error("HTTP request failed",
			log.Action(action),
			log.StepID(md.StepID),
			slog.Duration("duration", dur),
			log.Error(err))
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("Failed to read response body",
			log.Action(action),
			log.Error(err))
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("HTTP error",
			log.Action(action),
			log.StepID(md.StepID),
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(respBody)))
		return nil, fmt.Errorf("%w: HTTP %d", ErrHTTPError, resp.StatusCode)
	}

	var res api.ActionResult
	if err := json.Unmarshal(respBody, &res); err != nil {
		slog.Error("Failed to unmarshal response",
			log.Action(action),
			log.Error(err))
		return nil, err
	}
	return &res, nil
}
