package llm

import (
	"context"

	"github.com/wolfman30/safehug/pkg/logging"
)

// FallbackClient retries a failed primary completion on a second provider.
type FallbackClient struct {
	primary  Client
	fallback Client
	logger   *logging.Logger
}

// NewFallbackClient wraps primary; a nil fallback means primary only.
func NewFallbackClient(primary, fallback Client, logger *logging.Logger) *FallbackClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{primary: primary, fallback: fallback, logger: logger}
}

func (c *FallbackClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}

	c.logger.Warn("primary LLM failed, attempting fallback",
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
	)
	if c.fallback == nil || ctx.Err() != nil {
		return Response{}, err
	}

	fallbackResp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback LLM also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return Response{}, fallbackErr
	}

	c.logger.Info("fallback LLM succeeded after primary failure")
	return fallbackResp, nil
}
