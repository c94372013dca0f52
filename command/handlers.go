package command

import (
	"context"
	"strings"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-payledger/core"
	"github.com/goliatone/go-payledger/webhooks"
)

type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, req webhooks.Request) webhooks.Outcome
}

type FailureService interface {
	ReplayFailure(ctx context.Context, failureID string) (core.ReplayResult, error)
	ResolveFailure(ctx context.Context, failureID string) error
}

type ProcessWebhookCommand struct {
	service WebhookProcessor
}

func NewProcessWebhookCommand(service WebhookProcessor) *ProcessWebhookCommand {
	return &ProcessWebhookCommand{service: service}
}

// Execute stores the outcome on the result collector. Rejections are part of
// the outcome, so only a missing processor is returned as an error.
func (c *ProcessWebhookCommand) Execute(ctx context.Context, msg ProcessWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook processor is required")
	}
	storeResult(ctx, c.service.ProcessWebhook(ctx, msg.Request))
	return nil
}

type ReplayFailureCommand struct {
	service FailureService
}

func NewReplayFailureCommand(service FailureService) *ReplayFailureCommand {
	return &ReplayFailureCommand{service: service}
}

func (c *ReplayFailureCommand) Execute(ctx context.Context, msg ReplayFailureMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: failure service is required")
	}
	out, err := c.service.ReplayFailure(ctx, strings.TrimSpace(msg.FailureID))
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ResolveFailureCommand struct {
	service FailureService
}

func NewResolveFailureCommand(service FailureService) *ResolveFailureCommand {
	return &ResolveFailureCommand{service: service}
}

func (c *ResolveFailureCommand) Execute(ctx context.Context, msg ResolveFailureMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: failure service is required")
	}
	return c.service.ResolveFailure(ctx, strings.TrimSpace(msg.FailureID))
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
