package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ProcessWebhookMessage] = (*ProcessWebhookCommand)(nil)
	_ gocmd.Commander[ReplayFailureMessage]  = (*ReplayFailureCommand)(nil)
	_ gocmd.Commander[ResolveFailureMessage] = (*ResolveFailureCommand)(nil)
)
