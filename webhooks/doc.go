// Package webhooks turns signed provider events into ledger credits.
//
// A request moves through a fixed set of states:
// received -> authenticated -> configured -> classified -> credited|acknowledged -> terminal.
// Once a request is authenticated and configured it is always acknowledged
// with 200; ledger failures are reported through logs, metrics and the
// failure sink instead of the response status.
package webhooks
