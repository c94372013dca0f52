// Package core holds the payledger domain model, contracts, error taxonomy,
// configuration and observability helpers shared by every other package.
package core
