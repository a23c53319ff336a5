// Package builder provides an API for authoring plans and driving a courier
// engine over HTTP
//
// Plan and Step are immutable fluent builders: every method returns a
// modified copy, so partially configured builders can be shared. Client
// wraps the engine's plan authoring, execution, and log routes
package builder
