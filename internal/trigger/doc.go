// Package trigger decides which plans run in response to incoming mail and
// timer ticks
package trigger
