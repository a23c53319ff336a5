// Package metrics exposes Prometheus collectors for plan executions
package metrics
