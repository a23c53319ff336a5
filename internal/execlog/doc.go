// Package execlog keeps the in-memory trail of plan executions, the only
// record a run leaves behind
package execlog
