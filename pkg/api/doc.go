// Package api defines the shared data types of the automation engine
//
// This package contains plans, triggers, typed step inputs, execution
// records, normalized emails, log entries, validation results, and the HTTP
// messages exchanged with authoring and observability tooling
package api
