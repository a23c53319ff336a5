// Package server implements the HTTP API server for the courier engine
//
// This package provides REST endpoints for authoring and running plans,
// delivering incoming email, reading execution logs, and a WebSocket that
// streams log entries as they are recorded
package server
