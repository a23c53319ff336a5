// Package inbound delivers incoming email events published on a NATS
// subject to the engine
package inbound
