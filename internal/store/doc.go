// Package store persists plan definitions. A Store keeps an in-memory mirror
// of every plan and writes through to a durable Backend, one record per plan
// keyed by plan ID. Backends exist for Redis, gocloud blob buckets, and
// Postgres
package store
