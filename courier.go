// Package courier identifies the mail automation engine build
package courier

const Name = "courier"

// Version is overwritten at link time for release builds
var Version = "dev"
