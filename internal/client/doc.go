// Package client defines the capability port through which plan steps act
// on the outside world, and an HTTP implementation of it
package client
