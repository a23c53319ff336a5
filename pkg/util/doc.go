// Package util provides generic data structures shared by the engine
//
// It includes a comparable set and a small LRU cache for compiled trigger
// patterns
package util
