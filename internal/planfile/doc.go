// Package planfile loads plan definitions from YAML or JSON files and keeps
// the engine in sync with a directory of them
package planfile
