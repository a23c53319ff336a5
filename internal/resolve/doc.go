// Package resolve substitutes {{path}} references in step inputs using the
// trigger payload and the outputs of earlier steps in the same execution
package resolve
