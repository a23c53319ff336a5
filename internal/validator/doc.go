// Package validator performs static analysis of plans before they are
// stored or enabled. It simulates the output each step will produce and
// checks every reference and condition against what is available at that
// point in the plan
package validator
