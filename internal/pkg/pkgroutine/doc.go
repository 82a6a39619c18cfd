// Package pkgroutine contains helpers for running goroutines safely.
//
// The Manager type limits concurrency, turns panics into errors and lets the
// application wait for in-flight work during shutdown.
package pkgroutine
