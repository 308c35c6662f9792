// Package component defines the lifecycle contract shared by the client
// backends, the telemetry providers and the test fixtures, and a Registry
// that starts them in order and stops them in reverse.
package component
