// Package application provides application initialization and dependency wiring.
// It loads the reference data registry, creates the metrics manager, the API
// handler and router, and the HTTP server, keeping the main package focused
// on CLI parsing and orchestration.
package application
