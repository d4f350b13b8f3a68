// Package ayla implements the HTTP client for the Ayla Networks cloud that
// Shark vacuums report to.
//
// Two services are involved: the identity service issues and refreshes
// bearer tokens (Session), and the device service exposes the account's
// device list, per-device property readouts, and datapoint writes for
// commands. The client is stateless: the engine owns the current Session
// and passes it to every authenticated call.
//
// All failures are normalized into *Error with a Kind classification
// (unauthorized, network failure, malformed response, other HTTP status)
// so the engine can branch on them without touching transport details.
package ayla
