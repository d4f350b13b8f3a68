// Package shark holds the vendor-specific vacuum model: property readouts,
// operating and power mode enumerations, the discrete status resolver, and
// the rooms-to-clean command encoding.
//
// Everything in this package is pure data and pure functions. Network
// access lives in internal/ayla; scheduling and host writes live in
// internal/bridge. Keeping the decision logic here, free of I/O, is what
// makes it unit-testable without a cloud connection.
//
// # Status resolution
//
// ResolveStatus maps a raw readout to one Status via an ordered decision
// list (dock/charge rules first, then operating mode, then error codes,
// then a NotRunning fallback). The order is part of the contract: a
// docked, full vacuum is FullyChargedOnDock even though it also matches
// the charging rule.
package shark
