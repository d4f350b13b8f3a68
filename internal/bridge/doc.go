// Package bridge is the control core of the Shark bridge daemon.
//
// The Engine runs a single control-loop goroutine that owns all mutable
// state: the cloud session, the device bindings, the write-dedup cache,
// and the aggregate status. Poll timers, login timers, bus commands, and
// admin API calls are funneled into that goroutine as messages, which
// makes "one poll pass or login attempt in flight at a time" a structural
// property rather than a locking discipline.
//
// The poll loop re-arms itself after every pass, choosing its interval at
// re-arm time: 10 seconds normally, 1 second during the fast-poll window
// that opens after any outbound command. Per-device fetch failures are
// isolated - they downgrade the aggregate status to Warning and leave the
// device's displayed values untouched, but never abort the pass or the
// loop. An Unauthorized fetch triggers at most one reactive token refresh
// per five minutes; a rejected refresh token falls back to a debounced
// password login using the obfuscated stored password.
//
// Syncer reconciles the cloud device list into the local registry,
// FeatureValueCache suppresses no-change writes, and HealthReporter
// publishes the engine's condition to the bus.
package bridge
