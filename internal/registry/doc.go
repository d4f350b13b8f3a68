// Package registry is the bridge's local store: the device/feature entries
// mirrored to the host automation layer, and a section/key settings table
// holding the account credentials and cloud session between restarts.
//
// Devices and features are addressed two ways: a stable Key derived from
// the vacuum's cloud serial ("shark:{dsn}", "shark:{dsn}:status") used for
// reconciliation, and an opaque generated ID used as a handle everywhere
// else. Reconciliation looks entries up by Key and creates what is missing;
// nothing is ever keyed by the cloud's own numeric identifiers.
//
// The stored password is obfuscated reversibly (see Obfuscate) so the
// engine can fall back to a password login when the refresh token is
// rejected.
package registry
