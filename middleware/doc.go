// Package middleware exposes net/http adapters over the consoleauth route
// guard.
//
// # Guards
//
//   - [RequireSession] — authentication plus an optional role/permission rule.
//   - [SessionFromContext] — retrieves the session snapshot a guard injected.
//
// Each guard asks consoleauth.Guard.Decide about the requested URL and either
// forwards the request with the session snapshot in its context or issues the
// redirect the decision names.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Guard calls. It does NOT make
// authorization decisions itself — all decisions are delegated to
// Guard.Decide.
//
// # What this package must NOT do
//
//   - Inspect tokens or talk to the backend (the Transport handles that).
//   - Access the credential store.
//   - Grant or deny beyond the Decision returned by Guard.Decide.
package middleware
