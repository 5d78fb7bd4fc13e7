// Package consoleauth implements the authenticated-session subsystem of the
// Robin MTA administrative console: a session state machine, a refresh
// coordinating HTTP transport, a stateless gateway over the /auth endpoints,
// a pluggable credential store, an inactivity monitor, and a route guard.
//
// The package is designed around a single [Store] per running console
// instance. The Store is the only writer of session state; every other
// component either reads it or calls its mutation operations. All Store
// methods are safe for concurrent use after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// consoleauth is the public surface. It exposes [Client], [Builder],
// [Config], [Store], [Transport], [Guard], [InactivityMonitor], and value
// types. Credential persistence lives in credstore, token claim inspection
// in token, and the net/http route-guard adapter in middleware.
//
// # What this package must NOT do
//
//   - Implement backend authentication logic; the gateway only consumes it.
//   - Hold credentials anywhere except the configured credstore.Store.
//   - Issue more than one token renewal at a time, no matter how many
//     requests fail concurrently.
//   - Perform I/O during construction (Build is allocation-only; Init and
//     WatchStorage start the background work explicitly).
package consoleauth
