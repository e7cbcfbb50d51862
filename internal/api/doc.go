// Package api is the REST client for the workflow backend.
//
// The backend owns projects, repositories, plans, phased task lists, phase
// designs, execution bookkeeping, test runs and pull requests. [Client]
// exposes one method per backend operation and maps failures onto
// [errors.APIError]: a response with a non-success status carries the
// status code and the backend's detail text, and a request that never got a
// response wraps [errors.ErrBackendUnavailable].
//
// [Client.ExecutionBackend] adapts the execution endpoints of one project to
// the interfaces the local execution engine and status poller consume.
package api
