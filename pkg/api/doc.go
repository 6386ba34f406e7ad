/*
Package api provides Grain's HTTP boundary.

The server exposes two processing endpoints plus the operational pair:

	POST /command   {"command": {"command/name": ..., <payload>...}}
	POST /query     {"query":   {"query/name": ..., <payload>...}}
	GET  /health    liveness check
	GET  /metrics   Prometheus metrics

# Request Handling

For each request the adapter decodes the JSON envelope, stamps a fresh
UUIDv7 id and a current-UTC timestamp (callers never set these), merges
any transport-supplied additional context (auth identity and the like)
into the processing context, and calls the command or query processor.

# Status Mapping

The anomaly taxonomy maps onto HTTP status:

	success, has result   200  the result value
	success, no result    200  "OK"
	incorrect             400  {message, explain}
	forbidden             403  {message}
	not-found             404  {message}
	conflict              409  {message}
	fault / other         500  {message}

# Usage

	server := api.NewServer(api.Config{
		Commands: dispatch.DefaultCommands,
		Queries:  dispatch.DefaultQueries,
		Store:    store,
		Bus:      bus,
		Cache:    cache,
	})
	if err := server.Start(":8080"); err != nil && err != http.ErrServerClosed {
		log.Fatal(err.Error())
	}

Handler exposes the mux directly for tests (httptest) and embedding
into a larger server.

# See Also

  - pkg/dispatch for the pipelines behind the endpoints
  - pkg/anomaly for the error taxonomy being mapped
*/
package api
