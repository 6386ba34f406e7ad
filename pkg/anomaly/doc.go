/*
Package anomaly provides Grain's uniform error taxonomy.

Every component in the runtime reports failure as an *Anomaly: a
category, a human-readable message, and optional extras such as a
validation explain map. Anomalies implement the error interface, so
they travel through ordinary (value, error) returns; callers either
propagate them unchanged or map them at the boundary.

# Categories

  - incorrect: invalid input, fixable by the caller (HTTP 400)
  - not-found: unknown command/query name or missing resource (404)
  - forbidden: caller lacks permission (403)
  - conflict: lost a race with concurrent state (409)
  - fault: internal error (500)
  - unavailable, busy, interrupted: operational conditions (500)

# Usage

Returning an anomaly from a handler:

	if req.Name == "" {
		return nil, anomaly.Incorrect("name is required").
			WithExplain(map[string]any{"name": "missing"})
	}

Classifying at a boundary:

	switch anomaly.CategoryOf(err) {
	case anomaly.CategoryIncorrect:
		// 400
	case anomaly.CategoryNotFound:
		// 404
	}

From converts plain errors into faults, which is how uncaught handler
errors enter the taxonomy without losing their cause chain (Unwrap is
implemented, so errors.Is/As keep working through an anomaly).

# See Also

  - pkg/dispatch for how processors convert panics and nil results
  - pkg/api for the category → HTTP status mapping
*/
package anomaly
