/*
Package schema provides per-name payload validation for Grain.

The runtime validates command payloads before dispatch and event bodies
before append. Both cases reduce to the same contract: look up a
validator by payload name, run it against an open map, and turn any
failures into an explain map suitable for an incorrect anomaly.

# Usage

Declaring and registering a schema:

	schemas := schema.NewRegistry()
	schemas.Register("example/create-counter", schema.Fields{
		{Name: "name", Kind: schema.String, Required: true},
	}.Validator())

Validating:

	if explain := schemas.Validate(cmd.Name, cmd.Body); explain != nil {
		return nil, anomaly.Incorrect("Invalid command").WithExplain(explain)
	}

Names with no registered validator are schemaless and always pass;
applications that want strict coverage register a validator for every
name they handle.

Fields is a small declarative spec (required keys plus kind checks) that
covers the common case; anything richer can be expressed as a custom
Validator func.
*/
package schema
