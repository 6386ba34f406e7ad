/*
Package config loads Grain's YAML runtime configuration.

A full config file:

	http:
	  addr: ":8080"
	log:
	  level: info
	  json: true
	event_store:
	  conn:
	    type: postgres           # or in_memory
	    url: postgres://localhost/grain
	pubsub:
	  buffer: 1024
	snapshots:
	  storage_dir: /var/lib/grain
	  db_name: grain-snapshots.db

Every field is optional; Default supplies an in-memory event store, a
1024-slot bus, and the current directory for snapshots.
*/
package config
