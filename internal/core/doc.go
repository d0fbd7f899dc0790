// Package core holds the domain types shared by every stage of the landing
// zone pipeline: source file identity, payload kinds, the classified failure
// taxonomy and its error codes, and the streaming readers used to read
// delimited payloads.
//
// # Failure Model
//
// Stages return plain Go errors. A *Failure is a classified validation
// failure: the original file is routed to the reject (or quarantine)
// location. Any other error is unclassified: the file stays at its source
// path and is retried by the next invocation. OutcomeOf converts a stage
// error into the Outcome value the orchestrator routes on.
//
// # Payload Kinds
//
// Handlers are registered per PayloadKind in a KindRegistry that is built
// once at startup. Unknown extensions never reach a handler.
package core
