// Package goose implements an HTTP load-generation engine: given a set
// of user-registered TaskSets, it spawns many concurrent simulated users
// that issue HTTP requests against a target host, aggregates per-request
// outcomes into running and final statistics, and optionally throttles
// request rate and logs raw events to disk.
//
// The embedder builds an Attack, registers one or more TaskSets built
// from Tasks, and calls Execute. Everything downstream — weight
// planning, user hatching, event aggregation, throttling, and reporting
// — is handled by the engine.
package goose
