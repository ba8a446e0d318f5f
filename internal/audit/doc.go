// Package audit defines the audit event model and the sinks that receive
// events from the engine's asynchronous dispatcher. Emission is
// fire-and-forget: a slow or full sink never blocks a request.
package audit
