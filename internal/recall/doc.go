// Package recall is a stateless client for the Recall.ai recording-agent API.
//
// Every call is an independent HTTP round-trip with its own timeout, so any
// call may be retried by the caller. The provider never reports a first-class
// agent state; the client derives one (State) from the status-change history
// in a single place, ParseState, so callers never inspect raw status codes.
package recall
