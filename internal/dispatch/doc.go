// Package dispatch launches every manifest entry concurrently and gathers
// one result per entry in manifest order.
//
// Dispatch enforces no deadline and performs no retries. A launcher owns its
// own timeout and reports it with an error mentioning "timed out" or
// "timeout"; a launcher that never returns stalls the run.
package dispatch
