// Package orchestrator runs the six review stages in order and validates
// every hand-off between them.
//
// Stage order is normalize, classify, compose, gap-detect, dispatch, and
// aggregate. Each stage runs exactly once per call to Run. A contract
// violation at any boundary aborts the run with a *review.ContractError.
// Normalize, classify, and compose errors are fatal; a failing gap analyzer
// is recovered into a zero-confidence gap; launch failures are recovered
// per agent by dispatch.
package orchestrator
