// Package review defines the typed fact model that flows through the review
// pipeline: diff facts, classification, catalog entities, the dispatch
// manifest, agent results, findings, the aggregated report, and the gate
// decision.
//
// Every stage boundary has a structural contract expressed as a Validate
// function in validate.go. A violation is reported as a [ContractError]
// wrapping [ErrContractViolation]; it signals a programming or
// configuration error, never a transient failure.
//
// Severity precedence is fixed: critical, major, warning, info. Risk levels
// are totally ordered: low < medium < high < critical.
package review
