// Package compose is the policy engine that turns a classification into an
// agent manifest.
package compose
