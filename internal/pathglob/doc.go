// Package pathglob compiles repository path globs with '/' as separator.
//
// Every "**/" segment may match zero directories, so "lib/**/*.ts" matches
// "lib/a.ts", "**/.env" matches ".env" at the repository root, and
// "src/**/billing/**/*.go" matches "src/billing/x.go".
package pathglob
