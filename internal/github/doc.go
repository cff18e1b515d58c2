// Package github publishes tribunal review reports to pull requests.
//
// The markdown report is posted as a PR comment and updated in place on
// later runs, recognized by a marker line. Findings with a line number can
// also be posted as an inline review. Authentication uses GITHUB_TOKEN and
// the repository is detected from the local git remote.
package github
