// Package redact scrubs secrets from diff text before it leaves the machine.
//
// Secret detection is a list of named regular expressions. Path redaction
// replaces the whole diff of any file matching a configured glob, so
// credentials files are never scanned line by line or sent at all.
package redact
