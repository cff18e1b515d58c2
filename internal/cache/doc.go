// Package cache stores reviewer agent responses on disk.
//
// Entries are keyed by a SHA-256 of the agent id, model, and the exact
// prompt sent, so any change to the scoped diff, rules, or prompt template
// is a miss. Each entry records when it was written; entries older than the
// TTL are treated as misses and removed on read. Prompts are redacted
// before they are built, so nothing cached contains detected secrets.
//
// The default directory is $XDG_CACHE_HOME/tribunal or the platform
// equivalent.
package cache
