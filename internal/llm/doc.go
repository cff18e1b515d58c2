// Package llm implements chat-completion clients used by reviewer agents.
//
// Two wire formats are supported: the Anthropic Messages API and the
// OpenAI-compatible chat completions API, which also serves Ollama and
// LM Studio. All clients share a retry helper that backs off on rate limits
// and server errors and never retries authentication failures.
//
// Base URLs are fields so tests can point clients at httptest servers.
package llm
