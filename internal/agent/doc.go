// Package agent runs reviewer agents against a language model.
//
// A [Launcher] implements dispatch.Launcher. For each manifest entry it
// narrows the raw diff to the entry's scope, scrubs it with the redaction
// policy, builds a prompt from the agent's registry description and rule
// texts, and asks the model for JSON findings. A response that does not
// parse gets one repair request. Responses are cached by prompt.
//
// Each launch runs under the agent's own timeout. When it expires the
// launch fails with "agent <id> timed out after <d>", which dispatch
// classifies as a timeout.
package agent
