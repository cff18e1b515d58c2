package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// Request is a single prompt sent to a model.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response is the model's text reply.
type Response struct {
	Content    string
	TokensUsed int
}

// Client sends prompts to a model.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Name() string
	Model() string
}

const (
	defaultMaxTokens = 4096
	defaultRetries   = 3
)

// Providers lists the accepted provider names.
func Providers() []string {
	return []string{"anthropic", "openai", "ollama", "lmstudio"}
}

// New returns a client for provider and model. API keys and base URLs come
// from the environment.
func New(provider, model string) (Client, error) {
	switch provider {
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, &authError{message: "ANTHROPIC_API_KEY environment variable is not set"}
		}
		return NewAnthropic(key, model), nil
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, &authError{message: "OPENAI_API_KEY environment variable is not set"}
		}
		c := NewOpenAI("openai", key, model)
		if u := os.Getenv("TRIBUNAL_OPENAI_BASE_URL"); u != "" {
			c.baseURL = u
		}
		return c, nil
	case "ollama", "lmstudio":
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = defaultOllamaHost
		}
		c := NewOpenAI(provider, os.Getenv("TRIBUNAL_OLLAMA_API_KEY"), model)
		c.baseURL = localChatURL(host)
		c.client = &http.Client{Timeout: 300 * time.Second}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// localChatURL normalizes an Ollama style host to its chat completions
// endpoint.
func localChatURL(host string) string {
	host = strings.TrimRight(host, "/")
	host = strings.TrimSuffix(host, "/v1/chat/completions")
	host = strings.TrimSuffix(host, "/v1")
	return host + "/v1/chat/completions"
}
