package redact

import (
	"regexp"

	"github.com/dshills/tribunal/internal/pathglob"
)

// Placeholder replaces every redacted span.
const Placeholder = "[REDACTED]"

type detector struct {
	name string
	re   *regexp.Regexp
}

var detectors = []detector{
	{"api-key", regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`)},
	{"aws-access-key-id", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"aws-secret-access-key", regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`)},
	{"assigned-secret", regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`)},
	{"bearer", regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`)},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`)},
	{"private-key", regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`)},
	{"github-token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`)},
	{"slack-token", regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`)},
	{"anthropic-key", regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`)},
	{"openai-key", regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{"connection-string", regexp.MustCompile(`(?i)\b(postgres(ql)?|mysql|mongodb(\+srv)?|redis|amqp)://[^:\s/]+:[^@\s]+@`)},
	{"hex-secret", regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`)},
}

// Secrets replaces detected secrets in text with Placeholder and returns
// the number of replacements.
func Secrets(text string) (string, int) {
	n := 0
	for _, d := range detectors {
		text = d.re.ReplaceAllStringFunc(text, func(string) string {
			n++
			return Placeholder
		})
	}
	return text, n
}

// Policy decides how each file's diff is scrubbed.
type Policy struct {
	secrets bool
	paths   *pathglob.Set
}

// NewPolicy returns a policy. redactSecrets enables regex scrubbing;
// paths lists globs whose files are withheld entirely.
func NewPolicy(redactSecrets bool, paths []string) (*Policy, error) {
	set, err := pathglob.NewSet(paths)
	if err != nil {
		return nil, err
	}
	return &Policy{secrets: redactSecrets, paths: set}, nil
}

// Withheld reports whether path is redacted by path policy.
func (p *Policy) Withheld(path string) bool {
	return p != nil && p.paths.Match(path)
}

// Apply scrubs content belonging to path and returns the number of
// redactions. A withheld file counts as one.
func (p *Policy) Apply(path, content string) (string, int) {
	if p == nil {
		return content, 0
	}
	if p.Withheld(path) {
		return Placeholder + " (file content withheld by path policy)\n", 1
	}
	if !p.secrets {
		return content, 0
	}
	return Secrets(content)
}
