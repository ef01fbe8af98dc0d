package tutor

import "strings"

// Verdict sources.
const (
	SourceJudge    = "judge"
	SourceFallback = "fallback"
)

// Verdict is the pass/fail outcome of an evaluation.
type Verdict struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
	Source string `json:"source"`
}

// VerdictTokens is the literal contract the judge is prompted to follow:
// a reply starting with Pass passes; a failing reply carries its reason
// after ReasonDelimiter.
type VerdictTokens struct {
	Pass            string
	ReasonDelimiter string
}

// DefaultVerdictTokens match the prompts in prompts.go.
var DefaultVerdictTokens = VerdictTokens{Pass: "通过", ReasonDelimiter: "原因："}

// ParseVerdict interprets a judge reply. Any reply that does not start with
// the pass token, including an empty one, is a fail. The prefix is checked
// on the raw reply: leading whitespace is a fail.
func ParseVerdict(reply string, tok VerdictTokens) Verdict {
	v := Verdict{Source: SourceJudge}

	if tok.Pass != "" && strings.HasPrefix(reply, tok.Pass) {
		v.Passed = true
		return v
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		v.Reason = "judge returned an empty reply"
		return v
	}

	v.Reason = reply
	if tok.ReasonDelimiter != "" {
		if _, after, ok := strings.Cut(reply, tok.ReasonDelimiter); ok {
			v.Reason = strings.TrimSpace(after)
		}
	}
	return v
}
