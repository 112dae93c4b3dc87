package jury

import (
	"fmt"
	"strings"
)

// Evidence is everything a juror sees about one citation
type Evidence struct {
	Filename      string
	StartLine     int
	EndLine       int
	ContextBefore string
	CitedText     string
	ContextAfter  string
	Claim         string
	Quote         string
}

// BuildPrompt renders the single structured prompt sent to every juror
func BuildPrompt(ev Evidence) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an impartial judge. Decide whether the cited source text supports the claim.\n\n")
	fmt.Fprintf(&b, "SOURCE: %s, lines %d-%d\n\n", ev.Filename, ev.StartLine, ev.EndLine)
	fmt.Fprintf(&b, "CONTEXT BEFORE:\n%s\n\n", orNone(ev.ContextBefore))
	fmt.Fprintf(&b, "CITED TEXT:\n%s\n\n", orNone(ev.CitedText))
	fmt.Fprintf(&b, "CONTEXT AFTER:\n%s\n\n", orNone(ev.ContextAfter))
	fmt.Fprintf(&b, "CLAIM:\n%q\n\n", ev.Claim)
	fmt.Fprintf(&b, "QUOTE USED AS EVIDENCE:\n%q\n\n", ev.Quote)

	b.WriteString(`Answer three questions:
1. quote_sufficient: does the quote contain at least 5 words?
2. same_context: is the quote used in the same context as the source, not hypothetically or to state an opposing position?
3. logical_support: does the source text logically support the claim?

Then give one verdict:
- VALID: the source supports the claim as written
- MISLEADING: the source is quoted out of context or the claim distorts it
- INSUFFICIENT: the source is related but does not establish the claim
- UNSUPPORTED: the source does not support the claim

Respond with exactly one JSON object and nothing else:
{
  "verdict": "VALID" | "MISLEADING" | "INSUFFICIENT" | "UNSUPPORTED",
  "quote_sufficient": true | false,
  "same_context": true | false,
  "logical_support": true | false,
  "rationale": "one or two sentences"
}
`)
	return b.String()
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
