package jury

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/trustbutverify/internal/model"
)

// rawVerdict mirrors the JSON schema in BuildPrompt. Pointers distinguish
// missing fields from false.
type rawVerdict struct {
	Verdict         *string `json:"verdict"`
	QuoteSufficient *bool   `json:"quote_sufficient"`
	SameContext     *bool   `json:"same_context"`
	LogicalSupport  *bool   `json:"logical_support"`
	Rationale       *string `json:"rationale"`
}

// ParseResponse validates raw juror output against the verdict schema.
// Anything outside the schema becomes an error response that does not vote.
func ParseResponse(juror, raw string) model.JurorResponse {
	resp := model.JurorResponse{Juror: juror}

	v, err := decodeVerdict(raw)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}

	resp.Verdict = model.Verdict(strings.ToUpper(strings.TrimSpace(*v.Verdict)))
	if !model.IsJurorVerdict(resp.Verdict) {
		resp.Error = fmt.Sprintf("unknown verdict %q", *v.Verdict)
		resp.Verdict = ""
		return resp
	}
	resp.QuoteSufficient = *v.QuoteSufficient
	resp.SameContext = *v.SameContext
	resp.LogicalSupport = *v.LogicalSupport
	if v.Rationale != nil {
		resp.Rationale = strings.TrimSpace(*v.Rationale)
	}
	return resp
}

func decodeVerdict(raw string) (*rawVerdict, error) {
	content := StripFences(raw)
	if content == "" {
		return nil, errors.New("empty response")
	}

	var v rawVerdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var missing []string
	if v.Verdict == nil {
		missing = append(missing, "verdict")
	}
	if v.QuoteSufficient == nil {
		missing = append(missing, "quote_sufficient")
	}
	if v.SameContext == nil {
		missing = append(missing, "same_context")
	}
	if v.LogicalSupport == nil {
		missing = append(missing, "logical_support")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}
	return &v, nil
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.Contains(s[:nl], "{") {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "json")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
