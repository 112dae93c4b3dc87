package jury

import (
	"strings"

	"github.com/ppiankov/trustbutverify/internal/model"
)

// Vote tallies the responding jurors. A unanimous verdict wins outright,
// otherwise a strict majority (more than half of the responding jurors)
// wins. Any other split, including three-way splits on larger panels, is
// HUNG_JURY. With no responding juror the result is LLM_ERROR. Errored
// jurors are excluded, never counted as negative votes.
func Vote(responses []model.JurorResponse) model.ConsensusResult {
	result := model.ConsensusResult{
		Tally:  make(map[model.Verdict]int),
		Panel:  len(responses),
		Jurors: responses,
	}

	var quoteOK, contextOK, supportOK int
	var rationale []string
	for _, r := range responses {
		if !r.Responded() {
			continue
		}
		result.Responding++
		result.Tally[r.Verdict]++
		if r.QuoteSufficient {
			quoteOK++
		}
		if r.SameContext {
			contextOK++
		}
		if r.LogicalSupport {
			supportOK++
		}
		if r.Rationale != "" {
			rationale = append(rationale, r.Juror+": "+r.Rationale)
		}
	}

	if result.Responding == 0 {
		result.Verdict = model.VerdictLLMError
		result.Rationale = "no juror returned a valid response"
		return result
	}

	best, bestCount := model.Verdict(""), 0
	for _, v := range model.JurorVerdicts {
		if n := result.Tally[v]; n > bestCount {
			best, bestCount = v, n
		}
	}

	switch {
	case bestCount == result.Responding:
		result.Verdict = best
		result.Unanimous = true
	case bestCount*2 > result.Responding:
		result.Verdict = best
	default:
		result.Verdict = model.VerdictHungJury
	}

	result.QuoteSufficient = quoteOK*2 > result.Responding
	result.SameContext = contextOK*2 > result.Responding
	result.LogicalSupport = supportOK*2 > result.Responding
	result.Rationale = strings.Join(rationale, " | ")
	return result
}
