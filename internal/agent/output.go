package agent

import (
	"encoding/json"
	"strconv"
	"strings"
)

// envelope is the `claude -p --output-format json` wrapper: the actual
// payload arrives JSON-encoded a second time inside result.
type envelope struct {
	Result *string `json:"result"`
	Error  *string `json:"error"`
}

// ParseOutput extracts the inner text from a claude-style JSON envelope,
// falling back to error, then to the raw stdout if neither parses or is
// present.
func ParseOutput(stdout string) string {
	var env envelope
	if err := json.Unmarshal([]byte(stdout), &env); err == nil {
		if env.Result != nil {
			return *env.Result
		}
		if env.Error != nil {
			return *env.Error
		}
	}
	return stdout
}

// Verdict is an issue-analysis verdict.
type Verdict string

const (
	VerdictImplement          Verdict = "implement"
	VerdictNeedsClarification Verdict = "needs_clarification"
	VerdictWontfix            Verdict = "wontfix"
)

// AnalysisResult is the structured output of an Analyze task session.
type AnalysisResult struct {
	Verdict    Verdict  `json:"verdict"`
	Confidence float64  `json:"confidence"`
	Summary    string   `json:"summary"`
	Questions  []string `json:"questions"`
	Reason     *string  `json:"reason"`
	Report     string   `json:"report"`
}

// ReviewVerdict is a PR-review verdict.
type ReviewVerdict string

const (
	ReviewVerdictApprove        ReviewVerdict = "approve"
	ReviewVerdictRequestChanges ReviewVerdict = "request_changes"
)

// ReviewComment is one inline review comment emitted by a Review task.
type ReviewComment struct {
	Path string `json:"path"`
	Line *int   `json:"line"`
	Body string `json:"body"`
}

// ReviewResult is the structured output of a Review task session.
type ReviewResult struct {
	Verdict  ReviewVerdict   `json:"verdict"`
	Summary  string          `json:"summary"`
	Comments []ReviewComment `json:"comments"`
}

// ParseAnalysis attempts to decode stdout as an AnalysisResult: first by
// unwrapping a claude JSON envelope and parsing its result field, then by
// parsing stdout directly (a binary that skips the envelope entirely).
// Returns ok=false if neither attempt produces valid JSON — Analyze then
// keeps the raw output as the report and labels the issue analyzed.
func ParseAnalysis(stdout string) (AnalysisResult, bool) {
	if inner, ok := envelopeResult(stdout); ok {
		var a AnalysisResult
		if err := json.Unmarshal([]byte(inner), &a); err == nil {
			return a, true
		}
	}
	var a AnalysisResult
	if err := json.Unmarshal([]byte(stdout), &a); err == nil {
		return a, true
	}
	return AnalysisResult{}, false
}

// ParseReview attempts to decode stdout as a ReviewResult, same two-stage
// strategy as ParseAnalysis.
func ParseReview(stdout string) (ReviewResult, bool) {
	if inner, ok := envelopeResult(stdout); ok {
		var r ReviewResult
		if err := json.Unmarshal([]byte(inner), &r); err == nil && r.Verdict != "" {
			return r, true
		}
	}
	var r ReviewResult
	if err := json.Unmarshal([]byte(stdout), &r); err == nil && r.Verdict != "" {
		return r, true
	}
	return ReviewResult{}, false
}

func envelopeResult(stdout string) (string, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(stdout), &env); err == nil && env.Result != nil {
		return *env.Result, true
	}
	return "", false
}

// ExtractPRNumber finds a pull-request number in agent stdout: first by
// scanning for a "/pull/{n}" URL segment (first match wins, left to
// right), then, only if no URL matched, by looking for a top-level
// "pr_number" JSON field. An envelope is unwrapped first if present.
func ExtractPRNumber(stdout string) (int, bool) {
	searchText := stdout
	if inner, ok := envelopeResult(stdout); ok {
		searchText = inner
	}

	const marker = "/pull/"
	segments := strings.Split(searchText, marker)
	for i := 1; i < len(segments); i++ {
		numStr := leadingDigits(segments[i])
		if numStr == "" {
			continue
		}
		if n, err := strconv.Atoi(numStr); err == nil && n > 0 {
			return n, true
		}
	}

	var generic map[string]any
	if err := json.Unmarshal([]byte(searchText), &generic); err == nil {
		if raw, ok := generic["pr_number"]; ok {
			switch v := raw.(type) {
			case float64:
				if int(v) > 0 {
					return int(v), true
				}
			}
		}
	}

	return 0, false
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}
