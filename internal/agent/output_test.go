package agent

import "testing"

func TestParseReviewApproveFromEnvelope(t *testing.T) {
	stdout := `{"result": "{\"verdict\":\"approve\",\"summary\":\"LGTM\"}"}`
	r, ok := ParseReview(stdout)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if r.Verdict != ReviewVerdictApprove || r.Summary != "LGTM" || len(r.Comments) != 0 {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestParseReviewRequestChangesFromEnvelope(t *testing.T) {
	stdout := `{"result": "{\"verdict\":\"request_changes\",\"summary\":\"Fix error handling\",\"comments\":[{\"path\":\"src/main.go\",\"line\":42,\"body\":\"Missing nil check\"}]}"}`
	r, ok := ParseReview(stdout)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if r.Verdict != ReviewVerdictRequestChanges || len(r.Comments) != 1 {
		t.Fatalf("unexpected result: %+v", r)
	}
	if r.Comments[0].Path != "src/main.go" || r.Comments[0].Line == nil || *r.Comments[0].Line != 42 {
		t.Fatalf("unexpected comment: %+v", r.Comments[0])
	}
}

func TestParseReviewRawJSONWithoutEnvelope(t *testing.T) {
	stdout := `{"verdict":"approve","summary":"All good"}`
	r, ok := ParseReview(stdout)
	if !ok || r.Verdict != ReviewVerdictApprove || r.Summary != "All good" {
		t.Fatalf("unexpected result: ok=%v r=%+v", ok, r)
	}
}

func TestParseReviewMalformedReturnsFalse(t *testing.T) {
	if _, ok := ParseReview("LGTM - no issues found"); ok {
		t.Fatal("expected parse to fail on plain text")
	}
}

func TestParseReviewEnvelopeWithNonReviewResultReturnsFalse(t *testing.T) {
	if _, ok := ParseReview(`{"result": "LGTM"}`); ok {
		t.Fatal("expected parse to fail when envelope result isn't review JSON")
	}
}

func TestParseReviewMissingVerdictReturnsFalse(t *testing.T) {
	if _, ok := ParseReview(`{"summary":"All good"}`); ok {
		t.Fatal("expected parse to fail without a verdict field")
	}
}

func TestExtractPRNumberFromURLInText(t *testing.T) {
	stdout := "Created PR: https://github.com/org/repo/pull/42\nDone."
	n, ok := ExtractPRNumber(stdout)
	if !ok || n != 42 {
		t.Fatalf("got n=%d ok=%v", n, ok)
	}
}

func TestExtractPRNumberFromEnvelope(t *testing.T) {
	stdout := `{"result": "PR created at https://github.com/org/repo/pull/123"}`
	n, ok := ExtractPRNumber(stdout)
	if !ok || n != 123 {
		t.Fatalf("got n=%d ok=%v", n, ok)
	}
}

func TestExtractPRNumberNoneWhenAbsent(t *testing.T) {
	if _, ok := ExtractPRNumber("No PR created"); ok {
		t.Fatal("expected no match")
	}
	if _, ok := ExtractPRNumber(""); ok {
		t.Fatal("expected no match on empty input")
	}
}

func TestExtractPRNumberFirstMatch(t *testing.T) {
	n, ok := ExtractPRNumber("See /pull/10 and /pull/20")
	if !ok || n != 10 {
		t.Fatalf("got n=%d ok=%v", n, ok)
	}
}

func TestExtractPRNumberFromJSONField(t *testing.T) {
	n, ok := ExtractPRNumber(`{"pr_number": 42}`)
	if !ok || n != 42 {
		t.Fatalf("got n=%d ok=%v", n, ok)
	}
}

func TestExtractPRNumberFromEnvelopeJSONField(t *testing.T) {
	n, ok := ExtractPRNumber(`{"result": "{\"pr_number\": 99}"}`)
	if !ok || n != 99 {
		t.Fatalf("got n=%d ok=%v", n, ok)
	}
}

func TestExtractPRNumberURLTakesPrecedenceOverJSON(t *testing.T) {
	stdout := `{"pr_number": 10, "url": "https://github.com/org/repo/pull/20"}`
	n, ok := ExtractPRNumber(stdout)
	if !ok || n != 20 {
		t.Fatalf("got n=%d ok=%v", n, ok)
	}
}
