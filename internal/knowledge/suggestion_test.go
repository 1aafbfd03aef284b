package knowledge

import "testing"

func TestParseSuggestionFromEnvelope(t *testing.T) {
	stdout := `{"result": "{\"has_suggestion\":true,\"file\":\"CLAUDE.md\",\"content\":\"new rule\",\"rationale\":\"recurring gotcha\"}"}`
	s, ok := parseSuggestion(stdout)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if !s.HasSuggestion || s.File != "CLAUDE.md" || s.Content != "new rule" {
		t.Fatalf("unexpected suggestion: %+v", s)
	}
}

func TestParseSuggestionRawJSONWithoutEnvelope(t *testing.T) {
	stdout := `{"has_suggestion":false}`
	s, ok := parseSuggestion(stdout)
	if !ok || s.HasSuggestion {
		t.Fatalf("unexpected result: ok=%v s=%+v", ok, s)
	}
}

func TestParseSuggestionEmptyStdoutFails(t *testing.T) {
	if _, ok := parseSuggestion("   "); ok {
		t.Fatal("expected empty stdout to fail parsing")
	}
}

func TestParseSuggestionMalformedFails(t *testing.T) {
	if _, ok := parseSuggestion("not json at all"); ok {
		t.Fatal("expected malformed stdout to fail parsing")
	}
}

func TestParseSuggestionEnvelopeWithNonSuggestionResultFallsThrough(t *testing.T) {
	// result unwraps to plain text, not suggestion JSON; raw-stdout fallback
	// then tries the whole envelope string itself, which also isn't a
	// suggestion, so parsing must fail rather than return a zero-value match.
	if _, ok := parseSuggestion(`{"result": "no thanks"}`); ok {
		t.Fatal("expected failure when neither stage yields valid suggestion JSON")
	}
}
