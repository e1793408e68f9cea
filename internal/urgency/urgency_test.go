package urgency

import "testing"

func TestClassify_StructuredAffirmativeWins(t *testing.T) {
	c := New(nil)
	if !c.Classify("yes", "just a quote for a new tap") {
		t.Fatalf("explicit yes must be urgent regardless of transcript")
	}
	if !c.Classify("URGENT", "") {
		t.Fatalf("case-insensitive affirmative expected")
	}
}

func TestClassify_KeywordFallback(t *testing.T) {
	c := New(nil)
	for _, transcript := range []string{
		"water is flooding the kitchen",
		"a pipe is bursting under the sink",
		"it won't stop running",
		"this is an EMERGENCY",
	} {
		if !c.Classify("", transcript) {
			t.Fatalf("expected urgent for %q", transcript)
		}
	}
}

func TestClassify_UnsureDefaultsToNonUrgent(t *testing.T) {
	c := New(nil)
	for _, structured := range []string{"", "unsure", "no", "maybe"} {
		if c.Classify(structured, "kitchen tap dripping a little") {
			t.Fatalf("structured=%q must not be urgent", structured)
		}
	}
}

func TestClassify_CustomKeywords(t *testing.T) {
	c := New([]string{"gas smell"})
	if !c.Classify("", "I can smell a Gas Smell near the meter") {
		t.Fatalf("custom keyword should match case-insensitively")
	}
	if c.Classify("", "water is flooding") {
		t.Fatalf("default keywords must be replaced, not merged")
	}
}
