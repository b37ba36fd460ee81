package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "My email is ana@example.com, my phone is +55 (11) 91234-5678 and my card 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
	if strings.Contains(out, "ana@example.com") {
		t.Fatalf("email survived redaction: %q", out)
	}
}

func TestRedactPIILeavesPracticeTextAlone(t *testing.T) {
	input := "Yesterday I goed to the park at 5 o'clock with 2 friends."
	out, changed := RedactPII(input)
	if changed || out != input {
		t.Fatalf("RedactPII(%q) = %q, %v", input, out, changed)
	}
}
