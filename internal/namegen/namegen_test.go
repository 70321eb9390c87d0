package namegen

import (
	"strings"
	"testing"
)

func TestConcept(t *testing.T) {
	if got := Concept("a red  cube"); got != "Concept - A Red Cube" {
		t.Fatalf("Concept = %q", got)
	}
}

func TestConceptTruncatesLongPrompts(t *testing.T) {
	prompt := strings.Repeat("weathered oak ", 10)
	got := Concept(prompt)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("long prompt not truncated: %q", got)
	}
	if len(got) > len("Concept - ")+maxPromptFragment+3 {
		t.Fatalf("name too long: %q", got)
	}
}

func TestDerivedNames(t *testing.T) {
	if got := Refined(" Concept - Vase "); got != "Refined - Concept - Vase" {
		t.Fatalf("Refined = %q", got)
	}
	if got := Prototype("Concept - Vase"); got != "Prototype - Concept - Vase" {
		t.Fatalf("Prototype = %q", got)
	}
	if got := Final("Vase"); got != "Final - Vase" {
		t.Fatalf("Final = %q", got)
	}
}
