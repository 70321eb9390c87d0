package namegen

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const maxPromptFragment = 40

var titler = cases.Title(language.English)

// Concept derives a display name for a generated concept image from its
// prompt, e.g. "Concept - A Red Cube".
func Concept(prompt string) string {
	return "Concept - " + titleFragment(prompt)
}

// Refined derives the display name for a refinement of parent.
func Refined(parentName string) string {
	return "Refined - " + strings.TrimSpace(parentName)
}

// Prototype derives the display name for a prototype of parent.
func Prototype(parentName string) string {
	return "Prototype - " + strings.TrimSpace(parentName)
}

// Final derives the display name for the finalized version of parent.
func Final(parentName string) string {
	return "Final - " + strings.TrimSpace(parentName)
}

func titleFragment(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxPromptFragment {
		cut := strings.LastIndex(s[:maxPromptFragment], " ")
		if cut <= 0 {
			cut = maxPromptFragment
		}
		s = s[:cut] + "..."
	}
	return titler.String(s)
}
