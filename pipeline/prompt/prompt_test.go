package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name      string
		template  string
		concept   string
		variation int
		want      string
	}{
		{"substitutes", "Art for {concept}", "a puzzle platformer", 0, "Art for a puzzle platformer"},
		{"no escaping", "Game: {concept}", `"quoted" {concept} <b>`, 0, `Game: "quoted" {concept} <b>`},
		{"empty concept drops placeholder line", "Draw a knight.\nGame: {concept}", "", 0, "Draw a knight."},
		{"variation", "Tree in {concept}", "a forest", 2, "Tree in a forest\nVariation 2"},
		{"empty template uses generic", "", "x", 0, "Create concept content for the following game.\nConcept: x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Build(KindConcept, tt.template, tt.concept, tt.variation))
		})
	}
}

func TestTemplates_Render(t *testing.T) {
	tpl := DefaultTemplates()
	out := tpl.Render(ImageKind("character"), "a puzzle platformer", 0)
	assert.Contains(t, out, "a puzzle platformer")
	assert.NotContains(t, out, Placeholder)

	// 未知 kind 回退到通用模板
	out = tpl.Render(ImageKind("vehicle"), "racing", 1)
	assert.True(t, strings.HasSuffix(out, "\nVariation 1"))
	assert.Contains(t, out, "racing")

	custom := tpl.With(Templates{KindMusic: "Chiptune for {concept}"})
	assert.Equal(t, "Chiptune for space", custom.Render(KindMusic, "space", 0))
	assert.NotEqual(t, tpl[KindMusic], custom[KindMusic])
}

func TestDefaultTemplates_AllHavePlaceholder(t *testing.T) {
	for kind, tpl := range DefaultTemplates() {
		assert.Contains(t, tpl, Placeholder, kind)
	}
}

func TestBuild_Total(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		template := rapid.String().Draw(t, "template")
		concept := rapid.String().Draw(t, "concept")
		variation := rapid.IntRange(0, 50).Draw(t, "variation")

		out := Build(KindPlot, template, concept, variation)
		if concept != "" && strings.TrimSpace(template) != "" && !strings.Contains(concept, Placeholder) {
			if strings.Contains(template, Placeholder) && !strings.Contains(out, concept) {
				t.Fatalf("concept missing from %q", out)
			}
		}
		if concept == "" && strings.Contains(out, Placeholder) {
			t.Fatalf("placeholder left in %q", out)
		}
	})
}
