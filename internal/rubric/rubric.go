package rubric

import (
	"fmt"
	"strings"
)

// Rule is one evaluation criterion the provider is asked to score against.
type Rule struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Weight      int    `json:"weight"`
}

// Rubric is the injected evaluation criteria for a review. Keeping the rule
// set as data separates evaluation content from the pipeline algorithm, so
// rubric revisions do not fork the orchestration code.
type Rubric struct {
	Title string `json:"title"`
	Rules []Rule `json:"rules"`
}

// Default returns the built-in short-form video review rubric.
func Default() Rubric {
	return Rubric{
		Title: "Short-form video quality review",
		Rules: []Rule{
			{Name: "hook", Description: "The first three seconds establish a clear reason to keep watching", Weight: 25},
			{Name: "pacing", Description: "Cuts and scene changes hold attention without feeling rushed", Weight: 20},
			{Name: "audio", Description: "Speech is intelligible and levels are consistent; music does not mask dialogue", Weight: 20},
			{Name: "visuals", Description: "Framing, lighting and stability meet platform expectations", Weight: 20},
			{Name: "call_to_action", Description: "The closing seconds direct the viewer to a concrete next step", Weight: 15},
		},
	}
}

// BuildPrompt constructs the evaluation prompt for one payload from the rubric
// rules and the expected report shape.
func BuildPrompt(r Rubric) string {
	var sb strings.Builder

	sb.WriteString("You are a strict media reviewer. Evaluate the attached video against the rubric below.\n\n")
	sb.WriteString(fmt.Sprintf("Rubric: %s\n", r.Title))
	for _, rule := range r.Rules {
		sb.WriteString(fmt.Sprintf("- %s (weight %d): %s\n", rule.Name, rule.Weight, rule.Description))
	}

	sb.WriteString("\nReturn ONLY valid JSON matching this exact structure:\n{\n")
	sb.WriteString("  \"score\": number, // overall weighted score, 0-100\n")
	sb.WriteString("  \"summary\": string, // two or three sentences on overall quality\n")
	sb.WriteString("  \"findings\": [ // one entry per rubric rule, in rubric order\n")
	sb.WriteString("    {\"rule\": string, \"verdict\": \"pass\"|\"warn\"|\"fail\", \"details\": string}\n")
	sb.WriteString("  ],\n")
	sb.WriteString("  \"suggestions\": [string] // concrete edits, most impactful first\n")
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Judge only what is present in the video, do not invent content.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n")

	return sb.String()
}
