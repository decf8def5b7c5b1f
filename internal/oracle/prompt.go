package oracle

import (
	"fmt"
	"strings"
)

// buildPrompt renders the matching prompt. The response contract is strict
// JSON with target, confidence and reasoning; the model is told to prefer a
// null target over a guess.
func buildPrompt(image, targetRegistry string, catalog []string) string {
	var sb strings.Builder

	sb.WriteString("You are an expert at matching container images to their Chainguard equivalents.\n\n")
	fmt.Fprintf(&sb, "**Image to match:** %s\n\n", image)

	if len(catalog) > 0 {
		sb.WriteString("**Available Chainguard images (complete catalog):**\n")
		for _, img := range catalog {
			fmt.Fprintf(&sb, "  - %s\n", img)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, `**Your task:**
1. Understand what software the source image provides
2. Find the best matching Chainguard image
3. Only select an image if you are confident it provides the same or equivalent functionality

**Key matching principles:**
- Base OS images (debian, ubuntu, alpine, centos, rhel) map to chainguard-base
- Look for functional equivalents, not just name matches
- Bitnami images often map to "-iamguarded" variants
- FIPS variants end with "-fips"
- Only match mainstream, widely-used software; internal or bespoke images have no equivalent
- Some images have different names (e.g., postgres-exporter is prometheus-postgres-exporter)

**Output format (JSON):**
{
  "target": "%s/IMAGE:latest",
  "confidence": 0.85,
  "reasoning": "Brief explanation of the match"
}

**Confidence scoring:**
- 0.9+: Direct equivalent (same software, same purpose)
- 0.8-0.89: Strong functional match
- 0.7-0.79: Reasonable match with some uncertainty
- Below 0.7: Return null

If no suitable match exists, return:
{
  "target": null,
  "confidence": 0.0,
  "reasoning": "Why no match exists"
}

A null target is always better than a guess. Do not invent image names.

Respond with ONLY the JSON output.`, targetRegistry)

	return sb.String()
}

// stripCodeFence removes a surrounding markdown code block from a model
// response, with or without a json language tag.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
