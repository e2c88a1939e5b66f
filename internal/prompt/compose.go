package prompt

import "strings"

// Compose renders recipe against ctx: each named section runs in order,
// operator overrides are applied, and non-empty outputs are joined with
// exactly one blank line. Trailing whitespace on the final result is
// trimmed. A section that is disabled by override, unknown to the
// Registry, or returns ok=false contributes nothing — no separator, no
// header.
func (r *Registry) Compose(recipe Recipe, ctx *PromptContext) string {
	var pieces []string
	for _, name := range recipe.Sections {
		disabled, overrideText, hasOverride := ctx.resolveOverride(name)
		if disabled {
			continue
		}

		section, ok := r.sections[name]
		if !ok {
			continue
		}

		text, rendered := section(ctx)
		if hasOverride {
			text, rendered = overrideText, true
		}
		if !rendered || strings.TrimSpace(text) == "" {
			continue
		}
		pieces = append(pieces, text)
	}
	return strings.TrimRight(strings.Join(pieces, "\n\n"), " \t\n")
}
