// format.go renders confirmation templates by
// literal placeholder substitution. The model writes the sentence, the
// tool supplies the facts.
package assistant

import "strings"

// FormatConfirmation replaces %token% placeholders in template with
// values from the map (keys without the percent signs). Unknown tokens
// are left verbatim. No escaping or recursion: replacement is a single
// literal pass per known key.
func FormatConfirmation(template string, values map[string]string) string {
	out := template
	for key, val := range values {
		out = strings.ReplaceAll(out, "%"+key+"%", val)
	}
	return out
}
