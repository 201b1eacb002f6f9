package security

import "strings"

// splitCompound breaks a shell command into its top-level segments,
// splitting on &&, ||, ;, | and newlines while leaving quoted text and
// escaped characters alone. Redirections stay inside their segment.
func splitCompound(command string) []string {
	var segments []string
	var current strings.Builder
	var quote rune

	flush := func() {
		if seg := strings.TrimSpace(current.String()); seg != "" {
			segments = append(segments, seg)
		}
		current.Reset()
	}

	runes := []rune(command)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if quote != 0 {
			current.WriteRune(r)
			if r == quote {
				quote = 0
			}
			continue
		}
		switch r {
		case '\'', '"', '`':
			quote = r
			current.WriteRune(r)
		case '\\':
			current.WriteRune(r)
			if i+1 < len(runes) {
				i++
				current.WriteRune(runes[i])
			}
		case '&', '|':
			// single & (background) and | split the same as && and ||
			if i+1 < len(runes) && runes[i+1] == r {
				i++
			}
			flush()
		case ';', '\n':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return segments
}
