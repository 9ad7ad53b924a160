package poller

import "regexp"

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Render substitutes {key} placeholders from data. Unknown placeholders are
// left verbatim so a template typo shows up in the message instead of
// failing the send or silently disappearing.
func Render(text string, data map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(token string) string {
		key := token[1 : len(token)-1]
		if value, ok := data[key]; ok {
			return value
		}
		return token
	})
}
