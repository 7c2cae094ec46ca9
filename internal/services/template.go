package services

import "strings"

// Render substitutes {key} tokens in a notification template. Every
// occurrence of each token present in vars is replaced literally; tokens
// with no matching entry are left verbatim so a half-filled template
// still renders instead of failing.
func Render(template string, vars map[string]string) string {
	rendered := template
	for key, value := range vars {
		rendered = strings.ReplaceAll(rendered, "{"+key+"}", value)
	}
	return rendered
}
