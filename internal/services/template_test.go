package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSubstitutesVariables(t *testing.T) {
	out := Render("کاربر {username} به دلیل {violationType} مسدود شد", map[string]string{
		"username":      "sara",
		"violationType": "هرزنامه",
	})
	assert.Equal(t, "کاربر sara به دلیل هرزنامه مسدود شد", out)
}

func TestRenderLeavesUnknownTokens(t *testing.T) {
	out := Render("{reason} at {date}", map[string]string{"reason": "spam"})
	assert.Equal(t, "spam at {date}", out)
}

func TestRenderReplacesAllOccurrences(t *testing.T) {
	out := Render("{x} and {x}", map[string]string{"x": "y"})
	assert.Equal(t, "y and y", out)
}

func TestRenderEmptyTemplate(t *testing.T) {
	assert.Equal(t, "", Render("", map[string]string{"a": "b"}))
}
