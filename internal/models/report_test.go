package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWarningLiveAt(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	live := Report{Status: ReportWarningSent, IsWarning: true, WarningExpiry: &future}
	assert.True(t, live.WarningLiveAt(now))

	// An expired warning is dead even before the sweeper resolves it
	expired := Report{Status: ReportWarningSent, IsWarning: true, WarningExpiry: &past}
	assert.False(t, expired.WarningLiveAt(now))

	resolved := Report{Status: ReportResolved, IsWarning: true, WarningExpiry: &future}
	assert.False(t, resolved.WarningLiveAt(now))

	noExpiry := Report{Status: ReportWarningSent, IsWarning: true}
	assert.False(t, noExpiry.WarningLiveAt(now))
}

func TestViolationTypeLabel(t *testing.T) {
	assert.Equal(t, "هرزنامه", ViolationSpam.Label())
	assert.Equal(t, "آزار و اذیت", ViolationHarassment.Label())

	// Unknown keys fall back to the raw key so message rendering never
	// produces an empty string
	assert.Equal(t, "weird_key", ViolationType("weird_key").Label())
}

func TestActionTypeLabel(t *testing.T) {
	assert.Equal(t, "مسدودی موقت", ActionTemporaryBan.Label())
	assert.Equal(t, "مسدودی دائم", ActionPermanentBan.Label())
}

func TestViolationTypeValid(t *testing.T) {
	for _, vt := range ViolationTypes {
		assert.True(t, vt.Valid(), string(vt))
	}
	assert.False(t, ViolationType("").Valid())
	assert.False(t, ViolationType("griefing").Valid())
}
