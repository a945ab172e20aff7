package model

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_DefaultsPriority(t *testing.T) {
	j := JobDescriptor{TenantID: "acme", TicketID: "TK-1"}.Normalize()
	assert.Equal(t, PriorityMedium, j.Priority)

	j = JobDescriptor{Priority: PriorityCritical}.Normalize()
	assert.Equal(t, PriorityCritical, j.Priority)
}

func TestNormalize_TruncatesDescription(t *testing.T) {
	j := JobDescriptor{Description: strings.Repeat("a", MaxDescriptionLen+100)}.Normalize()
	assert.Len(t, j.Description, MaxDescriptionLen)
}

func TestNormalize_TruncationKeepsValidUTF8(t *testing.T) {
	// Fill up to one byte short of the limit, then a 3-byte rune straddling it.
	desc := strings.Repeat("a", MaxDescriptionLen-1) + "日本語"
	j := JobDescriptor{Description: desc}.Normalize()

	assert.True(t, utf8.ValidString(j.Description), "truncation must not split a rune")
	assert.LessOrEqual(t, len(j.Description), MaxDescriptionLen)
	assert.Equal(t, strings.Repeat("a", MaxDescriptionLen-1), j.Description)
}

func TestNormalize_ShortDescriptionUntouched(t *testing.T) {
	j := JobDescriptor{Description: "Outlook crashes on startup"}.Normalize()
	assert.Equal(t, "Outlook crashes on startup", j.Description)
}
