package slottime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
)

func TestNormalizeBusinessOrder(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "plain morning and afternoon", in: []string{"14:00", "9:00", "7:30"}, want: []string{"7:30", "9:00", "14:00"}},
		{name: "hour below seven reads as pm", in: []string{"2:30", "9:00"}, want: []string{"9:00", "2:30"}},
		{name: "duplicates keep first spelling", in: []string{"09:00", "9:00", "10:00"}, want: []string{"09:00", "10:00"}},
		{name: "whitespace trimmed", in: []string{" 10:00", "9:30 "}, want: []string{"9:30", "10:00"}},
		{name: "empty", in: nil, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeFailsWholeSetOnMalformedEntry(t *testing.T) {
	for _, bad := range []string{"9", "9:5", "25:00", "10:60", "ten", "9:00am", "-1:00", ""} {
		_, err := Normalize([]string{"9:00", bad})
		assert.ErrorIs(t, err, model.ErrInvalidTimeFormat, bad)
	}
}

func TestKeyCanonicalizes(t *testing.T) {
	a, err := Key("9:00")
	require.NoError(t, err)
	b, err := Key("09:00")
	require.NoError(t, err)
	assert.Equal(t, "09:00", a)
	assert.Equal(t, a, b)
}

func TestLessTieBreaksOnKey(t *testing.T) {
	pm, _ := Parse("14:30")
	shorthand, _ := Parse("2:30")
	assert.True(t, Less(shorthand, pm))
	assert.False(t, Less(pm, shorthand))
}

func TestKeySet(t *testing.T) {
	set := KeySet([]string{"9:00", "14:00", "bogus"})
	assert.Len(t, set, 2)
	assert.Contains(t, set, "09:00")
}
