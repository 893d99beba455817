package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	f := NewFilter()
	cases := []struct {
		name     string
		text     string
		category Category
	}{
		{"currency symbol", "can I pay $5 for this?", CategoryPayment},
		{"selling", "Are you SELLING it?", CategoryPayment},
		{"payment wins over abuse", "you idiot, just give me the cash", CategoryPayment},
		{"payment wins over contact", "send the price to my whatsapp", CategoryPayment},
		{"phone number", "reach me on 98765 43210", CategoryContact},
		{"phone with country code", "+91-98765-43210", CategoryContact},
		{"email", "write to jane.doe@example.org", CategoryContact},
		{"social media", "add me on Instagram", CategoryContact},
		{"address", "What is your address?", CategoryContact},
		{"abuse", "don't be stupid", CategoryAbuse},
		{"abuse wins over suspicious", "shut up, this is a scam", CategoryAbuse},
		{"suspicious", "is this jacket stolen", CategorySuspicious},
		{"allowed", "See you near the library entrance", CategoryNone},
		{"word boundary", "I'm free in two hours", CategoryNone},
		{"short digit runs", "gate 12, flat block B, 4pm", CategoryNone},
		{"pickup date and time", "Can we meet on 2025-01-10 10:00?", CategoryNone},
		{"date range with times", "2025-01-10 10:00 - 2025-01-11 18:30 works", CategoryNone},
		{"bracketed area code", "ring (022) 2345 6789", CategoryContact},
		{"contiguous digits", "9876543210", CategoryContact},
		{"dotted groups", "my cell 98765.43210", CategoryContact},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := f.Classify(tc.text)
			assert.Equal(t, tc.category, v.Category)
			assert.Equal(t, tc.category == CategoryNone, v.Allowed)
			if !v.Allowed {
				assert.NotEmpty(t, v.Warning)
			}
		})
	}
}

func TestClassifyWarnings(t *testing.T) {
	f := NewFilter()
	assert.Equal(t, WarningPayment, f.Classify("what does it cost").Warning)
	assert.Equal(t, WarningContact, f.Classify("call me later").Warning)
	assert.Equal(t, WarningAbuse, f.Classify("what a loser").Warning)
	assert.Equal(t, WarningSuspicious, f.Classify("sounds like fraud").Warning)
	assert.Contains(t, WarningContact, "general area")
}
