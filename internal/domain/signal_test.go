package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateQuestion(t *testing.T) {
	cases := []struct {
		name     string
		question string
		id       string
		maxLen   int
		want     string
	}{
		{"short stays", "Will BTC hit 100k?", "id", 60, "Will BTC hit 100k?"},
		{"ascii cut", "Will the incumbent win the election?", "id", 12, "Will the ..."},
		{"multibyte cut on rune boundary", "¿Ganará España la Eurocopa 2028?", "id", 10, "¿Ganará..."},
		{"cjk", "比特币会在年底突破十万美元吗", "id", 8, "比特币会在..."},
		{"tiny max has no ellipsis", "Ñandú question", "id", 2, "Ña"},
		{"zero max", "question", "id", 0, ""},
		{"empty question uses id", "", "0xabc", 60, "0xabc"},
		{"long id is shortened", "", strings.Repeat("f", 40), 60, strings.Repeat("f", 20) + "..."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				got := TruncateQuestion(tc.question, tc.id, tc.maxLen)
				assert.Equal(t, tc.want, got)
				assert.True(t, utf8.ValidString(got))
				assert.LessOrEqual(t, utf8.RuneCountInString(got), max(tc.maxLen, 0))
			})
		})
	}
}
