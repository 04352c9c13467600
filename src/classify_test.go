package jt9decode

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func Test_Classify(t *testing.T) {
	var tests = []struct {
		line string
		want LineKind
	}{
		{"001826   4 -0.2 1470 *  CQ EA8TN IL18", LineResult},
		{"  001830 -12  0.3  925 ~  K1ABC W9XYZ -15  ", LineResult},
		{"Decoder parameters:", LineDiagnostic},
		{"<DecodeFinished>   0   3        0", LineDiagnostic},
		{"1234567", LineResult},
		{"123456", LineDiagnostic}, // Not longer than the time field.
		{"12", LineDiagnostic},
		{"", LineDropped},
		{"   \t\r", LineDropped},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.line), "%q", tt.line)
	}
}

func Test_ClassifyRule(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var line = rapid.String().Draw(t, "line")
		var trimmed = strings.TrimSpace(line)

		var kind = Classify(line)

		switch {
		case trimmed == "":
			assert.Equal(t, LineDropped, kind)
		case len(trimmed) > 6 && trimmed[0] >= '0' && trimmed[0] <= '9':
			assert.Equal(t, LineResult, kind)
		default:
			assert.Equal(t, LineDiagnostic, kind)
		}
	})
}

func Test_Demux(t *testing.T) {
	var results bytes.Buffer
	var diag bytes.Buffer

	var d = NewDemux(&results, log.New(&diag))

	var seen []string
	d.OnResult(func(line string) { seen = append(seen, line) })

	assert.Equal(t, LineResult, d.Handle("001826   4 -0.2 1470 *  CQ EA8TN IL18\r"))
	assert.Equal(t, LineDiagnostic, d.Handle("Decoder parameters:"))
	assert.Equal(t, LineDropped, d.Handle(""))
	assert.Equal(t, LineResult, d.Handle("001826  -7  0.1 2210 *  K1ABC EA8TN R-07"))

	assert.Equal(t, "001826   4 -0.2 1470 *  CQ EA8TN IL18\n001826  -7  0.1 2210 *  K1ABC EA8TN R-07\n", results.String())
	assert.Equal(t, []string{"001826   4 -0.2 1470 *  CQ EA8TN IL18", "001826  -7  0.1 2210 *  K1ABC EA8TN R-07"}, seen)
	assert.Equal(t, 2, d.Results())

	assert.Contains(t, diag.String(), "Decoder parameters:")
	assert.Contains(t, diag.String(), "jt9")
	assert.NotContains(t, diag.String(), "EA8TN")
}
