package groq

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEReader(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive",
		"",
		"event: message",
		"data: {\"a\":1}",
		"",
		"data: first",
		"data: second",
		"",
		"id: 7",
		"data:{\"b\":2}",
		"",
		"data: [DONE]",
		"",
		"data: after-done",
		"",
	}, "\n")

	r := newSSEReader(strings.NewReader(stream))

	var got []string
	for {
		data, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, data)
	}
	assert.Equal(t, []string{`{"a":1}`, "first\nsecond", `{"b":2}`}, got)
}

func TestSSEReader_TrailingEventWithoutBlankLine(t *testing.T) {
	r := newSSEReader(strings.NewReader("data: tail"))

	data, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "tail", data)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestSSEReader_LineTooLong(t *testing.T) {
	r := newSSEReader(strings.NewReader("data: " + strings.Repeat("x", maxLineSize+1) + "\n\n"))

	_, err := r.Next()
	assert.ErrorIs(t, err, bufio.ErrTooLong)
}
