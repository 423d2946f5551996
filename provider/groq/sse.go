package groq

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const (
	maxLineSize = 1 << 20
	doneMarker  = "[DONE]"
)

// sseReader yields the data payloads of a server-sent event stream.
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &sseReader{scanner: s}
}

// Next returns the next data payload. Multi-line data fields are joined with
// newlines. It returns io.EOF at the end of the stream or on the [DONE] marker.
func (r *sseReader) Next() (string, error) {
	var lines []string

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			if len(lines) > 0 {
				return strings.Join(lines, "\n"), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			// event:, id: and retry: carry nothing we use
			continue
		}
		data = strings.TrimSpace(data)
		if data == doneMarker {
			return "", io.EOF
		}
		lines = append(lines, data)
	}

	if err := r.scanner.Err(); err != nil {
		return "", fmt.Errorf("read event stream: %w", err)
	}
	if len(lines) > 0 {
		return strings.Join(lines, "\n"), nil
	}
	return "", io.EOF
}
