package groq

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// readSSE walks a text/event-stream body and invokes onEvent once per
// event with the joined data lines. Comment lines are skipped.
func readSSE(r io.Reader, onEvent func(data string) error) error {
	br := bufio.NewReader(r)
	var dataLines []string

	flush := func() error {
		if len(dataLines) == 0 {
			return nil
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		if onEvent == nil {
			return nil
		}
		return onEvent(data)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		atEOF := errors.Is(err, io.EOF)
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
			// Comment / keepalive line.
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}

		if atEOF {
			return flush()
		}
	}
}
