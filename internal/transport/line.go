package transport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxLineLen is the APRS-IS limit for a single line including CRLF.
const MaxLineLen = 512

// ErrLineTooLong is returned for inbound lines exceeding MaxLineLen. The
// offending line is discarded and the connection remains usable.
var ErrLineTooLong = errors.New("line too long")

// ErrInvalidLine marks an outbound line that can never be written, whatever
// the state of the connection.
var ErrInvalidLine = errors.New("invalid line")

// ValidateLine reports whether line fits on the wire as a single APRS-IS line.
func ValidateLine(line string) error {
	if strings.ContainsAny(line, "\r\n") {
		return fmt.Errorf("%w: contains CR or LF: %q", ErrInvalidLine, line)
	}
	if len(line)+2 > MaxLineLen {
		return fmt.Errorf("%w: too long: %d", ErrInvalidLine, len(line))
	}

	return nil
}

func encodeLine(line string) ([]byte, error) {
	if err := ValidateLine(line); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(line)+2)
	out = append(out, line...)
	out = append(out, '\r', '\n')

	return out, nil
}

func readLine(r *bufio.Reader) (string, error) {
	raw, err := r.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		if skipErr := skipToNewline(r); skipErr != nil {
			return "", skipErr
		}

		return "", ErrLineTooLong
	}
	if err != nil {
		return "", err
	}

	return string(bytes.TrimRight(raw, "\r\n")), nil
}

func skipToNewline(r *bufio.Reader) error {
	for {
		_, err := r.ReadSlice('\n')
		if err == nil {
			return nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return fmt.Errorf("skip oversized line: %w", err)
		}
	}
}

func newLineReader(r io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(r, MaxLineLen)
}
