package stream

import (
	"bufio"
	"context"
	"io"
)

const maxLineSize = 1024 * 1024

// Scan reads r line by line and hands every parsed line to fn.
// It stops when r is exhausted, ctx is done, or fn returns an error.
func Scan(ctx context.Context, r io.Reader, fn func(Result) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := fn(ParseLine(scanner.Bytes())); err != nil {
			return err
		}
	}
	return scanner.Err()
}
