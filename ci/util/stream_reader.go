package util

import (
	"context"
	"io"
)

// ReadResult is the outcome of a single read from a StreamReader.
type ReadResult struct {
	Bytes []byte
	Error error
}

// StreamReader reads from an io.Reader in the background, so that callers can
// stop waiting for output when a context expires.
type StreamReader struct {
	results chan ReadResult
}

// NewStreamReader starts reading from `reader`. Reading stops after the first
// error, or once `ctx` is done.
func NewStreamReader(ctx context.Context, reader io.Reader) *StreamReader {
	sr := &StreamReader{results: make(chan ReadResult)}
	go func() {
		for {
			buf := make([]byte, 4096)
			n, err := reader.Read(buf)

			select {
			case sr.results <- ReadResult{Bytes: buf[:n], Error: err}:
			case <-ctx.Done():
				return
			}

			if err != nil {
				return
			}
		}
	}()
	return sr
}

// Results returns the channel that the result of every read is sent on.
func (sr *StreamReader) Results() <-chan ReadResult {
	return sr.results
}
