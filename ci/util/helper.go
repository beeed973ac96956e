package util

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/sidkik/foldersync/pkg/errors"
)

// TestHelper contains methods commonly used during integration tests.
type TestHelper struct {
	// Binary is the path to the foldersync binary under test.
	Binary string
}

// NewTestHelper creates a new TestHelper.
func NewTestHelper(binary string) (*TestHelper, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, errors.WithContext(err, "find foldersync binary")
	}
	return &TestHelper{Binary: path}, nil
}

// Start starts the given foldersync command. It returns a stream of the
// stdout output, and a channel for obtaining any errors after starting the
// command, and any errors from starting the command. Cancelling `ctx` stops
// the command with SIGTERM.
func (helper *TestHelper) Start(ctx context.Context, args ...string) (
	*StreamReader, chan error, error) {

	cmd := exec.Command(helper.Binary, args...)

	stdoutReader, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}

	stderr := bytes.NewBuffer(nil)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	errChan := make(chan error, 1)
	go func() {
		waitErr := make(chan error)
		go func() {
			waitErr <- cmd.Wait()
			close(waitErr)
		}()

		defer close(errChan)
		select {
		case <-ctx.Done():
			if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
				errChan <- errors.WithContext(err, "kill")
				return
			}
			if err := <-waitErr; err != nil {
				errChan <- fmt.Errorf("exited uncleanly (%s): stderr: %s", err, stderr)
			}
		case err := <-waitErr:
			errChan <- fmt.Errorf("exited before it was stopped (%v): stderr: %s", err, stderr)
		}
	}()
	return NewStreamReader(ctx, stdoutReader), errChan, nil
}

// Run runs the given foldersync command to completion, and returns its
// combined output.
func (helper *TestHelper) Run(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, helper.Binary, args...).CombinedOutput()
}

// WaitForOutput blocks until `expOutput` is read from `streamReader`, or `ctx`
// has expired. Output read before the call isn't considered.
func WaitForOutput(ctx context.Context, streamReader *StreamReader, expOutput []byte) error {
	actualOutput := bytes.NewBuffer(nil)
	for {
		select {
		case <-ctx.Done():
			return errors.New("cancelled")
		case r := <-streamReader.Results():
			if r.Error != nil {
				return errors.WithContext(r.Error, "read")
			}
			if _, err := actualOutput.Write(r.Bytes); err != nil {
				return errors.WithContext(err, "copy")
			}

			if bytes.Contains(actualOutput.Bytes(), expOutput) {
				return nil
			}
		}
	}
}

// TestWithRetry runs `test` until it passes, or `ctx` expires. The test is
// rerun whenever `trigger` fires, and with an exponential backoff otherwise.
func TestWithRetry(ctx context.Context, trigger chan struct{}, test func() bool) bool {
	maxSleepTime := 5 * time.Second
	sleepTime := 100 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return test()
		case <-time.After(sleepTime):
			sleepTime *= 2
			if sleepTime > maxSleepTime {
				sleepTime = maxSleepTime
			}
		case <-trigger:
		}

		if test() {
			return true
		}
	}
}
