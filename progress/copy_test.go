package progress_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/nguyengg/sealer/errs"
	"github.com/nguyengg/sealer/progress"
	"github.com/nguyengg/sealer/progress/progresstest"
	"github.com/stretchr/testify/assert"
)

func TestCopyBuffer(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 10*1024)
	r := progresstest.NewRecorder()
	c := progress.New(context.Background(), nil, r.Sink(), func(opts *progress.Options) {
		opts.Interval = time.Hour
	})
	c.SetTotal(int64(len(data)))

	var dst bytes.Buffer
	n, err := progress.CopyBuffer(c, &dst, bytes.NewReader(data), make([]byte, 1024))
	assert.NoErrorf(t, err, "CopyBuffer() error = %v", err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, data, dst.Bytes())
	assert.Equal(t, 100, c.Percent())
}

func TestCopyBuffer_Cancel(t *testing.T) {
	data := bytes.Repeat([]byte{'x'}, 1024*1024)
	state := &progress.State{}

	c := progress.New(context.Background(), state, func(e progress.Event) {
		// cancel as soon as anything has been copied.
		if e.Percent > 0 {
			state.Cancel()
		}
	})
	c.SetTotal(int64(len(data)))

	n, err := progress.CopyBuffer(c, io.Discard, bytes.NewReader(data), nil)
	assert.ErrorIs(t, err, errs.Cancelled)
	// cancellation is observed at the very next chunk.
	assert.Equal(t, int64(progress.DefaultChunkSize), n)
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	return len(p) / 2, nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("boom")
}

func TestCopyBuffer_Errors(t *testing.T) {
	c := progress.New(context.Background(), nil, nil)

	_, err := progress.CopyBuffer(c, shortWriter{}, bytes.NewReader([]byte("hello")), nil)
	assert.ErrorIs(t, err, io.ErrShortWrite)

	_, err = progress.CopyBuffer(c, io.Discard, failingReader{}, nil)
	assert.EqualError(t, err, "boom")
}
