package sealer

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nguyengg/sealer/codec"
	"github.com/nguyengg/sealer/errs"
	"github.com/nguyengg/sealer/progress"
	"github.com/nguyengg/sealer/progress/progresstest"
	"github.com/nguyengg/sealer/solid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEngine returns an Engine with a cheap KDF that records its events.
func newEngine(t *testing.T, optFns ...func(*Options)) (*Engine, *progresstest.Recorder) {
	t.Helper()

	logger, _ := test.NewNullLogger()
	r := progresstest.NewRecorder()

	return New(append([]func(*Options){
		WithLogger(logger),
		WithSink(r.Sink()),
		func(opts *Options) {
			opts.KDF = solid.KDF{Time: 1, Memory: 64, Threads: 1}
		},
	}, optFns...)...), r
}

// docs creates this tree under a new temporary directory and returns the path to docs:
//
//	docs/a.txt
//	docs/sub/b.txt
func docs(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "docs")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("world"), 0644))

	return dir
}

func readFile(t *testing.T, name string) string {
	t.Helper()

	data, err := os.ReadFile(name)
	require.NoErrorf(t, err, "ReadFile(%s) error = %v", name, err)
	return string(data)
}

func TestEngine_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		method EncryptionMethod
		codec  codec.Codec
		ext    string
	}{
		{name: "strong", method: StrongZip, ext: ".zip"},
		{name: "legacy", method: LegacyZip, ext: ".zip"},
		{name: "solid xz", method: SolidArchive, ext: ".sxa"},
		{name: "solid zstd", method: SolidArchive, codec: codec.ZstdCodec{}, ext: ".sxa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, r := newEngine(t, func(opts *Options) {
				if tt.codec != nil {
					opts.Codec = tt.codec
				}
			})

			src := docs(t)
			out := filepath.Join(t.TempDir(), "archive")

			got, err := e.EncryptFiles(context.Background(), []string{src}, out, "correct-horse", tt.method)
			require.NoErrorf(t, err, "EncryptFiles() error = %v", err)
			assert.Equal(t, "Files encrypted successfully to: "+out+tt.ext, got)
			assert.FileExists(t, out+tt.ext)

			percents := r.Percents()
			require.NotEmpty(t, percents)
			assert.IsNonDecreasing(t, percents)
			assert.Equal(t, 100, percents[len(percents)-1])

			// wrong password writes nothing.
			dst := filepath.Join(t.TempDir(), "out")
			_, err = e.DecryptFile(context.Background(), out+tt.ext, dst, "wrong")
			assert.ErrorIs(t, err, errs.InvalidPassword)
			assert.NoDirExists(t, dst)

			got, err = e.DecryptFile(context.Background(), out+tt.ext, dst, "correct-horse")
			require.NoErrorf(t, err, "DecryptFile() error = %v", err)
			assert.Equal(t, "File decrypted successfully to: "+dst, got)
			assert.Equal(t, "hello", readFile(t, filepath.Join(dst, "docs", "a.txt")))
			assert.Equal(t, "world", readFile(t, filepath.Join(dst, "docs", "sub", "b.txt")))
		})
	}
}

func TestEngine_EncryptFiles_ExcludesOutput(t *testing.T) {
	e, _ := newEngine(t)
	src := docs(t)
	out := filepath.Join(src, "self.zip")

	_, err := e.EncryptFiles(context.Background(), []string{src}, out, "pw", StrongZip)
	require.NoErrorf(t, err, "EncryptFiles() error = %v", err)

	dst := t.TempDir()
	_, err = e.DecryptFile(context.Background(), out, dst, "pw")
	require.NoErrorf(t, err, "DecryptFile() error = %v", err)
	assert.NoFileExists(t, filepath.Join(dst, "docs", "self.zip"))
	assert.FileExists(t, filepath.Join(dst, "docs", "a.txt"))
}

func TestEngine_EncryptFiles_UnknownMethod(t *testing.T) {
	e, _ := newEngine(t)
	out := filepath.Join(t.TempDir(), "archive.zip")

	_, err := e.EncryptFiles(context.Background(), []string{docs(t)}, out, "pw", EncryptionMethod(42))
	assert.ErrorIs(t, err, errs.Format)
	assert.NoFileExists(t, out)
}

func TestEngine_EncryptFiles_MissingPath(t *testing.T) {
	e, _ := newEngine(t)
	out := filepath.Join(t.TempDir(), "archive.zip")

	_, err := e.EncryptFiles(context.Background(), []string{filepath.Join(t.TempDir(), "missing")}, out, "pw", StrongZip)
	assert.ErrorIs(t, err, errs.Traversal)
	assert.NoFileExists(t, out)
}

func TestEngine_Cancel(t *testing.T) {
	tests := []struct {
		name   string
		method EncryptionMethod
	}{
		{name: "strong", method: StrongZip},
		{name: "solid", method: SolidArchive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmp := t.TempDir()
			t.Setenv("TMPDIR", tmp)

			src := filepath.Join(t.TempDir(), "big")
			require.NoError(t, os.MkdirAll(src, 0755))
			require.NoError(t, os.WriteFile(filepath.Join(src, "big.bin"), bytes.Repeat([]byte("x"), 4<<20), 0644))

			var e *Engine
			e, _ = newEngine(t, WithSink(func(ev progress.Event) {
				if ev.Percent > 0 {
					e.Cancel()
				}
			}))

			outDir := t.TempDir()
			out := filepath.Join(outDir, "big"+tt.method.Ext())
			_, err := e.EncryptFiles(context.Background(), []string{src}, out, "pw", tt.method)
			assert.ErrorIs(t, err, errs.Cancelled)

			entries, err := os.ReadDir(outDir)
			require.NoError(t, err)
			assert.Empty(t, entries, "partial output must be removed")

			entries, err = os.ReadDir(tmp)
			require.NoError(t, err)
			assert.Empty(t, entries, "staging directory must be removed")

			assert.False(t, e.Busy())
		})
	}
}

// slowCodec is a gzip codec whose encoder sleeps on every write so that compression outlasts a few Simulate ticks.
type slowCodec struct {
	codec.GzipCodec
}

func (c slowCodec) NewEncoder(dst io.Writer) (io.WriteCloser, error) {
	w, err := c.GzipCodec.NewEncoder(dst)
	return slowWriter{w}, err
}

type slowWriter struct {
	io.WriteCloser
}

func (w slowWriter) Write(p []byte) (int, error) {
	time.Sleep(10 * time.Millisecond)
	return w.WriteCloser.Write(p)
}

func TestEngine_Cancel_WhileCompressing(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	src := filepath.Join(t.TempDir(), "big")
	require.NoError(t, os.MkdirAll(src, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "big.bin"), bytes.Repeat([]byte("x"), 4<<20), 0644))

	var (
		e         *Engine
		cancelled int
	)
	r := progresstest.NewRecorder()
	e, _ = newEngine(t, WithSink(progress.Multi(r.Sink(), func(ev progress.Event) {
		// staging ends at 50%; anything above comes from the compression phase.
		if ev.Percent > 50 && cancelled == 0 {
			cancelled = ev.Percent
			e.Cancel()
		}
	})), func(opts *Options) {
		opts.Codec = slowCodec{}
	})

	outDir := t.TempDir()
	_, err := e.EncryptFiles(context.Background(), []string{src}, filepath.Join(outDir, "big.sxa"), "pw", SolidArchive)
	require.ErrorIs(t, err, errs.Cancelled)
	assert.Greater(t, cancelled, 50)
	assert.Less(t, cancelled, 100)

	// no event after EncryptFiles has returned.
	n := len(r.Events())
	time.Sleep(600 * time.Millisecond)
	assert.Len(t, r.Events(), n)
	assert.NotContains(t, r.Percents(), 100)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "partial output must be removed")

	entries, err = os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "staging directory must be removed")

	assert.False(t, e.Busy())
}

func TestEngine_CancelRightAfterBegin(t *testing.T) {
	e, _ := newEngine(t)

	for i := 0; i < 100; i++ {
		ctl, done, err := e.begin(context.Background())
		require.NoError(t, err)

		e.Cancel()
		assert.ErrorIs(t, ctl.Check(), errs.Cancelled)
		done()

		// the next job starts with a cleared flag.
		ctl, done, err = e.begin(context.Background())
		require.NoError(t, err)
		assert.NoError(t, ctl.Check())
		done()
	}
}

func TestEngine_Cancel_Idle(t *testing.T) {
	e, _ := newEngine(t)
	e.Cancel()
	e.Cancel()

	// a cancel while idle must not affect the next job.
	_, err := e.EncryptFiles(context.Background(), []string{docs(t)}, filepath.Join(t.TempDir(), "a.zip"), "pw", StrongZip)
	assert.NoErrorf(t, err, "EncryptFiles() error = %v", err)
}

func TestEngine_Busy(t *testing.T) {
	var (
		e       *Engine
		busyErr error
	)
	e, _ = newEngine(t, WithSink(func(ev progress.Event) {
		if busyErr == nil {
			_, busyErr = e.DecryptFile(context.Background(), "any.zip", t.TempDir(), "pw")
		}
	}))

	_, err := e.EncryptFiles(context.Background(), []string{docs(t)}, filepath.Join(t.TempDir(), "a.zip"), "pw", StrongZip)
	require.NoErrorf(t, err, "EncryptFiles() error = %v", err)
	assert.ErrorIs(t, busyErr, ErrBusy)
	assert.False(t, e.Busy())
}

func TestEngine_DecryptFile_ContextCancelled(t *testing.T) {
	e, _ := newEngine(t)
	out := filepath.Join(t.TempDir(), "a.zip")
	_, err := e.EncryptFiles(context.Background(), []string{docs(t)}, out, "pw", StrongZip)
	require.NoErrorf(t, err, "EncryptFiles() error = %v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.DecryptFile(ctx, out, t.TempDir(), "pw")
	assert.ErrorIs(t, err, errs.Cancelled)
}

func TestEngine_Logging(t *testing.T) {
	logger, hook := test.NewNullLogger()
	e, _ := newEngine(t, WithLogger(logger))

	_, err := e.EncryptFiles(context.Background(), []string{docs(t)}, filepath.Join(t.TempDir(), "a.zip"), "s3cr3t-pw", StrongZip)
	require.NoErrorf(t, err, "EncryptFiles() error = %v", err)

	require.NotEmpty(t, hook.AllEntries())
	last := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, last.Level)
	assert.Equal(t, "encrypted", last.Message)
	assert.Equal(t, "AES-256", last.Data["method"])

	for _, entry := range hook.AllEntries() {
		s, err := entry.String()
		require.NoError(t, err)
		assert.NotContains(t, s, "s3cr3t-pw")
	}
}

func TestEngine_ListEntryMetadata(t *testing.T) {
	e, _ := newEngine(t)
	src := docs(t)

	got := e.ListEntryMetadata([]string{src, filepath.Join(src, "a.txt"), filepath.Join(src, "missing")})
	require.Len(t, got, 3)
	assert.True(t, got[0].IsDir)
	assert.Equal(t, "a.txt", got[1].Name)
	assert.Equal(t, int64(5), got[1].Size)
	assert.NotEmpty(t, got[2].Error)
}
