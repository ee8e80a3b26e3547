package sealer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/sealer/codec"
	"github.com/nguyengg/sealer/extract"
	"github.com/nguyengg/sealer/manifest"
	"github.com/nguyengg/sealer/progress"
	"github.com/nguyengg/sealer/solid"
	"github.com/sirupsen/logrus"
)

// Options customises New.
type Options struct {
	// Sink receives the progress events of every job.
	//
	// Default to no sink.
	Sink progress.Sink

	// Logger receives job start and finish messages as well as warnings about failed clean-ups.
	//
	// Default to logrus.StandardLogger.
	Logger logrus.FieldLogger

	// Interval is the minimum duration between two progress events reporting the same percentage.
	//
	// Default to progress.DefaultInterval.
	Interval time.Duration

	// BufferSize is the length of the buffer used by every copy loop.
	//
	// Default to progress.DefaultChunkSize.
	BufferSize int

	// Codec is the compression codec of SolidArchive archives.
	//
	// Default to codec.XzCodec.
	Codec codec.Codec

	// KDF controls the cost of deriving the key of SolidArchive archives.
	//
	// Default to solid.DefaultKDF.
	KDF solid.KDF
}

// WithLogger sets Options.Logger.
func WithLogger(logger logrus.FieldLogger) func(*Options) {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithSink sets Options.Sink.
func WithSink(sink progress.Sink) func(*Options) {
	return func(opts *Options) {
		opts.Sink = sink
	}
}

// Engine runs archive jobs.
//
// An Engine runs at most one job at a time; starting a job while another is running returns ErrBusy. The zero value
// is not usable, use New instead.
type Engine struct {
	opts  Options
	state progress.State

	// mu guards busy together with the start of state so a Cancel cannot land between the two.
	mu   sync.Mutex
	busy atomic.Bool
}

// New creates a new Engine.
func New(optFns ...func(*Options)) *Engine {
	e := &Engine{opts: Options{
		Logger:     logrus.StandardLogger(),
		Interval:   progress.DefaultInterval,
		BufferSize: progress.DefaultChunkSize,
		Codec:      codec.XzCodec{},
		KDF:        solid.DefaultKDF,
	}}
	for _, fn := range optFns {
		fn(&e.opts)
	}

	return e
}

// ListEntryMetadata returns the metadata of the given paths in the same order.
//
// A path that cannot be inspected has its Metadata.Error set instead of failing the whole call.
func (e *Engine) ListEntryMetadata(paths []string) []manifest.Metadata {
	return manifest.Inspect(paths)
}

// EncryptFiles archives the given paths into output with the given password and method.
//
// Selecting a directory archives its whole tree under the directory's own name. output is never included in the
// archive even if it is inside one of the paths. If output has no extension, the method's extension is appended.
//
// output is created atomically: on failure or cancellation, nothing is left at output, and an existing file at output
// is replaced only on success.
//
// Returns a success message that names output.
func (e *Engine) EncryptFiles(ctx context.Context, paths []string, output string, password Password, method EncryptionMethod) (string, error) {
	a, err := e.archiverFor(method)
	if err != nil {
		return "", err
	}

	if filepath.Ext(output) == "" {
		output += a.Ext()
	}

	ctl, done, err := e.begin(ctx)
	if err != nil {
		return "", err
	}
	defer done()

	log := e.opts.Logger.WithFields(logrus.Fields{
		"method": a.Name(),
		"output": output,
	})

	ctl.Status("collecting files")
	m, err := manifest.Collect(ctl.Context(), paths, output)
	if err != nil {
		log.WithError(err).Debug("collect files error")
		return "", err
	}

	log = log.WithFields(logrus.Fields{
		"entries": len(m.Entries),
		"size":    humanize.IBytes(uint64(m.TotalBytes)),
	})
	log.Info("encrypting")

	start := time.Now()
	if err = a.Write(ctl, m, output, string(password)); err != nil {
		log.WithError(err).Info("encrypt error")
		return "", err
	}

	ctl.Done()
	log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Info("encrypted")

	return fmt.Sprintf("Files encrypted successfully to: %s", output), nil
}

// DecryptFile extracts the named archive into outputDir, creating outputDir if needed.
//
// The format is detected from the extension then from the contents, see extract.Detect. A wrong password is
// detected before anything is written. Existing files in outputDir are never overwritten.
//
// Returns a success message that names outputDir.
func (e *Engine) DecryptFile(ctx context.Context, archive, outputDir string, password Password) (string, error) {
	ctl, done, err := e.begin(ctx)
	if err != nil {
		return "", err
	}
	defer done()

	log := e.opts.Logger.WithFields(logrus.Fields{
		"archive": archive,
		"output":  outputDir,
	})
	log.Info("decrypting")

	start := time.Now()
	root, err := extract.Extract(ctl, archive, outputDir, string(password), func(opts *extract.Options) {
		opts.BufferSize = e.opts.BufferSize
		opts.Logger = log
	})
	if err != nil {
		log.WithError(err).Info("decrypt error")
		return "", err
	}

	ctl.Done()
	log.WithFields(logrus.Fields{
		"root":    root,
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("decrypted")

	return fmt.Sprintf("File decrypted successfully to: %s", outputDir), nil
}

// Cancel requests the running job to stop.
//
// Cancel is idempotent and has no effect when no job is running.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.busy.Load() {
		e.state.Cancel()
	}
}

// Busy returns true while a job is running.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

// begin marks the start of a job; the returned function must be called when the job finishes.
func (e *Engine) begin(ctx context.Context) (*progress.Controller, func(), error) {
	e.mu.Lock()
	if e.busy.Load() {
		e.mu.Unlock()
		return nil, nil, ErrBusy
	}

	ctx, cancel := e.state.Begin(ctx)
	e.busy.Store(true)
	e.mu.Unlock()

	ctl := progress.New(ctx, &e.state, e.opts.Sink, func(opts *progress.Options) {
		opts.Interval = e.opts.Interval
	})

	return ctl, func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		cancel()
		e.busy.Store(false)
	}, nil
}
