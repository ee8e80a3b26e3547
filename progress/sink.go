package progress

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// ChanSink sends events to the given channel without blocking; events are dropped while the channel is full.
func ChanSink(ch chan<- Event) Sink {
	return func(e Event) {
		select {
		case ch <- e:
		default:
		}
	}
}

// LogSink logs every event at debug level.
func LogSink(logger logrus.FieldLogger) Sink {
	return func(e Event) {
		logger.WithField("percent", e.Percent).Debug(e.Status)
	}
}

// BarSink renders events on a progress bar whose max should be 100 (see NewBar).
//
// Errors from the progress bar are ignored.
func BarSink(bar *progressbar.ProgressBar) Sink {
	return func(e Event) {
		if e.Status != "" {
			bar.Describe(e.Status)
		}

		_ = bar.Set(e.Percent)
	}
}

// Multi fans out events to all non-nil sinks in order.
func Multi(sinks ...Sink) Sink {
	return func(e Event) {
		for _, s := range sinks {
			if s != nil {
				s(e)
			}
		}
	}
}

// NewBar creates a percentage progress bar that renders to stderr.
func NewBar(description string, options ...progressbar.Option) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		append([]progressbar.Option{
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(10),
			progressbar.OptionThrottle(DefaultInterval),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() {
				_, _ = fmt.Fprint(os.Stderr, "\n")
			}),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
		}, options...)...)
}
