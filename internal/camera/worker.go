package camera

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/smazurov/kioskcam/internal/colorspace"
	"github.com/smazurov/kioskcam/internal/events"
	"github.com/smazurov/kioskcam/internal/framestore"
	"github.com/smazurov/kioskcam/internal/metrics"
	"github.com/smazurov/kioskcam/pkg/linuxav/v4l2"
)

// captureStats is written by the worker and read by Status.
type captureStats struct {
	decoded           atomic.Uint64
	skipped           atomic.Uint64
	consecutiveErrors atomic.Int32
	lastFrame         atomic.Int64 // unix nanoseconds
}

// worker is the background capture loop for one streaming session. It
// exits when stop is closed or the device is lost, closing done either way.
type worker struct {
	sess    *session
	opts    Options
	conv    *colorspace.Converter
	store   *framestore.Store
	seq     *atomic.Uint64
	stats   *captureStats
	publish func(events.Event)
	metrics *metrics.Capture
	logger  *slog.Logger

	// onDisconnect runs once on the worker goroutine before it exits.
	onDisconnect func(reason error)

	stop chan struct{}
	done chan struct{}

	lastAccepted time.Time
	spare        *framestore.Frame
}

func (w *worker) run() {
	defer close(w.done)

	var waitErrors, requeueFailures int
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		ready, err := w.sess.dev.WaitReadable(w.opts.PollTimeout)
		if err != nil {
			if isInterrupted(err) {
				continue
			}
			w.metrics.IOError(metrics.ErrorWait)
			if isDeviceGone(err) {
				w.disconnect(err)
				return
			}
			waitErrors++
			w.stats.consecutiveErrors.Store(int32(waitErrors))
			w.logger.Debug("Wait for frame failed", "error", err, "consecutive", waitErrors)
			if waitErrors >= w.opts.DisconnectThreshold {
				w.disconnect(fmt.Errorf("%d consecutive wait errors: %w", waitErrors, err))
				return
			}
			continue
		}
		if !ready {
			continue
		}

		buf, err := w.sess.dev.DequeueBuffer()
		if err != nil {
			if isBenign(err) {
				continue
			}
			w.metrics.IOError(metrics.ErrorDequeue)
			if isDeviceGone(err) {
				w.disconnect(err)
				return
			}
			w.logger.Debug("Dequeue failed", "error", err)
			continue
		}
		waitErrors = 0
		w.stats.consecutiveErrors.Store(0)

		w.handle(buf)

		if err := w.sess.dev.QueueBuffer(buf.Index); err != nil {
			requeueFailures++
			w.metrics.IOError(metrics.ErrorRequeue)
			w.logger.Error("Failed to requeue buffer", "index", buf.Index, "error", err, "consecutive", requeueFailures)
			if isDeviceGone(err) {
				w.disconnect(err)
				return
			}
			if requeueFailures >= w.opts.RequeueFailureLimit {
				w.disconnect(fmt.Errorf("%d consecutive requeue failures: %w", requeueFailures, err))
				return
			}
			continue
		}
		requeueFailures = 0
	}
}

// handle decodes a dequeued buffer into the frame store unless the driver
// flagged it, it arrived inside the rate-limit window, or it is short.
func (w *worker) handle(buf v4l2.Buffer) {
	if buf.Errored() {
		w.skip(metrics.SkipDriverError)
		return
	}

	now := time.Now()
	if w.opts.MinFrameInterval > 0 && !w.lastAccepted.IsZero() && now.Sub(w.lastAccepted) < w.opts.MinFrameInterval {
		w.skip(metrics.SkipRateLimited)
		return
	}

	width, height, stride := int(w.sess.format.Width), int(w.sess.format.Height), w.sess.stride()
	src, ok := w.sess.pool.buffer(buf.Index)
	if ok && buf.BytesUsed > 0 && int(buf.BytesUsed) < len(src) {
		src = src[:buf.BytesUsed]
	}
	if !ok || len(src) < colorspace.SourceSize(width, height, stride) {
		w.logger.Debug("Short buffer", "index", buf.Index, "bytes_used", buf.BytesUsed)
		w.skip(metrics.SkipShortBuffer)
		return
	}

	frame := w.spare
	if frame == nil {
		frame = framestore.NewFrame(width, height)
	} else {
		frame.Resize(width, height)
	}

	start := time.Now()
	w.conv.Convert(frame.Pix, src, width, height, stride)
	elapsed := time.Since(start)

	frame.Sequence = w.seq.Add(1)
	frame.Timestamp = now
	w.spare = w.store.Publish(frame)
	w.lastAccepted = now

	w.stats.decoded.Add(1)
	w.stats.lastFrame.Store(now.UnixNano())
	w.metrics.FrameDecoded(elapsed)

	w.publish(events.FrameAvailableEvent{
		DevicePath: w.sess.path,
		Sequence:   frame.Sequence,
		Width:      width,
		Height:     height,
		Timestamp:  now.Format(time.RFC3339Nano),
	})
}

func (w *worker) skip(reason string) {
	w.stats.skipped.Add(1)
	w.metrics.FrameSkipped(reason)
}

func (w *worker) disconnect(reason error) {
	w.logger.Warn("Device lost, capture halted", "error", reason)
	w.metrics.Disconnected()
	w.onDisconnect(reason)
}
