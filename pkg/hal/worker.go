package hal

import (
	"errors"
	"time"

	"github.com/BAT6188/libcamera2/pkg/backend"
	"github.com/BAT6188/libcamera2/pkg/frame"
)

func (c *Controller) worker(workerID int, ready chan<- error, wake <-chan struct{}, done chan struct{}) {
	defer close(done)

	c.log.Debug().Msgf("[hal] worker start id=%d", workerID)

	for c.step(workerID, ready, wake) {
	}

	c.log.Debug().Msgf("[hal] worker stop id=%d", workerID)
}

// step runs one unit of work for the current state, blocking calls are
// made without holding the state lock
func (c *Controller) step(workerID int, ready chan<- error, wake <-chan struct{}) bool {
	c.mu.Lock()
	if c.workerID != workerID {
		c.mu.Unlock()
		return false
	}
	state := c.state
	c.mu.Unlock()

	switch state {
	case StateStartingPreview:
		return c.started(StateStartingPreview, StateRunningPreview, c.readyToPreview(), ready)

	case StateRunningPreview:
		if err := c.previewFrame(wake); err != nil {
			c.fail(err)
			return false
		}
		return true

	case StateStoppingPreview:
		c.finish(c.freePreview())
		return false

	case StateStartingCapture:
		return c.started(StateStartingCapture, StateRunningCapture, c.readyToCapture(), ready)

	case StateRunningCapture:
		taken, err := c.captureFrame()
		if err != nil {
			c.fail(err)
			return false
		}
		if taken {
			c.mu.Lock()
			if c.state == StateRunningCapture {
				c.setState(StateStoppingCapture, nil)
			}
			c.mu.Unlock()
		}
		return true

	case StateStoppingCapture:
		c.finish(c.freeCapture())
		return false
	}

	return false
}

// started commits the result of a starting step and resolves the host call
func (c *Controller) started(from, to State, err error, ready chan<- error) bool {
	if err != nil {
		c.fail(err)
		ready <- err
		return false
	}

	c.mu.Lock()
	if c.state != from {
		// stop was requested while starting
		c.mu.Unlock()
		ready <- ErrCanceled
		return true
	}
	c.setState(to, nil)
	c.mu.Unlock()

	ready <- nil
	return true
}

// fail releases the streams of the failed activity and returns to idle
func (c *Controller) fail(err error) {
	c.mu.Lock()
	capture := c.state.Capture()
	c.setState(StateError, err)
	c.mu.Unlock()

	c.log.Error().Err(err).Msgf("[hal] camera %d", c.id)

	var cleanup error
	if capture {
		cleanup = c.freeCapture()
	} else {
		cleanup = c.freePreview()
	}
	if cleanup != nil {
		c.log.Warn().Err(cleanup).Msg("[hal] release after error")
	}

	c.mu.Lock()
	c.setState(StateIdle, nil)
	c.mu.Unlock()

	c.cfg.Lock()
	l, msgs := c.listener, c.msgs
	c.cfg.Unlock()

	if l != nil && msgs&MsgError != 0 {
		l.OnError(err)
	}
}

func (c *Controller) finish(err error) {
	if err != nil {
		c.log.Warn().Err(err).Msg("[hal] release")
	}
	c.mu.Lock()
	c.setState(StateIdle, nil)
	c.mu.Unlock()
}

func (c *Controller) readyToPreview() error {
	p := c.Parameters()
	w, h := p.Preview.Width, p.Preview.Height

	if err := c.dev.Connect(c.id); err != nil {
		return err
	}

	format := c.dev.PreviewFormat()
	if err := c.dev.SetParam(backend.PreviewResolution{Width: w, Height: h, Format: format}); err != nil {
		return err
	}

	a, err := c.dev.AllocateStream(frame.KindPreview, w, h, format)
	if err != nil {
		return err
	}
	for _, kind := range a.Evicted {
		c.log.Debug().Msgf("[hal] %s stream evicted", kind)
	}

	if err = c.dev.StartStreaming(); err != nil {
		return err
	}

	c.dropped = 0
	c.surfNeg = nil

	if s := c.snapshot().surface; s != nil {
		if err = c.negotiate(s, w, h); err != nil {
			return err
		}
	}

	if p.Video.Hint {
		if err = c.prepareRecord(p.Video.Format, w, h); err != nil {
			c.log.Warn().Err(err).Msg("[hal] recording slots")
		}
	}

	if err = c.dev.SendCommand(backend.FocusInit{}); err != nil {
		c.log.Debug().Err(err).Msg("[hal] focus init")
	}

	c.log.Debug().Msgf("[hal] preview %dx%d %s", w, h, format)
	return nil
}

func (c *Controller) freePreview() error {
	c.cfg.Lock()
	c.facePaused = false
	c.cfg.Unlock()

	return errors.Join(c.dev.StopStreaming(), c.dev.FreeStream(frame.KindPreview))
}

// previewFrame waits for one frame, dispatches it and sleeps out the rest
// of the frame period unless woken by a stop
func (c *Controller) previewFrame(wake <-chan struct{}) error {
	start := time.Now()

	d, err := c.dev.CurrentFrame(false)
	switch {
	case err == nil:
		c.dispatchPreview(d, start)
	case errors.Is(err, backend.ErrFrameUnavailable):
		c.stats.Lock()
		c.stats.misses++
		c.stats.Unlock()
		c.log.Trace().Err(err).Msg("[hal] preview frame")
	default:
		return err
	}

	if left := c.interval(c.Parameters()) - time.Since(start); left > time.Millisecond {
		timer := time.NewTimer(left)
		select {
		case <-timer.C:
		case <-wake:
			timer.Stop()
		}
	}

	return nil
}

func (c *Controller) readyToCapture() error {
	p := c.Parameters()
	w, h := p.Picture.Width, p.Picture.Height

	if err := c.dev.Connect(c.id); err != nil {
		return err
	}

	format := c.dev.CaptureFormat()
	if err := c.dev.SetParam(backend.CaptureResolution{Width: w, Height: h, Format: format}); err != nil {
		return err
	}

	a, err := c.dev.AllocateStream(frame.KindCapture, w, h, format)
	if err != nil {
		return err
	}
	for _, kind := range a.Evicted {
		c.log.Debug().Msgf("[hal] %s stream evicted", kind)
	}

	if err = c.dev.SendCommand(backend.TakePicture{Width: w, Height: h}); err != nil {
		return err
	}

	c.retries = 0

	c.log.Debug().Msgf("[hal] capture %dx%d %s", w, h, format)
	return nil
}

// captureFrame returns true when the picture was delivered
func (c *Controller) captureFrame() (bool, error) {
	d, err := c.dev.CurrentFrame(true)
	if err != nil {
		if errors.Is(err, backend.ErrFrameUnavailable) && c.retries < captureRetries {
			c.retries++
			c.stats.Lock()
			c.stats.misses++
			c.stats.Unlock()
			return false, nil
		}
		return false, err
	}

	if err = c.dispatchCapture(d); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Controller) freeCapture() error {
	return errors.Join(
		c.dev.SendCommand(backend.StopPicture{}),
		c.dev.FreeStream(frame.KindCapture),
		c.dev.StopStreaming(),
	)
}
