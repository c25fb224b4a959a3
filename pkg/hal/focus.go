package hal

import (
	"github.com/BAT6188/libcamera2/pkg/backend"
)

// AutoFocus pauses face detection and runs one focus pass on its own
// goroutine. The result goes to Listener.OnFocus.
func (c *Controller) AutoFocus() error {
	c.focusMu.Lock()
	defer c.focusMu.Unlock()

	if c.focusDone != nil {
		select {
		case <-c.focusDone:
		default:
			return nil // already focusing
		}
	}

	c.cfg.Lock()
	c.facePaused = true
	c.cfg.Unlock()

	if err := c.dev.SendCommand(backend.PauseFaceDetect{}); err != nil {
		c.log.Debug().Err(err).Msg("[hal] pause face detect")
	}

	done := make(chan struct{})
	c.focusDone = done

	go func() {
		defer close(done)
		c.focus()
	}()

	return nil
}

func (c *Controller) focus() {
	err := c.dev.SendCommand(backend.StartFocus{})
	if err != nil {
		c.log.Warn().Err(err).Msg("[hal] focus")
	}

	c.cfg.Lock()
	c.facePaused = false
	l, msgs := c.listener, c.msgs
	c.cfg.Unlock()

	if l != nil && msgs&MsgFocus != 0 {
		l.OnFocus(err == nil)
	}
}

// CancelAutoFocus waits for the running focus pass to finish.
func (c *Controller) CancelAutoFocus() {
	c.focusMu.Lock()
	done := c.focusDone
	c.focusMu.Unlock()

	if done != nil {
		<-done
	}
}
