package instance

import (
	"fmt"
	"time"

	"github.com/dvhost/dvhost/types"
)

// PollInterval is how often WaitStopped re-checks isRunning.
const PollInterval = 10 * time.Millisecond

// WaitStopped polls node's isRunning attribute until it observes false or
// timeout elapses. It deliberately watches isRunning rather than the
// instance's internal state, since isRunning is the attribute external
// callers are contractually allowed to rely on.
func WaitStopped(node types.Node, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		v, err := node.GetAttr("isRunning", types.TypeBool)
		if err != nil {
			return err
		}
		if !v.Bool() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: did not stop within %s", types.ErrModuleRunning, timeout)
		}
		time.Sleep(PollInterval)
	}
}
