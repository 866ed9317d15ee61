package factory

import (
	"context"
	"strconv"

	"github.com/fieldwave/comsrv/internal/bus"
	"github.com/sirupsen/logrus"
)

// WireCommands subscribes to sub for channelID's Control/Adjustment
// messages and forwards each onto a freshly created channel it hands to
// the protocol via SetCommandReceiver. The returned cancel func stops the
// forwarding goroutine and releases the subscription; it does not stop
// the channel's protocol itself.
func WireCommands(ctx context.Context, sub bus.CommandSubscriber, channelID uint16, protocol Protocol, logger logrus.FieldLogger) (context.CancelFunc, error) {
	busCmds, err := sub.Subscribe(ctx, channelID)
	if err != nil {
		return nil, err
	}

	out := make(chan Command)
	protocol.SetCommandReceiver(out)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case cmd, ok := <-busCmds:
				if !ok {
					return
				}
				fc := Command{PointID: cmd.PointID}
				switch cmd.Kind {
				case bus.Control:
					fc.Kind = CommandControl
				case bus.Adjustment:
					fc.Kind = CommandAdjustment
				}
				if v, err := parseCommandValue(cmd.Value); err == nil {
					fc.Value = v
				} else if logger != nil {
					logger.Warnf("command channel=%d point=%s: unparseable value %q: %v", channelID, cmd.PointID, cmd.Value, err)
					continue
				}
				select {
				case out <- fc:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return cancel, nil
}

func parseCommandValue(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
