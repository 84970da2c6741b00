package browsermap

import (
	"context"

	"github.com/starfederation/datastar-go/datastar"
)

// DatastarSender dispatches each command as a Datastar custom event named
// EventName. The page's map script listens for it on window.
func DatastarSender(ctx context.Context, sse *datastar.ServerSentEventGenerator) func(Command) error {
	return func(cmd Command) error {
		if err := sse.DispatchCustomEvent(EventName, cmd); err != nil {
			return err
		}
		return ctx.Err()
	}
}

// Status patches the page's map signals, used to show what the view holds.
func Status(sse *datastar.ServerSentEventGenerator, signals any) error {
	return sse.MarshalAndPatchSignals(signals)
}
