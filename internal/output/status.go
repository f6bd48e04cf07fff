package output

import (
	"context"
	"fmt"
	"time"
)

func StatusBar(ctx context.Context, refreshRate time.Duration, printF func()) {
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			printF()
		case <-ctx.Done():
			return
		}
	}
}

func PrettyReplayStatus(events, timers, rate uint64) string {
	return fmt.Sprintf("\r%-25s %-25s %-20s",
		fmt.Sprintf("Events: %d", events),
		fmt.Sprintf("Timers: %d", timers),
		fmt.Sprintf("Events/s: %d", rate),
	)
}
