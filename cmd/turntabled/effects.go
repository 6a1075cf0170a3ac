package main

import "log/slog"

// runEffect executes a single reducer-emitted Command.
//
// Design rules:
// - It must never call Reduce() directly.
// - It must never block the daemon loop.
func runEffect(cmd Command, logger *slog.Logger) {
	switch c := cmd.(type) {
	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}

		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
	}
}
