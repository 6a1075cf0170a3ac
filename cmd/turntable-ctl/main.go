package main

// ============================================================================
// turntable-ctl - Command-line client for turntabled
// ============================================================================
// Usage:
//   turntable-ctl sample 1250000      inject a light sensor period (microseconds)
//   turntable-ctl tick [1250000]      inject a hall sensor revolution tick
//   turntable-ctl status              print whether ball release is inhibited
//   turntable-ctl watch               stream gate changes from the state websocket
//
// Options:
//   --socket PATH   Unix domain socket path (default: /tmp/turntabled.sock)
//   --url URL       State websocket URL (default: ws://127.0.0.1:3002/ws/state)
// ============================================================================

func main() {
	Execute()
}
