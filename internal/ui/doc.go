// Package ui provides the terminal output of the maxcul CLI.
//
// One-shot commands print a Header followed by a Result box through a
// Printer. The monitor command runs MonitorModel, a Bubble Tea program that
// shows the gateway link state, the last known state of every device that
// was heard from and a scrolling log of received messages.
//
// # Feeding the monitor
//
// The transceiver runs on its own goroutine. A Feed turns its callbacks into
// program messages, so the model is only ever touched by Bubble Tea:
//
//	model := ui.NewMonitorModel(port, gateway, known)
//	err := ui.RunMonitor(model, func(feed *ui.Feed) {
//	    tr.AddDispatcher(feed)
//	    go func() {
//	        if err := tr.Run(ctx); err != nil {
//	            feed.Fail(err)
//	        }
//	    }()
//	})
//
// # Logging Integration
//
// zap logging is silent unless MAXCUL_LOG_LEVEL is set, so log lines do not
// tear the monitor's alternate screen. Set it to "debug", "info", "warn" or
// "error" when running the serve command in the foreground.
package ui
