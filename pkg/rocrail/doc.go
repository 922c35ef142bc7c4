// Package rocrail provides an embeddable client for the Rocrail model
// railway server.
//
// The client speaks Rocrail's TCP protocol, keeps a live model of the
// layout, and runs registered automation actions against fast-clock
// ticks and layout events.
//
// # Basic Usage
//
//	cfg := rocrail.DefaultConfig()
//	cfg.Host = "192.168.1.50"
//
//	client, err := rocrail.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	if err := client.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... run until shutdown signal ...
//
//	if err := client.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Layout Access
//
// After Start the client requests the layout plan; once it arrives,
// [Client.Model] exposes typed objects with command methods:
//
//	if lc := client.Model().GetLocomotive("ICE"); lc != nil {
//	    _ = lc.SetSpeed(40)
//	}
//
// # Automation
//
// Actions combine a trigger pattern, an optional condition and a
// script. Time triggers follow the fast clock, event triggers follow
// object updates:
//
//	client.Register(&sched.Action{
//	    Name:      "evening lights",
//	    Pattern:   "18:00",
//	    Condition: "is_off('lights')",
//	    Script: func(ctx context.Context, m *model.Model) (interface{}, error) {
//	        return nil, m.GetOutput("lights").On()
//	    },
//	})
//
// # Event Handling
//
// To observe lifecycle transitions, decoded documents, action
// completions and unexpected disconnects, implement [EventHandler] and
// pass it via [WithEventHandler]. Handlers are called synchronously and
// should return quickly.
//
// # Lifecycle States
//
// A Client is in one of five states: [StateStopped], [StateStarting],
// [StateRunning], [StateStopping], or [StateCrashed]. Use
// [Client.Status] to query the current state. There is no automatic
// reconnect; after an unexpected disconnect the client is Crashed and
// may be started again by the caller.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// Use [ModuleVersions] to get versions of all sub-modules.
package rocrail
