// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that stamp records (the event journal) or schedule a
// deferred action (escalating a coordinator termination to SIGKILL)
// take a Clock instead of calling the time package. Tests pass a
// FakeClock, wait for the component to register its timer with
// WaitForTimers, and fire it with Advance:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	process.Terminate(5 * time.Second) // registers one timer
//	fake.WaitForTimers(1)
//	fake.Advance(5 * time.Second)      // escalation fires here
package clock
