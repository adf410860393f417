// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bus is the in-process broadcast channel shared by ceremony
// participants. Any number of producers publish [ceremony.Event]
// values; every subscriber receives every event published after it
// subscribed, in publish order.
//
// Delivery is lossless: Publish blocks until each subscriber's buffer
// accepts the event, the subscriber unsubscribes, the bus closes, or
// the publish context is cancelled. A slow subscriber therefore slows
// producers rather than silently missing lifecycle events. Size the
// subscriber buffer for the expected burst.
//
//	events := bus.New()
//	subscription := events.Subscribe(64)
//	defer subscription.Close()
//	go func() {
//	    for event := range subscription.Events() { ... }
//	}()
//	err := events.Publish(ctx, ceremony.RoundStarted(1))
package bus
