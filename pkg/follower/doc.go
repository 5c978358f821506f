// ABOUTME: Clock synchronization follower package
// ABOUTME: Measures offset to a remote time source and corrects the local clock
// Package follower keeps a local clock aligned with a single remote time
// source.
//
// A Follower runs one background goroutine that repeatedly collects a batch
// of round-trip samples over TCP, reduces them to an offset and jitter
// estimate, and either leaves the clock alone, jumps it, or slews it by a
// bounded step. Clock access goes through the Clock capability so the same
// loop drives the kernel clock, a process-local virtual clock, or a test fake.
//
// Example:
//
//	f, err := follower.New(follower.Config{
//	    Address:  "10.0.0.2",
//	    Port:     50020,
//	    Interval: 5 * time.Second,
//	    Clock:    sysclock.NewVirtual(),
//	})
//	defer f.Terminate()
//	if f.InSync() { ... }
package follower
