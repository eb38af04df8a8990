/*
Package resilience provides a circuit breaker for registry calls.

# Overview

Each registry host gets its own breaker (see Group), so one unreachable
registry fails fast during a sync without slowing the others down.

# States

- Closed: requests pass through and failures are counted within Window
- Open: requests fail immediately with ErrCircuitOpen until Cooldown elapses
- Half-Open: up to MaxProbes trial requests decide whether to close again

	Closed --[ShouldTrip]-> Open --[Cooldown]-> Half-Open --[probes ok]-> Closed
	                                               |
	                                           [failure]
	                                               v
	                                             Open

# Usage

	group := resilience.NewGroup(resilience.DefaultSettings())
	err := group.Get("gitlab.example.com").Do(func() error {
		return fetch()
	})
*/
package resilience
