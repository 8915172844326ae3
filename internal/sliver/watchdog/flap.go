// Package watchdog supervises a single gateway child process: spawning
// it, waiting for it to die, deciding whether to respawn, and applying
// flap control so a crash-looping gateway doesn't spin the host.
package watchdog

import "time"

// FlapPolicy decides, given when the child was last spawned and the
// current backoff delay, how long to wait before spawning again and
// what the next delay should be. It is a pure function so the backoff
// curve can be tested without sleeping.
//
// A child that lives longer than reset earns a clean slate (delay
// resets to its floor); a child that dies before threshold has elapsed
// pays the current delay and doubles it, capped at reset.
func FlapPolicy(lastSpawn, now time.Time, delay, threshold, reset time.Duration) (wait, nextDelay time.Duration) {
	if delay <= 0 {
		delay = time.Second
	}

	elapsed := now.Sub(lastSpawn)
	if elapsed > reset {
		delay = time.Second
	}

	if threshold <= 0 || elapsed >= threshold {
		return 0, delay
	}

	nextDelay = delay * 2
	if nextDelay > reset {
		nextDelay = reset
	}
	return delay, nextDelay
}
