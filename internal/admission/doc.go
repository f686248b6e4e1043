// Package admission bounds the number of concurrent in-flight invocations of
// each function.
//
// # State Machine
//
// Each task name owns a counter of running invocations and a FIFO queue of
// waiting tickets. A task is Idle (running == 0), Busy (0 < running < limit)
// or Saturated (running == limit). Acquire grants immediately below the
// limit; otherwise the caller queues and waits up to the configured timeout
// (30s by default) for a slot.
//
// # Handoff
//
// Releasing a slot while waiters exist does not decrement the counter: the
// slot is handed directly to the head of the queue, so there is never a
// window where a slot is free but uncounted, and waiters are served in
// arrival order.
//
// # Races
//
// A waiter races its ticket against the timeout and its context. All
// outcomes are settled under the controller mutex: a ticket is either
// granted or abandoned, never both, so a late grant can not double-count.
// A grant that lands together with a timeout is kept; a grant that lands
// together with a cancellation is passed on to the next waiter.
package admission
