// Package engine runs the shared world.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// One goroutine owns the world. Connection readers and collision timers
// never touch it; they enqueue events, and Engine.Run applies them one at
// a time, interleaved with the fixed-rate tick. This ensures:
// - No handler observes another handler's half-finished mutation
// - A tick never sees a partly applied gesture
// - A session's entities are gone before the next snapshot after its
//   disconnect
//
// Tick Flow:
// 1. The tick timer fires (default every 1/30 s)
// 2. The world advances by exactly one physics step
// 3. Collision-start pairs from that step raise colliding flags and arm
//    their clears
// 4. The snapshot is built and handed to the Broadcaster with the ids of
//    every connected session
// 5. The timer is re-armed, so overruns drift instead of piling up
//
// Event Flow:
// 1. Events enqueued to an unbounded FIFO (connect, disconnect, cursor
//    move, pick, release, spawn, collision clear)
// 2. Run dequeues them one at a time
// 3. Apply routes to the session manager, interaction controller or
//    collision notifier
// 4. Connect answers on a reply channel; everything else is fire and forget
//
// ERROR HANDLING:
// Failed events are logged and dropped. A panic in a handler is recovered
// and logged. Nothing an event does can stop the loop or affect other
// sessions.
package engine
