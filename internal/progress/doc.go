// Package progress implements the state-broadcast protocol. A component that
// owns some state publishes full snapshots of it to a Broadcaster; every
// registered Listener receives them on its own goroutine through a bounded
// buffer that drops the oldest snapshot when full, so publishers never block.
package progress
