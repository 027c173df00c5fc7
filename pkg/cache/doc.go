// Package cache provides the bounded caches used by the matcher and the
// guard executor, and a Manager that monitors and sweeps them.
//
//   - Tiered: hot/warm/cold LRU tiers with hit-count promotion and
//     eviction-driven demotion. Used for path resolutions.
//   - TTL: bounded, oldest-first eviction with a fixed entry lifetime. Used
//     for guard results.
//   - Manager: periodic sweep loop plus stats snapshots for monitoring.
//
// Caches are plain values owned by the component that creates them; there
// are no process-wide cache singletons.
package cache
