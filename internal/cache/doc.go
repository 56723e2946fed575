// Package cache provides StatusHub's namespaced two-tier key-value store.
//
// Every entry is addressed by (namespace, key). The in-memory tier is a
// bounded LRU with lazy TTL expiry; the optional durable tier is a SQLite
// table that survives restarts. Writes go to the memory tier first and then
// synchronously to the durable tier, so a read immediately after a write
// observes the new value regardless of tier.
//
// The package knows nothing about domain semantics; the state and enrich
// packages layer their own policies (namespaces, TTLs) on top.
package cache
