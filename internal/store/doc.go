package store

// Package store persists what has already been announced, per-chat
// notification settings, and the scheduler health log.
//
// Two drivers exist: a JSON file backend for the one-shot notifier and a
// SQLite backend for the long-running bot. The engine never caches store
// contents; the store is the single source of truth for announced state.
