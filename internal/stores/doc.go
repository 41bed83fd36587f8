// Package stores holds the Redis record store behind the profile cache.
//
// A [ProfileRecord] is the raw profile document plus the time it was
// fetched, JSON encoded under "<prefix>:profile:<user id>". Records carry
// no TTL in Redis: staleness is decided by the reader, which may still
// serve an old record while offline.
package stores
