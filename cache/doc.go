// Package cache provides the key-value substrate that persists client state.
//
// A Cache stores opaque byte values under validated keys and can read, write
// and delete several keys as one atomic step. MemoryCache keeps entries in
// process; RedisCache shares them across processes through Redis.
package cache
