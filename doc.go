// Package userd is a small REST service for a single "user" entity. Users live
// in a wide-column store (Cassandra/ScyllaDB over CQL, or any DynamoDB-API
// endpoint) and reads are accelerated by a key-value cache (Redis by default).
//
// Components:
//   - store.Store: the database of record. One statement per operation, no
//     transactions, default consistency of the backend.
//   - cache.Users: cache-aside copies of single users and of the full list.
//     Entries are framed with a per-key generation so a slow read-miss fill
//     can never overwrite a newer value written by a mutation.
//   - service.Users: the create/read/update/delete state machines.
//   - api: gin routes and the {message, success, data} envelope.
//
// Keys (cache):
//
//	single:<ns>:<id>                - one user
//	single:<ns>:list:all_users      - the whole collection
//
// Read pattern:
//
//	obs := users.SnapshotUser(ctx, id) // before DB read
//	u   := store.GetByID(ctx, id)
//	_   = users.SetUserWithGen(ctx, u, obs) // write iff current gen == obs
//
// The store stays authoritative. Cache transport errors degrade to
// store-only operation and are reported through Hooks.
package userd
