// Package models defines the core domain models for escrowd.
//
// # Current Models
//
//   - Project: a single escrow agreement between a payer and a payee
//   - Event: an append-only audit record of one lifecycle transition
//   - User: a registered account backing an authenticated principal
//
// Principals are opaque strings. The escrow core only ever compares them for
// equality; it does not know or care how they were authenticated.
//
// # Design Principles
//
// 1. **Snapshots over references**: services and the RPC layer receive value
// copies of Project, never pointers into the ledger's live table.
// 2. **Integer money**: amounts are uint64 in the smallest indivisible unit.
// No floating point anywhere near custody.
// 3. **Avoid circular references**: models reference each other by ID, not by
// pointer.
package models
