// Package state defines the persistence-facing contracts of the account
// backing store and ships an in-memory reference implementation.
//
// The store keeps three independently versioned sources:
//   - one account configuration per account (record, watches and the user
//     preference override, always written together);
//   - the identity collection, a single history shared by every account;
//   - the installation default preference document.
//
// Every write produces a new revision derived from the parent revision and the
// encoded content (see revision.Of). Older revisions stay readable, which lets a
// snapshot pin the identity read to the revision its account configuration
// referenced.
//
// Data flow:
//
//	Store -> accountstate.Builder -> *accountstate.Snapshot
//
// Writers accept an expected revision for optimistic concurrency. A non-zero
// expected revision that is not the current head fails with
// ErrRevisionMismatch; the zero revision skips the check.
package state
