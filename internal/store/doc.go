// Package store provides persistent storage for spacesync using SQLite.
//
// Two tables back the sync engine:
//
//   - mappings: one row per course that has a Circle space. course_id is the
//     primary key, so at most one space ever exists per course. Renames update
//     course_name/slug/updated_at in place; space_id is never rewritten to a
//     different space.
//   - action_log: append-only record of every mutating Circle call
//     (space_created, space_updated, space_deleted, user_invited). Entries are
//     never updated or deleted.
//
// The store is the single local authority for "does this course already have a
// space" - Circle has no reverse lookup by course, so the reconcilers never
// infer this by querying Circle.
//
// SQLite runs in WAL mode with a busy timeout so concurrent enrollment events
// and a running reconcile tick can share the database. Timestamps are stored as
// RFC3339 UTC text. Use NewSQLiteStore(":memory:") in tests.
package store
