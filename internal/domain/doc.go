// Package domain defines the core business types for the briefing engine.
//
// Types in this package are pure value objects with no behavior beyond
// validation helpers: no *sql.DB, no http.Request, no context.Context in
// struct fields. They are the shared language between handlers, services,
// and repositories.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Constants and enums belong here
package domain
