// Package core ties storage, schema derivation and the exporters together.
//
// It holds the domain logic independent of any transport: the web handlers
// and tests drive the same [Service].
//
// # Ingest
//
// [Service.SaveForm] and [Service.SaveSubmission] read the identifying
// header of a posted document (form uid, or form id plus instance id) and
// store the raw XML. Form definitions are also run through the schema
// extractor so a definition that could never be exported is rejected up
// front.
//
// # Export
//
// [Service.Export] resolves the form's schema, opens a cursor over its
// submissions (newest first) and pushes every row through the requested
// exporter on the calling goroutine:
//
//  1. Acquire a slot from the [ExportLimiter]
//  2. Extract the field schema from the stored form definition
//  3. Stream rows from the store, one WriteRow per row
//  4. Close the exporter, or Abort it if any row or the cursor failed
//
// Memory use is bounded by one row regardless of how many submissions the
// form has. A failure after the first byte has been written cannot be
// reported in-band; callers detect it through [ExportResult.Started].
package core
