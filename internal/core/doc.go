// Package core implements the BarkBook client and pet import.
//
// It is independent of HTTP and of Postgres: web handlers, the CLI and tests
// all drive the same code through the [Store], [Finder] and [RunStore]
// interfaces.
//
// # Pipeline
//
// Each input row flows through four stages:
//
//  1. Parse: [ParseCSV] or [ReadSpreadsheet] turn an upload into [ImportRow]s.
//     JSON callers supply rows directly.
//  2. Normalize: [Normalize] maps source columns to a [ClientRecord] and an
//     optional [PetRecord] using the [FieldSpecs] alias table.
//  3. Resolve: the [Importer] asks the Store to insert-or-fetch the client by
//     (organization, email), then the pet by (owner, name). Existing records
//     are reused, never updated.
//  4. Aggregate: counters and row errors accumulate into an [ImportResult].
//
// A failing row is recorded and the import moves on. Only request-level
// problems (empty input, missing organization, cancellation) are returned as
// errors.
//
// # Runs
//
// [Service] wraps the importer with a concurrency limit, an overall timeout,
// dry runs, checksums for repeated uploads and the run history ledger.
package core
