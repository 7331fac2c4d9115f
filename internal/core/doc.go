// Package core provides the business logic for loading, cleaning and
// exporting tabular data.
//
// This package holds all domain logic independent of any UI or transport
// layer. The web server, the JSON API and the cleancsv CLI all use it
// through [Service].
//
// # Architecture
//
// The package is organized around a few key concepts:
//
//   - Dataset: an immutable-by-convention table of typed columns. Every
//     operation returns a new [Dataset] and leaves its input alone.
//   - Ingestion: CSV and XLSX readers ([ReadDataset]) and a URL [Fetcher].
//     Column types are inferred once at load time ([InferColumn]).
//   - Cleaner: the automatic pipeline (impute, dedupe, IQR outlier filter)
//     producing a [Report].
//   - Transformer: manual mode, a line-oriented program whose expressions
//     are CEL evaluated per row.
//   - Service: sessions, bounded concurrency and the activity log.
//
// # Automatic Cleaning
//
// [Cleaner.Clean] runs three fixed steps in order:
//
//  1. Fill missing numeric cells with the column median and text cells with
//     the most frequent value
//  2. Drop rows identical to an earlier row across every column
//  3. Drop rows with a numeric value outside [Q1 - k*IQR, Q3 + k*IQR]
//
// The report reads:
//
//	✅ Cleaning Completed: Handled 3 missing values, Removed 1 duplicates, Handled 2 outliers using IQR method
//
// # Manual Mode
//
// A program is one statement per line:
//
//	filter row.age >= 18
//	set total = row.price * row.qty
//	fillna city 'Unknown'
//	sort total desc
//
// Statements apply in order to a working copy. The first failure stops the
// run and is returned as a [UserCodeError] naming the line; the session
// keeps its previous dataset.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE006: File errors (size, format, empty, export format)
//   - URL001-URL003: Download errors (scheme, reachability, timeout)
//   - DATA001-DATA002: Data errors (malformed column, nothing loaded)
//   - CODE001-CODE002: Manual mode errors
//   - SES001, JOB001, RATE001: Session expiry and capacity
//
// # Activity Logging
//
// Every operation is recorded in the [ActivityLog] with a severity:
//
//   - Low: Loads and downloads
//   - Medium: Automatic cleaning and resets
//   - High: Manual transformations
//
// Entries older than the retention window are purged by
// [Service.StartMaintenance], which also expires idle sessions.
package core
