// Package loader runs a sync: it enumerates request groups, resolves each
// group's files through the catalog, the primary cache, the downloader and the
// mirror, accumulates the results without duplicates and applies the version
// policy. Groups are independent and run on a bounded worker pool; only the
// accumulator is shared between them.
package loader
