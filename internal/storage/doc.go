// Package storage defines the backends behind the local data cache and the
// read-only mirror. Every backend exposes the same small contract (stat, open,
// atomic put, mkdir, list) over slash-separated keys such as
// mms1/fgm/srvy/l2/2015/10/<file>.cdf, so the cache resolver and downloader
// never care whether bytes live on a local disk or in an S3 bucket.
// Put must be atomic at the final key: readers either see the previous object
// or the complete new one, never a partial write.
package storage
