// Package cache maps SDC file descriptors onto the on-disk layout of the local
// data cache and decides hits and misses. The layout mirrors the SDC archive:
// <root>/mms<probe>/<instrument>/<rate>/<level>[/<datatype>]/YYYY/MM[/DD] with a
// day directory only for burst data. A hit requires the file to exist with the
// size the catalog reports; size is a staleness heuristic, not an integrity
// check, and any mismatch is handed to the downloader which overwrites the
// stale file. Scan finds cached files for a request without the catalog, which
// is how offline and mirror lookups work.
package cache
