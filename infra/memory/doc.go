// Package memory provides a typed object pool used to recycle
// short-lived allocations on hot paths, such as the generator's
// per-record L2Update buffers, so the producer goroutine does not
// pressure the GC on every burst.
package memory
