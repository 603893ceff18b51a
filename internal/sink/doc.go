// Package sink writes crawl results incrementally.
//
// A Sink receives results in completion order from many goroutines. Each
// implementation serializes its own I/O with a mutex so records never
// interleave, and writes every record as soon as it arrives so an
// interrupted run keeps what it already fetched.
//
// Two encodings are provided. CSV is row oriented: the first record fixes
// the header and later records must carry the same field set. JSON is a
// single array framed by hand: "[" before the first element, ",\n"
// between elements and "]" written only by Finalize. Before Finalize the
// file is a well-formed prefix of the array.
package sink
