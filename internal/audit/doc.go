// Package audit relays account lifecycle events to a caller-supplied sink.
//
// The Engine decides which events to emit; this package only buffers them and
// hands them to a [Sink] on a single background goroutine. Events never carry
// plaintext codes or tokens, and addresses appear only as short fingerprints.
package audit
