// Package batch runs one tool operation over several event ids and
// reports a per-id outcome, so a single failing id does not fail the call.
package batch
