// Package validation provides result types for validation that reports every
// problem with an input in one pass instead of stopping at the first.
//
// # Errorable
//
// An Errorable[T] is either a success holding a T or a failure holding one or
// more messages. Independent field reads are combined with Accumulate:
//
//	result := validation.Accumulate(Record{},
//	    validation.Apply(readName(in), Record.WithName),
//	    validation.Apply(readStart(in), Record.WithStart),
//	)
//	result.Match(
//	    func(r Record) { ... },
//	    func(errs []string) { ... },
//	)
//
// Every read runs even when an earlier one failed, and the failure lists the
// messages of every failing read in the order they were given.
//
// # Timestamps
//
// TimestampParser reads RFC 3339 (and a few shorthand layouts) and reports
// malformed input through the Errorable channel, naming the field and the
// offending value.
package validation
