package audit

import "context"

// MultiSink fans one append out to several sinks. An error from any sink
// fails the append so the recorder retries the whole record; sinks are
// expected to make retried appends idempotent or tolerate duplicates.
type MultiSink []Sink

// Append writes the record to every sink, returning the first error.
func (m MultiSink) Append(ctx context.Context, rec Record) error {
	for _, sink := range m {
		if err := sink.Append(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
