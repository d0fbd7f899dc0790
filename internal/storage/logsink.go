package storage

import "context"

// LogSink writes invocation logs as objects below a location.
type LogSink struct {
	Store    Store
	Location Location
}

// WriteLog implements logging.Sink.
func (s LogSink) WriteLog(ctx context.Context, name string, data []byte) error {
	return PutBytes(ctx, s.Store, s.Location.Ref(name), data)
}
