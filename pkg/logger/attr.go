package logger

import (
	"log/slog"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// BroadcastID records the broadcast identifier under the key "broadcast_id".
// If id is nil, it returns an empty Attr.
func BroadcastID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("broadcast_id", id)
}

// RecipientID records the recipient identifier under the key "recipient_id".
// If id is nil, it returns an empty Attr.
func RecipientID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("recipient_id", id)
}

// JobID records the outbound email job identifier under the key "job_id".
// If id is nil, it returns an empty Attr.
func JobID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("job_id", id)
}

// Kind records the broadcast kind under the key "kind".
func Kind(kind string) slog.Attr {
	return slog.String("kind", kind)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// RetryCount records the retry count under the key "retry_count".
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}
