package log

import (
	"log/slog"
	"time"
)

func Flow(name string) slog.Attr {
	return slog.String("flow", name)
}

func JobID[T ~string](id T) slog.Attr {
	return slog.String("job_id", string(id))
}

func RunID(id string) slog.Attr {
	return slog.String("run_id", id)
}

func Target(key string) slog.Attr {
	return slog.String("target", key)
}

func Model(ref string) slog.Attr {
	return slog.String("model", ref)
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func Kind[T ~string](kind T) slog.Attr {
	return slog.String("kind", string(kind))
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}
