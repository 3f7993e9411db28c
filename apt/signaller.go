package apt

import (
	"context"
	"log/slog"
)

// LogSignaller is the host analogue of the real board's LED blink
// pattern: instead of driving GPIOs, it logs the panic through a
// structured logger (typically backed by diag.Handler so the panic also
// lands in the boot report) and never itself returns an error, matching
// Signaller's best-effort contract.
type LogSignaller struct {
	Logger *slog.Logger
}

// NewLogSignaller creates a LogSignaller writing through logger.
func NewLogSignaller(logger *slog.Logger) *LogSignaller {
	return &LogSignaller{Logger: logger}
}

func (s *LogSignaller) Signal(ctx context.Context, info Info) {
	if s.Logger == nil {
		return
	}
	s.Logger.Error("panic:"+info.Type.String(),
		"type", info.Type.String(),
		"reason", info.Reason.String(),
		"addr", info.Addr,
	)
}
