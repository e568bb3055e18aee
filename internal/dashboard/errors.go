package dashboard

import (
	"strings"

	"github.com/joeblew999/geodash/internal/analytics"
	"github.com/joeblew999/geodash/internal/effect"
	"github.com/joeblew999/geodash/internal/metrics"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CaptureError records an uncaught runtime error. Only messages that look
// critical or fatal reach the page.
func (d *Dashboard) CaptureError(source string, err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	metrics.RuntimeErrorsTotal.Inc()
	d.analytics.Track(analytics.RuntimeError, map[string]any{"source": source, "message": msg})
	d.log.Error("runtime error captured", zap.String("source", source), zap.Error(err))

	if IsCritical(msg) {
		d.effects.Emit(effect.Error("Erro crítico detectado no sistema"))
	}
}

// Recovered records a value obtained from recover().
func (d *Dashboard) Recovered(source string, v any) {
	err, ok := v.(error)
	if !ok {
		err = eris.Errorf("%v", v)
	}
	d.CaptureError(source, eris.Wrap(err, "panic"))
}

// IsCritical reports whether msg mentions "critical" or "fatal" in any case.
func IsCritical(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "critical") || strings.Contains(m, "fatal")
}

// trackingSink records every notification in analytics on its way out.
type trackingSink struct {
	next      effect.Sink
	analytics *analytics.Sink
}

func (s *trackingSink) Emit(e effect.Effect) {
	if e.Kind == effect.KindNotify {
		s.analytics.Track(analytics.NotificationShown, map[string]any{
			"type":     e.Level,
			"message":  e.Message,
			"duration": e.Duration.Milliseconds(),
		})
	}
	s.next.Emit(e)
}
