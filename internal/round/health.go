package round

import (
	"time"

	"go.uber.org/zap"

	"roguecloud.io/internal/protocol"
)

// probeHealth sends a HEALTH_PROBE on the connection's slot of the probe cycle and marks
// the connection unhealthy when the previous one went unanswered for the probe window.
func (e *Engine) probeHealth(s *Scope, c *Conn, tick uint64, now time.Time) {
	if !c.connected() {
		return
	}
	window := time.Duration(e.cfg.HealthProbeWindowSeconds) * time.Second
	if c.probeOutstanding && !c.healthFailed && now.Sub(c.probeSentAt) > window {
		c.healthFailed = true
		e.healthCheckFailed.Add(1)
		e.log.Warn("health probe unanswered",
			zap.Int64("round", s.id),
			zap.String("conn", c.token),
			zap.String("transport", c.transportID),
			zap.Int64("probe", c.probeID),
		)
	}

	every := uint64(e.cfg.HealthProbeEveryTicks)
	if every == 0 || tick%every != uint64(c.ordinal)%every || c.probeOutstanding {
		return
	}
	c.probeID++
	c.probeOutstanding = true
	c.probeSentAt = now
	if e.send(c, protocol.HealthProbeMsg{
		Type:            protocol.TypeHealthProbe,
		ProtocolVersion: protocol.Version,
		ID:              c.probeID,
	}) {
		e.healthProbesSent.Add(1)
	}
}
