package round

import "time"

func (e *Engine) publishMetrics(stepMS float64) {
	s := e.scope
	m := Metrics{
		RoundID:           s.id,
		Phase:             s.phase,
		Tick:              s.tick,
		RoundSecsLeft:     s.secsLeft(time.Now()),
		Connections:       len(s.conns),
		StepMS:            stepMS,
		ActionsApplied:    e.actionsApplied.Load(),
		FramesSent:        e.framesSent.Load(),
		FullFramesSent:    e.fullFramesSent.Load(),
		OutboundDropped:   e.outboundDropped.Load(),
		HealthProbesSent:  e.healthProbesSent.Load(),
		HealthCheckFailed: e.healthCheckFailed.Load(),
		RecoveredPanics:   e.recoveredPanics.Load(),
		RoundsCompleted:   e.roundsCompleted.Load(),
	}
	if stepMS == 0 {
		if prev, ok := e.metrics.Load().(Metrics); ok && prev.RoundID == s.id {
			m.StepMS = prev.StepMS
		}
	}
	for _, c := range s.conns {
		if c.connected() {
			m.Connected++
		}
		if c.observer {
			m.Observers++
		}
	}
	if s.world != nil {
		m.Players, m.Monsters = countCreatures(s)
		m.GroundObjects = s.world.GroundCount()
	}
	if s.dispatch != nil {
		ds := s.dispatch.Stats()
		m.ActionQueueDepth = ds.Depth
		m.ActionsDropped = ds.Dropped
		m.ActionsDuplicate = ds.Duplicates
	}
	if s.sched != nil {
		m.AI = s.sched.Stats()
	}
	e.metrics.Store(m)
}
