package resilience

import "time"

// Policy bounds retries and the circuit breaker for one class of
// dependency. Unset fields fall back to the model-service profile;
// JitterRatio 0 disables jitter.
type Policy struct {
	Attempts    int
	BaseDelay   time.Duration
	DelayCap    time.Duration
	DelayGrowth float64
	JitterRatio float64

	TripAfter     uint32
	Cooldown      time.Duration
	ProbeRequests uint32

	DisableBreaker bool
}

// ModelServicePolicy suits the embedder, the LLM and the cross-encoder:
// calls are slow, so few attempts with generous spacing, and a long
// cooldown because a reloading model stays down for tens of seconds.
func ModelServicePolicy() Policy {
	return Policy{
		Attempts:      3,
		BaseDelay:     200 * time.Millisecond,
		DelayCap:      2 * time.Second,
		DelayGrowth:   2,
		JitterRatio:   0.2,
		TripAfter:     5,
		Cooldown:      20 * time.Second,
		ProbeRequests: 1,
	}
}

// MessagingPolicy suits NATS publishes: cheap, quick calls that tolerate
// tighter retries and recover faster after a broker restart.
func MessagingPolicy() Policy {
	return Policy{
		Attempts:      4,
		BaseDelay:     25 * time.Millisecond,
		DelayCap:      250 * time.Millisecond,
		DelayGrowth:   2,
		JitterRatio:   0.2,
		TripAfter:     8,
		Cooldown:      10 * time.Second,
		ProbeRequests: 2,
	}
}

func (p Policy) fill() Policy {
	def := ModelServicePolicy()
	out := p

	if out.Attempts <= 0 {
		out.Attempts = def.Attempts
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = def.BaseDelay
	}
	if out.DelayCap <= 0 {
		out.DelayCap = def.DelayCap
	}
	if out.DelayCap < out.BaseDelay {
		out.DelayCap = out.BaseDelay
	}
	if out.DelayGrowth < 1 {
		out.DelayGrowth = def.DelayGrowth
	}
	if out.JitterRatio < 0 || out.JitterRatio >= 1 {
		out.JitterRatio = def.JitterRatio
	}
	if out.TripAfter == 0 {
		out.TripAfter = def.TripAfter
	}
	if out.Cooldown <= 0 {
		out.Cooldown = def.Cooldown
	}
	if out.ProbeRequests == 0 {
		out.ProbeRequests = def.ProbeRequests
	}
	return out
}
