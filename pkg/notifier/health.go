package notifier

import (
	"context"

	"github.com/tutorboard/notifier/pkg/logger"
	"github.com/tutorboard/notifier/pkg/queue"
)

// HealthStatus is a point-in-time snapshot of the delivery machinery. The
// engine keeps working with an unhealthy broker (direct send takes over),
// so BrokerHealthy=false is a degradation signal, not an outage.
type HealthStatus struct {
	BrokerConfigured bool        `json:"broker_configured"`
	BrokerHealthy    bool        `json:"broker_healthy"`
	QueueDepth       queue.Depth `json:"queue_depth"`
}

// Health probes the broker and reads queue depth. It never returns an
// error; broker trouble is reported in the status itself.
func (s *Service) Health(ctx context.Context) HealthStatus {
	st := HealthStatus{BrokerConfigured: s.enqueuer != nil && s.brokerPing != nil}
	if !st.BrokerConfigured {
		return st
	}

	st.BrokerHealthy = s.probeBroker(ctx)

	if s.queueStats != nil {
		depth, err := s.queueStats(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to read queue depth", logger.Error(err))
		} else {
			st.QueueDepth = depth
		}
	}

	return st
}
