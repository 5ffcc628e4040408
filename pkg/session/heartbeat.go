package session

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/dotsetgreg/parley/pkg/logger"
)

// DefaultHeartbeatSchedule summarizes idle conversations every ten
// minutes.
const DefaultHeartbeatSchedule = "*/10 * * * *"

// Heartbeat periodically forces a summarization pass over every live
// conversation so long-idle sessions keep a fresh compressed context.
// The cadence is a standard cron expression.
type Heartbeat struct {
	dispatcher *Dispatcher
	schedule   string
	gron       *gronx.Gronx
	interval   time.Duration
}

func NewHeartbeat(dispatcher *Dispatcher, schedule string) (*Heartbeat, error) {
	if schedule == "" {
		schedule = DefaultHeartbeatSchedule
	}
	gron := gronx.New()
	if !gron.IsValid(schedule) {
		return nil, fmt.Errorf("invalid heartbeat schedule %q", schedule)
	}
	return &Heartbeat{
		dispatcher: dispatcher,
		schedule:   schedule,
		gron:       gron,
		interval:   time.Minute,
	}, nil
}

// Run ticks once a minute and fires whenever the cron expression is due.
// Blocks until the context is cancelled.
func (h *Heartbeat) Run(ctx context.Context) {
	logger.InfoCF("heartbeat", "Heartbeat started",
		map[string]interface{}{"schedule": h.schedule})
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoCF("heartbeat", "Heartbeat stopped", nil)
			return
		case <-ticker.C:
			due, err := h.gron.IsDue(h.schedule)
			if err != nil {
				logger.WarnCF("heartbeat", "Schedule evaluation failed",
					map[string]interface{}{"error": err.Error()})
				continue
			}
			if due {
				h.fire(ctx)
			}
		}
	}
}

func (h *Heartbeat) fire(ctx context.Context) {
	count := 0
	h.dispatcher.forEachEngine(func(conversationID string, e *Engine) {
		if err := e.FlushSummary(ctx); err != nil {
			logger.WarnCF("heartbeat", "Summary flush failed",
				map[string]interface{}{"conversation_id": conversationID, "error": err.Error()})
			return
		}
		count++
	})
	logger.InfoCF("heartbeat", "Summary sweep complete",
		map[string]interface{}{"engines": count})
}
