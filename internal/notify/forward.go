package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/techvaseegrah/gymsaas-sub001/internal/attendance"
	"github.com/techvaseegrah/gymsaas-sub001/internal/queue"
)

const sendTimeout = 10 * time.Second

// Sender delivers one punch notification.
type Sender interface {
	PunchRecorded(ctx context.Context, evt attendance.Event) error
}

// Forward sends every punch event from msgs until the channel closes. Event times are
// shown in loc. Failed sends are logged and skipped.
func Forward(ctx context.Context, msgs <-chan queue.Message, to Sender, loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	for msg := range msgs {
		if msg.Type != queue.TypePunch {
			continue
		}
		var evt attendance.Event
		if err := msg.Decode(&evt); err != nil {
			zap.L().Warn("dropping undecodable punch event", zap.Error(err))
			continue
		}
		evt.At = evt.At.In(loc)

		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := to.PunchRecorded(sendCtx, evt)
		cancel()
		if err != nil {
			zap.L().Warn("chat notification failed",
				zap.String("punch_id", evt.PunchID),
				zap.String("fighter_id", evt.FighterID),
				zap.Error(err),
			)
			continue
		}
		zap.L().Debug("chat notification sent", zap.String("punch_id", evt.PunchID))
	}
}
