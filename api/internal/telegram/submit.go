package telegram

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"agrismart-bot/api/internal/predict"
	"agrismart-bot/api/internal/session"
)

const busyText = "⏳ Still analyzing the previous request, please wait."

// submit runs the active task's submission in the background and reports the
// outcome when it resolves. Outcomes of requests orphaned by a task switch are
// never shown.
func (r *Router) submit(ctx context.Context, chatID int64) {
	r.modes.clear(chatID)
	sess := r.Sessions.Get(ctx, chatID)
	if sess.Busy() {
		r.send(chatID, busyText)
		return
	}

	k := sess.Active()
	if snap, err := sess.Form(k); err == nil {
		if _, err := predict.Build(k, snap); err == nil {
			r.send(chatID, "⏳ Analyzing...")
		}
	}

	ctx = context.WithoutCancel(ctx)
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		out, err := sess.Submit(ctx)
		switch {
		case errors.Is(err, session.ErrBusy):
			r.send(chatID, busyText)
		case errors.Is(err, session.ErrStale):
			r.log().Debug("stale outcome not shown",
				zap.Int64("chat_id", chatID),
				zap.String("request_id", out.RequestID.String()),
			)
		case err != nil:
			r.sendError(chatID, err)
		default:
			r.send(chatID, renderDirective(out.Directive))
		}
	}()
}
