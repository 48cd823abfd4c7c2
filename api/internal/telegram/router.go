package telegram

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"agrismart-bot/api/internal/session"
	"agrismart-bot/api/internal/task"
)

// BotAPI is the part of *tgbotapi.BotAPI the router uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Pinger probes the prediction service. *predict.Client satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Router struct {
	Bot      BotAPI
	Sessions *session.Manager
	Service  Pinger
	Logger   *zap.Logger
	HTTP     *http.Client

	modes   chatModes
	pending sync.WaitGroup
}

const (
	startText = "AgriSmart: crop, fertilizer and plant disease predictions.\n" +
		"Pick a task, fill in the form and press Submit.\n" +
		"Commands: /crop /fertilizer /disease /form /submit /clear /health"
	helpText = "Use the form buttons, or send several values at once, e.g. N=90 P=42 K=43.\n" +
		"For disease detection send a photo of the leaf."
)

func (r *Router) log() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Wait blocks until submissions started by the router have resolved.
func (r *Router) Wait() { r.pending.Wait() }

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	switch {
	case msg.IsCommand():
		r.HandleCommand(ctx, msg)
	case len(msg.Photo) > 0 || msg.Document != nil:
		r.acceptImage(ctx, msg)
	case strings.TrimSpace(msg.Text) != "":
		r.handleText(ctx, msg.Chat.ID, msg.Text)
	}
}

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch cmd := msg.Command(); cmd {
	case "start":
		r.sendMarkup(cid, startText, taskKeyboard())
	case "help":
		r.send(cid, helpText)
	case "crop", "fertilizer", "disease":
		k, _ := task.Parse(cmd)
		r.selectTask(ctx, cid, k)
	case "form":
		r.modes.clear(cid)
		r.showForm(ctx, cid)
	case "submit":
		r.submit(ctx, cid)
	case "clear":
		r.clearImage(ctx, cid)
	case "health":
		r.health(ctx, cid)
	default:
		r.send(cid, "Unknown command. Try /start")
	}
}

func (r *Router) selectTask(ctx context.Context, chatID int64, k task.Kind) {
	sess := r.Sessions.Get(ctx, chatID)
	changed, err := sess.Select(k)
	if err != nil {
		r.send(chatID, "Unknown task.")
		return
	}
	r.modes.clear(chatID)
	if changed {
		r.log().Debug("task selected", zap.Int64("chat_id", chatID), zap.String("task", string(k)))
	}
	r.showForm(ctx, chatID)
}

func (r *Router) showForm(ctx context.Context, chatID int64) {
	sess := r.Sessions.Get(ctx, chatID)
	k := sess.Active()
	spec := task.MustLookup(k)
	snap, err := sess.Form(k)
	if err != nil {
		r.sendError(chatID, err)
		return
	}
	r.sendMarkup(chatID, formText(spec, snap, sess.Outcome()), formKeyboard(spec, snap))
}

func (r *Router) clearImage(ctx context.Context, chatID int64) {
	sess := r.Sessions.Get(ctx, chatID)
	if _, err := sess.SetImage(task.DiseaseDetection, nil); err != nil {
		r.sendError(chatID, err)
		return
	}
	r.send(chatID, "Image cleared.")
	if sess.Active() == task.DiseaseDetection {
		r.showForm(ctx, chatID)
	}
}

func (r *Router) health(ctx context.Context, chatID int64) {
	if r.Service == nil {
		r.send(chatID, "✅ Bot OK")
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.Service.Ping(pctx); err != nil {
		r.log().Warn("prediction service ping failed", zap.Error(err))
		r.send(chatID, "⚠️ Prediction service unreachable.")
		return
	}
	r.send(chatID, "✅ OK")
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		r.log().Warn("send message failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) sendMarkup(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := r.Bot.Send(msg); err != nil {
		r.log().Warn("send message failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) sendError(chatID int64, err error) {
	r.log().Error("request handling failed", zap.Int64("chat_id", chatID), zap.Error(err))
	r.send(chatID, "Something went wrong, please try again.")
}
