package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"agrismart-bot/api/internal/task"
)

func (r *Router) handleCallback(ctx context.Context, cb tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	cid := cb.Message.Chat.ID
	if _, err := r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		r.log().Debug("callback ack failed", zap.Error(err))
	}

	data := cb.Data
	switch {
	case data == cbSubmit:
		r.submit(ctx, cid)
	case data == cbClearImage:
		r.clearImage(ctx, cid)
	case strings.HasPrefix(data, cbTask):
		k, err := task.Parse(strings.TrimPrefix(data, cbTask))
		if err != nil {
			r.send(cid, "Unknown task.")
			return
		}
		r.selectTask(ctx, cid, k)
	case strings.HasPrefix(data, cbField):
		k, name, _ := strings.Cut(strings.TrimPrefix(data, cbField), ":")
		r.onField(ctx, cid, task.Kind(k), name)
	case strings.HasPrefix(data, cbOption):
		parts := strings.SplitN(strings.TrimPrefix(data, cbOption), ":", 3)
		if len(parts) != 3 {
			return
		}
		r.onOption(ctx, cid, cb.Message.MessageID, task.Kind(parts[0]), parts[1], parts[2])
	default:
		r.log().Debug("unknown callback", zap.String("data", data))
	}
}

// activeFor reports whether k is still the chat's active task and tells the
// user otherwise.
func (r *Router) activeFor(ctx context.Context, chatID int64, k task.Kind) bool {
	if r.Sessions.Get(ctx, chatID).Active() == k {
		return true
	}
	r.send(chatID, "That form is no longer active. Send /form to see the current one.")
	return false
}

func (r *Router) onField(ctx context.Context, chatID int64, k task.Kind, name string) {
	if !r.activeFor(ctx, chatID, k) {
		return
	}
	f, ok := task.LookupField(k, name)
	if !ok {
		r.send(chatID, "Unknown field.")
		return
	}
	switch f.Type {
	case task.FieldCategorical:
		r.sendMarkup(chatID, "Select "+f.Label+":", optionKeyboard(k, f))
	case task.FieldNumeric:
		r.modes.set(chatID, awaitField{Kind: k, Field: f.Name})
		r.send(chatID, fieldPrompt(f))
	default:
		r.send(chatID, "Send a photo of the plant leaf.")
	}
}

func (r *Router) onOption(ctx context.Context, chatID int64, msgID int, k task.Kind, field, value string) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	_, _ = r.Bot.Send(edit)

	if !r.activeFor(ctx, chatID, k) {
		return
	}
	if _, err := r.Sessions.Get(ctx, chatID).SetField(ctx, k, field, value); err != nil {
		r.send(chatID, "Unknown field.")
		return
	}
	r.showForm(ctx, chatID)
}
