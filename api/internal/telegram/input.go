package telegram

import (
	"context"
	"fmt"
	"strings"

	"agrismart-bot/api/internal/task"
)

func (r *Router) handleText(ctx context.Context, chatID int64, text string) {
	if a, ok := r.modes.get(chatID); ok {
		r.modes.clear(chatID)
		sess := r.Sessions.Get(ctx, chatID)
		if sess.Active() != a.Kind {
			r.send(chatID, "That form is no longer active. Send /form to see the current one.")
			return
		}
		if _, err := sess.SetField(ctx, a.Kind, a.Field, strings.TrimSpace(text)); err != nil {
			r.sendError(chatID, err)
			return
		}
		r.showForm(ctx, chatID)
		return
	}

	if strings.Contains(text, "=") {
		r.bulkEntry(ctx, chatID, text)
		return
	}
	r.send(chatID, helpText)
}

// bulkEntry applies "key=value" pairs to the active form.
func (r *Router) bulkEntry(ctx context.Context, chatID int64, text string) {
	sess := r.Sessions.Get(ctx, chatID)
	k := sess.Active()
	pairs, bad := parsePairs(text)

	var unknown []string
	for _, p := range pairs {
		f, ok := matchField(k, p.key)
		if !ok || f.Type == task.FieldFile {
			unknown = append(unknown, p.key)
			continue
		}
		value := p.value
		if f.Type == task.FieldCategorical {
			if canon, ok := f.MatchOption(value); ok {
				value = canon
			}
		}
		if _, err := sess.SetField(ctx, k, f.Name, value); err != nil {
			r.sendError(chatID, err)
			return
		}
	}
	unknown = append(unknown, bad...)
	if len(unknown) > 0 {
		r.send(chatID, fmt.Sprintf("Skipped: %s", strings.Join(unknown, ", ")))
	}
	r.showForm(ctx, chatID)
}

type pair struct{ key, value string }

func parsePairs(text string) ([]pair, []string) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == ',' || r == ';'
	})
	var pairs []pair
	var bad []string
	for _, tok := range fields {
		k, v, ok := strings.Cut(tok, "=")
		if !ok || k == "" {
			bad = append(bad, tok)
			continue
		}
		pairs = append(pairs, pair{key: k, value: v})
	}
	return pairs, bad
}

func matchField(k task.Kind, key string) (task.Field, bool) {
	spec, err := task.Lookup(k)
	if err != nil {
		return task.Field{}, false
	}
	if f, ok := spec.Field(key); ok {
		return f, true
	}
	for _, f := range spec.Fields {
		if strings.EqualFold(f.Name, key) {
			return f, true
		}
	}
	return task.Field{}, false
}
