package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"agrismart-bot/api/internal/form"
	"agrismart-bot/api/internal/predict"
	"agrismart-bot/api/internal/session"
	"agrismart-bot/api/internal/task"
)

// Callback data prefixes. Field and option buttons carry the task they were
// rendered for so presses on an outdated form can be told apart.
const (
	cbTask       = "task:"
	cbField      = "field:"
	cbOption     = "opt:"
	cbSubmit     = "submit"
	cbClearImage = "clear_image"
)

func taskKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(task.Kinds()))
	for _, k := range task.Kinds() {
		spec := task.MustLookup(k)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(spec.Title, cbTask+string(k)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func formKeyboard(spec task.Spec, snap form.Snapshot) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, f := range spec.Fields {
		if f.Type == task.FieldFile {
			if snap.Image != nil {
				rows = append(rows, tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData("🗑 Clear image", cbClearImage),
				))
			}
			continue
		}
		label := f.Label + ": " + displayValue(snap.Get(f.Name))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbField+string(spec.Kind)+":"+f.Name),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Submit", cbSubmit),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func optionKeyboard(k task.Kind, f task.Field) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, o := range f.Options {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(o, cbOption+string(k)+":"+f.Name+":"+o))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func displayValue(raw string) string {
	if raw == "" {
		return "—"
	}
	return raw
}

func formText(spec task.Spec, snap form.Snapshot, out session.Outcome) string {
	var b strings.Builder
	b.WriteString(spec.Title)
	b.WriteString("\n\n")
	if spec.Encoding == task.EncodingMultipart {
		if snap.Image == nil {
			b.WriteString("Send a photo of the plant leaf.")
		} else {
			fmt.Fprintf(&b, "Image: %s (%d KB)", snap.Image.Filename, (len(snap.Image.Data)+1023)/1024)
		}
	} else {
		for _, f := range spec.Fields {
			fmt.Fprintf(&b, "%s: %s", f.Label, displayValue(snap.Get(f.Name)))
			if f.Range != "" {
				fmt.Fprintf(&b, " (%s)", f.Range)
			}
			b.WriteString("\n")
		}
		b.WriteString("\nTap a field to set it, or send e.g. ")
		b.WriteString(bulkExample(spec))
	}
	if out.Status == session.InFlight && out.Kind == spec.Kind {
		b.WriteString("\n\n⏳ Analyzing...")
	}
	return strings.TrimRight(b.String(), "\n")
}

func bulkExample(spec task.Spec) string {
	parts := make([]string, 0, 3)
	for _, f := range spec.Fields {
		if f.Type != task.FieldNumeric {
			continue
		}
		parts = append(parts, f.Name+"="+exampleValue(f.Range))
		if len(parts) == 3 {
			break
		}
	}
	return strings.Join(parts, " ")
}

func exampleValue(rng string) string {
	if lo, _, ok := strings.Cut(rng, "-"); ok && lo != "" {
		return lo
	}
	return "0"
}

func fieldPrompt(f task.Field) string {
	if f.Range != "" {
		return fmt.Sprintf("Enter %s (typical range %s):", f.Label, f.Range)
	}
	return fmt.Sprintf("Enter %s:", f.Label)
}

// renderDirective turns a classifier directive into the result message.
func renderDirective(d predict.Directive) string {
	var b strings.Builder
	switch d.Kind {
	case predict.ShowCrop:
		b.WriteString("🌾 Recommended crop: " + d.Name)
	case predict.ShowFertilizer:
		b.WriteString("🧪 Recommended fertilizer: " + d.Name)
	case predict.ShowDisease:
		b.WriteString("🔬 Detected: " + d.Name)
	default:
		return "❌ " + d.Message
	}
	if d.Confidence != nil {
		b.WriteString("\nConfidence: " + predict.FormatConfidence(*d.Confidence))
	}
	return b.String()
}
