package telegram

import (
	"sync"

	"agrismart-bot/api/internal/task"
)

// awaitField marks a chat whose next text message is the raw value of Field.
type awaitField struct {
	Kind  task.Kind
	Field string
}

type chatModes struct {
	m sync.Map // chatID -> awaitField
}

func (c *chatModes) set(chatID int64, a awaitField) { c.m.Store(chatID, a) }

func (c *chatModes) get(chatID int64) (awaitField, bool) {
	v, ok := c.m.Load(chatID)
	if !ok {
		return awaitField{}, false
	}
	a, ok := v.(awaitField)
	return a, ok
}

func (c *chatModes) clear(chatID int64) { c.m.Delete(chatID) }
