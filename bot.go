package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// selectionStore keeps each user's chosen group. In-memory only: restarts
// drop all selections, which is intentional for this bot.
type selectionStore struct {
	mu     sync.Mutex
	groups map[int64]string
}

func newSelectionStore() *selectionStore {
	return &selectionStore{groups: make(map[int64]string)}
}

func (s *selectionStore) Set(userID int64, groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[userID] = groupID
}

func (s *selectionStore) Get(userID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[userID]
	return g, ok
}

type botApp struct {
	bot        *tgbotapi.BotAPI
	cfg        Config
	source     ScheduleSource
	selections *selectionStore
}

func newBotApp(bot *tgbotapi.BotAPI, cfg Config, source ScheduleSource) *botApp {
	return &botApp{
		bot:        bot,
		cfg:        cfg,
		source:     source,
		selections: newSelectionStore(),
	}
}

// handleUpdate is the single entry point of the receive loop. A panicking
// handler must not take the loop down with it.
func (a *botApp) handleUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("handler panic recovered: %v", r)
		}
	}()

	switch {
	case update.Message != nil:
		a.handleMessage(update.Message)
	case update.CallbackQuery != nil:
		a.handleCallback(update.CallbackQuery)
	}
}

func (a *botApp) handleMessage(m *tgbotapi.Message) {
	if m.From == nil {
		return
	}
	chatID := m.Chat.ID
	userID := m.From.ID
	text := strings.TrimSpace(m.Text)

	switch {
	case strings.HasPrefix(text, "/start"):
		log.Printf("user start: id=%d username=%q", userID, m.From.UserName)
		a.sendText(chatID, "📅 Привет! Я бот с расписанием.")
		if _, ok := a.selections.Get(userID); ok {
			a.sendDayKeyboard(chatID)
		} else {
			a.sendGroupKeyboard(chatID)
		}
	case strings.HasPrefix(text, "/status"):
		a.sendText(chatID, a.statusText(userID))
	case strings.HasPrefix(text, "/test"):
		a.runSelfTest(chatID, userID)
	default:
		a.sendText(chatID, "🤔 Не понял сообщение. Используйте кнопки или отправьте /start.")
	}
}

func (a *botApp) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	userID := cb.From.ID
	data := cb.Data

	// Stop the button spinner regardless of the outcome.
	if _, err := a.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback answer failed: id=%d err=%v", userID, err)
	}

	switch {
	case strings.HasPrefix(data, "group_"):
		groupID := strings.TrimPrefix(data, "group_")
		if !a.knownGroup(groupID) {
			log.Printf("unknown group callback: id=%d data=%q", userID, data)
			return
		}
		a.selections.Set(userID, groupID)
		log.Printf("group selected: id=%d group=%s", userID, groupID)
		a.sendText(chatID, fmt.Sprintf("✅ Группа %s выбрана.", groupID))
		a.sendDayKeyboard(chatID)
	case strings.HasPrefix(data, "day_"):
		day, err := strconv.Atoi(strings.TrimPrefix(data, "day_"))
		if err != nil || day < 1 || day > 6 {
			log.Printf("bad day callback: id=%d data=%q", userID, data)
			return
		}
		a.sendSchedule(chatID, userID, day, "")
	case data == "today":
		day := weekdayNumber(time.Now())
		if day == 7 {
			group, _ := a.selections.Get(userID)
			a.sendText(chatID, formatSchedule(nil, group, 7, "сегодня (воскресенье)"))
			return
		}
		a.sendSchedule(chatID, userID, day, "сегодня ("+dayNames[day]+")")
	case data == "change_group":
		a.sendGroupKeyboard(chatID)
	default:
		log.Printf("unknown callback: id=%d data=%q", userID, data)
	}
}

func (a *botApp) sendSchedule(chatID, userID int64, day int, label string) {
	groupID, ok := a.selections.Get(userID)
	if !ok {
		a.sendText(chatID, "🔒 Сначала выберите группу.")
		a.sendGroupKeyboard(chatID)
		return
	}

	lessons, err := a.source.Fetch(context.Background(), groupID, day)
	if err != nil {
		log.Printf("schedule fetch failed: id=%d group=%s day=%d err=%v", userID, groupID, day, err)
		a.sendText(chatID, formatFetchError(err))
		return
	}
	a.sendText(chatID, formatSchedule(lessons, groupID, day, label))
}

func (a *botApp) statusText(userID int64) string {
	lines := []string{"ℹ️ Источник расписания: " + a.source.Name()}
	if group, ok := a.selections.Get(userID); ok {
		lines = append(lines, "👥 Группа: "+group)
	} else {
		lines = append(lines, "👥 Группа не выбрана")
	}
	return strings.Join(lines, "\n")
}

func (a *botApp) runSelfTest(chatID, userID int64) {
	groupID, ok := a.selections.Get(userID)
	if !ok {
		a.sendText(chatID, "🔒 Сначала выберите группу, потом повторите /test.")
		a.sendGroupKeyboard(chatID)
		return
	}
	day := weekdayNumber(time.Now())
	if day == 7 {
		day = 1
	}
	if _, err := a.source.Fetch(context.Background(), groupID, day); err != nil {
		log.Printf("self test failed: id=%d err=%v", userID, err)
		a.sendText(chatID, formatFetchError(err))
		return
	}
	a.sendText(chatID, "✅ Сервис расписания отвечает.")
}

func (a *botApp) knownGroup(groupID string) bool {
	for _, g := range a.cfg.Groups {
		if g == groupID {
			return true
		}
	}
	return false
}

func (a *botApp) sendGroupKeyboard(chatID int64) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(a.cfg.Groups))
	for _, g := range a.cfg.Groups {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(g, "group_"+g),
		))
	}
	msg := tgbotapi.NewMessage(chatID, "👥 Выберите группу:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := a.bot.Send(msg); err != nil {
		log.Printf("send group keyboard failed: chat=%d err=%v", chatID, err)
	}
}

func (a *botApp) sendDayKeyboard(chatID int64) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 7)
	for day := 1; day <= 6; day++ {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(capitalize(dayNames[day]), "day_"+strconv.Itoa(day)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📅 Сегодня", "today"),
		tgbotapi.NewInlineKeyboardButtonData("🔄 Сменить группу", "change_group"),
	))
	msg := tgbotapi.NewMessage(chatID, "👇 Выберите день недели:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := a.bot.Send(msg); err != nil {
		log.Printf("send day keyboard failed: chat=%d err=%v", chatID, err)
	}
}

func (a *botApp) sendText(chatID int64, text string) {
	text = strings.ToValidUTF8(text, " ")
	for _, part := range splitMessage(text, maxMessageRunes) {
		msg := tgbotapi.NewMessage(chatID, part)
		if _, err := a.bot.Send(msg); err != nil {
			log.Printf("send text failed: chat=%d err=%v", chatID, err)
			return
		}
	}
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// weekdayNumber maps time.Weekday to the schedule numbering: 1=Monday ..
// 6=Saturday, 7=Sunday.
func weekdayNumber(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
