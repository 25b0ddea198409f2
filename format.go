package main

import (
	"errors"
	"fmt"
	"strings"
)

// maxMessageRunes is the transport's message length limit.
const maxMessageRunes = 4000

const freeDayMessage = "🏖 Пар нет, можно отдыхать!"

// slotTimes maps lesson slot numbers 1..8 to wall-clock ranges.
var slotTimes = map[int]string{
	1: "8:30-10:00",
	2: "10:10-11:40",
	3: "12:10-13:40",
	4: "14:00-15:30",
	5: "15:40-17:10",
	6: "17:20-18:50",
	7: "19:00-20:30",
	8: "20:40-22:10",
}

var dayNames = map[int]string{
	1: "понедельник",
	2: "вторник",
	3: "среда",
	4: "четверг",
	5: "пятница",
	6: "суббота",
	7: "воскресенье",
}

func formatSchedule(lessons []Lesson, groupID string, day int, label string) string {
	if label == "" {
		label = dayNames[day]
	}
	if len(lessons) == 0 {
		return fmt.Sprintf("📅 %s (%s):\n\n%s", label, groupID, freeDayMessage)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 Расписание на %s (%s):\n", label, groupID))
	for _, l := range lessons {
		b.WriteString("\n")
		b.WriteString(formatLesson(l))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func formatLesson(l Lesson) string {
	slot, ok := slotTimes[l.SlotNumber]
	if !ok {
		slot = "—"
	}
	lines := []string{
		"🕒 " + slot,
		"📌 " + l.Subject,
	}
	teacher := strings.TrimSpace(l.Teacher)
	classroom := strings.TrimSpace(l.Classroom)
	switch {
	case teacher != "" && classroom != "":
		lines = append(lines, fmt.Sprintf("👤 %s | 🚪 %s", teacher, classroom))
	case teacher != "":
		lines = append(lines, "👤 "+teacher)
	case classroom != "":
		lines = append(lines, "🚪 "+classroom)
	}
	return strings.Join(lines, "\n")
}

func formatFetchError(err error) string {
	switch errorKindOf(err) {
	case errAuthFailure:
		return "❌ Не удалось авторизоваться в сервисе расписания. Попробуйте позже."
	case errBadRequest:
		return "❌ Сервис отклонил запрос: " + serverDetail(err)
	case errNotFound:
		return "❌ Расписание не найдено."
	case errRateLimited:
		return "❌ Слишком много запросов. Подождите немного и попробуйте снова."
	case errMalformedResponse:
		return "❌ Сервис вернул неожиданный ответ. Попробуйте позже."
	default:
		return "❌ Сервис расписания недоступен. Попробуйте позже."
	}
}

func serverDetail(err error) string {
	var fe *fetchError
	if errors.As(err, &fe) && fe.message != "" {
		return fe.message
	}
	return "некорректные параметры"
}

// splitMessage breaks text into transport-sized parts: at the last line break
// within the limit, else the last space, else a hard cut. Soft splits consume
// exactly one boundary character, so parts rejoin losslessly.
func splitMessage(text string, maxRunes int) []string {
	if maxRunes <= 0 {
		maxRunes = maxMessageRunes
	}
	r := []rune(text)
	if len(r) <= maxRunes {
		return []string{text}
	}

	parts := make([]string, 0, len(r)/maxRunes+1)
	for len(r) > maxRunes {
		cut, boundary := maxRunes, false
		for i := maxRunes; i > 0; i-- {
			if r[i] == '\n' {
				cut, boundary = i, true
				break
			}
		}
		if !boundary {
			for i := maxRunes; i > 0; i-- {
				if r[i] == ' ' {
					cut, boundary = i, true
					break
				}
			}
		}
		parts = append(parts, string(r[:cut]))
		if boundary {
			cut++
		}
		r = r[cut:]
	}
	if len(r) > 0 {
		parts = append(parts, string(r))
	}
	return parts
}
