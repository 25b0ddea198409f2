package main

import "context"

// weeklySchedule is the compiled-in variant of the schedule: day of week
// (1=Monday .. 6=Saturday) to the ordered lessons of that day. It ignores the
// group ID; every group sees the same week.
var weeklySchedule = map[int][]Lesson{
	1: {
		{SlotNumber: 1, Subject: "📚 Математика"},
		{SlotNumber: 2, Subject: "📖 Физика"},
		{SlotNumber: 3, Subject: "💻 Программирование"},
		{SlotNumber: 4, Subject: "🍽 Обед"},
		{SlotNumber: 5, Subject: "📊 Статистика"},
	},
	2: {
		{SlotNumber: 1, Subject: "🌐 Веб-разработка"},
		{SlotNumber: 2, Subject: "📱 Мобильные приложения"},
		{SlotNumber: 3, Subject: "🎨 Дизайн"},
		{SlotNumber: 4, Subject: "🍽 Обед"},
		{SlotNumber: 5, Subject: "📈 Анализ данных"},
	},
	3: {
		{SlotNumber: 1, Subject: "🤖 Искусственный интеллект"},
		{SlotNumber: 2, Subject: "🔐 Кибербезопасность"},
		{SlotNumber: 3, Subject: "☁️ Облачные технологии"},
		{SlotNumber: 4, Subject: "🍽 Обед"},
		{SlotNumber: 5, Subject: "📊 Базы данных"},
	},
	4: {
		{SlotNumber: 1, Subject: "📱 iOS разработка"},
		{SlotNumber: 2, Subject: "🤖 Android разработка"},
		{SlotNumber: 3, Subject: "🎮 Геймдев"},
		{SlotNumber: 4, Subject: "🍽 Обед"},
		{SlotNumber: 5, Subject: "💼 Проектная работа"},
	},
	5: {
		{SlotNumber: 1, Subject: "🌍 Английский язык"},
		{SlotNumber: 2, Subject: "💼 Бизнес-аналитика"},
		{SlotNumber: 3, Subject: "🚀 Стартапы"},
		{SlotNumber: 4, Subject: "🍽 Обед"},
		{SlotNumber: 5, Subject: "📝 Подведение итогов"},
	},
	6: {
		{Subject: "Отдыхай"},
	},
}

type staticSource struct{}

func newStaticSource() *staticSource { return &staticSource{} }

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) Fetch(_ context.Context, _ string, day int) ([]Lesson, error) {
	lessons, ok := weeklySchedule[day]
	if !ok {
		return nil, fetchErrf(errNotFound, "schedule not found")
	}
	return lessons, nil
}
