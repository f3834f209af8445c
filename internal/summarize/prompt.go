package summarize

import (
	"fmt"
	"strings"
)

// DefaultTranscriptLimit is the number of transcript characters sent to a provider.
const DefaultTranscriptLimit = 8000

const promptTemplate = `Ты — редактор подкаст-дайджестов на русском языке.
Эпизод: %s
Транскрипт:
%s
Задача:
1. Напиши краткое содержание (3-4 абзаца) на русском языке
2. Выдели 5-7 ключевых инсайтов (bullet points)
3. Добавь 2-3 самые интересные цитаты из эпизода
4. Напиши, кому будет полезен этот эпизод (1-2 предложения)
Формат ответа должен быть удобен для публикации в Telegram.`

// BuildPrompt renders the digest request for title, keeping at most limit
// characters of transcript. A non-positive limit keeps everything.
func BuildPrompt(title, transcript string, limit int) string {
	return fmt.Sprintf(promptTemplate, strings.TrimSpace(title), Truncate(strings.TrimSpace(transcript), limit))
}

// Truncate cuts text to limit runes.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
