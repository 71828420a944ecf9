package pipeline

import (
	"strings"

	"lingoflow/internal/services/llm"
	"lingoflow/internal/services/ytdlp"
)

const (
	maxTitleRunes = 80
	maxDescRunes  = 2000
)

// renderMetadata fills the configured title and description templates. The
// generated title falls back to the original when the model returned none,
// and both title and description are bounded to the platform's limits.
func (r *Runner) renderMetadata(pack llm.MetadataPack, video ytdlp.Video) (string, string) {
	generated := strings.TrimSpace(pack.Title)
	if generated == "" {
		generated = video.Title
	}
	title := strings.NewReplacer("{title}", truncateRunes(generated, maxTitleRunes)).
		Replace(r.cfg.Templates.Title)
	desc := strings.NewReplacer(
		"{title_zh}", title,
		"{title_en}", video.Title,
		"{video_url}", video.URL,
		"{desc}", truncateRunes(pack.Desc, maxDescRunes),
	).Replace(r.cfg.Templates.Desc)
	return title, desc
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
