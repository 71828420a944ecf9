package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const subtitleExcerptLimit = 6000

// MetadataPack holds generated publish metadata for one candidate.
type MetadataPack struct {
	Title string
	Tags  []string
	Desc  string
}

// DuplicateCandidate is one (title, URL) pair offered to the duplicate judge.
type DuplicateCandidate struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// DuplicateVerdict is the judge's decision with supporting evidence. Absent
// fields default to false/empty rather than failing the parse.
type DuplicateVerdict struct {
	Duplicate bool
	Reason    string
	Matched   []DuplicateCandidate
}

// TranslateTitle translates a video title to Simplified Chinese. The model is
// expected to answer {"zh": "..."}; a missing key yields an empty string.
func (c *Client) TranslateTitle(ctx context.Context, title string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return title, nil
	}
	data, err := c.ChatJSON(ctx, []Message{
		{Role: "system", Content: translatorSystemPrompt},
		{Role: "user", Content: translateTitlePrompt + title},
	}, 0.3)
	if err != nil {
		return "", err
	}
	zh, _ := data["zh"].(string)
	return zh, nil
}

// GenerateMetadata produces a title/tags/description pack from the original
// title and the translated subtitle text. Subtitles are truncated to a
// bounded excerpt before prompting.
func (c *Client) GenerateMetadata(ctx context.Context, originalTitle, subtitleText string) (MetadataPack, error) {
	excerpt := truncateRunes(subtitleText, subtitleExcerptLimit)
	data, err := c.ChatJSON(ctx, []Message{
		{Role: "system", Content: editorSystemPrompt},
		{Role: "user", Content: fmt.Sprintf(metadataPrompt, originalTitle, excerpt)},
	}, 0.7)
	if err != nil {
		return MetadataPack{}, err
	}
	pack := MetadataPack{}
	pack.Title, _ = data["title"].(string)
	pack.Desc, _ = data["desc"].(string)
	pack.Tags = stringSlice(data["tags"])
	return pack, nil
}

// JudgeDuplicate asks the model whether the candidate list contains a reupload
// of the video identified by originalTitle/translatedTitle. Omitted fields are
// default-filled so callers always receive a complete verdict.
func (c *Client) JudgeDuplicate(ctx context.Context, originalTitle, translatedTitle string, candidates []DuplicateCandidate) (DuplicateVerdict, error) {
	if candidates == nil {
		candidates = []DuplicateCandidate{}
	}
	encoded, err := json.Marshal(candidates)
	if err != nil {
		return DuplicateVerdict{}, fmt.Errorf("llm judge: encode candidates: %w", err)
	}
	content := fmt.Sprintf("%s\n原标题: %s\n中文译: %s\n候选列表(JSON 数组)：\n%s",
		judgeDuplicatePrompt, originalTitle, translatedTitle, encoded)
	data, err := c.ChatJSON(ctx, []Message{
		{Role: "system", Content: judgeSystemPrompt},
		{Role: "user", Content: content},
	}, 0.2)
	if err != nil {
		return DuplicateVerdict{}, err
	}

	verdict := DuplicateVerdict{Matched: []DuplicateCandidate{}}
	verdict.Duplicate, _ = data["duplicate"].(bool)
	verdict.Reason, _ = data["reason"].(string)
	if raw, ok := data["matched"].([]any); ok {
		for _, entry := range raw {
			item, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			title, _ := item["title"].(string)
			url, _ := item["url"].(string)
			if title == "" && url == "" {
				continue
			}
			verdict.Matched = append(verdict.Matched, DuplicateCandidate{Title: title, URL: url})
		}
	}
	return verdict, nil
}

func stringSlice(value any) []string {
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		if s, ok := entry.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
