package llm

// Prompts sent to the text-generation service. Keep updates centralized here
// so they are easy to tweak without hunting through call sites.

// jsonOnlySystemPrompt mandates machine-readable output with an explicit
// error escape hatch; it is prepended to every ChatJSON conversation.
const jsonOnlySystemPrompt = `你必须只输出 JSON，不要任何额外文字、注释或代码块围栏。若无法满足，请返回一个 JSON 对象包含 {"error": "原因"}。`

// jsonReminderPrompt is appended after a failed attempt before retrying.
const jsonReminderPrompt = `请仅输出 JSON 对象，不要附加说明或 Markdown。`

const translatorSystemPrompt = `你是专业的中英翻译，擅长视频标题翻译。`

const translateTitlePrompt = `把以下标题翻译成简体中文，保持专有名词原样或常见译名，简洁自然。
输出 JSON：{"zh": "中文标题"}.
`

const editorSystemPrompt = `你是精通 B 站风格的中文新媒体编辑。`

// metadataPrompt asks for a title/tags/description pack from an original
// title and a translated-subtitle excerpt.
const metadataPrompt = `
你是资深的新媒体编辑。根据提供的视频原标题与中文字幕，生成：
1) 一个吸引人的中文标题（限制 20 字内，避免夸张词）。
2) 8-12 个中文标签（每个 2-4 字）。
3) 一段简洁描述（80-150 字），自然口语、避免重复。

返回 JSON：{"title":"...","tags":[".."],"desc":"..."}
原标题：%s
字幕：
%s
仅输出 JSON 对象，字段为 title/tags/desc。`

const judgeSystemPrompt = `你是内容审核与文本比对专家。`

const judgeDuplicatePrompt = `请根据原标题(可能为英文)与其中文译文，判断候选列表中是否存在相同或高度相似/同源的搬运。考虑缩写、序号、机翻差异、标点与空格、B站常见风格化等。输出 JSON：{"duplicate":true|false,"reason":"...","matched":[{"title":"...","url":"..."}]}`
