// Package prompt 管理生成提示词模板
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptSummaryV1   PromptID = "summary_v1"
	PromptItineraryV1 PromptID = "itinerary_v1"
)

// 摘要指令支持的语言，未知语言回退英文
var summaryLanguages = map[string]bool{
	"fr": true, "en": true, "es": true, "it": true, "pt": true, "ar": true,
}

var languageNames = map[string]string{
	"fr": "French",
	"en": "English",
	"es": "Spanish",
	"it": "Italian",
	"pt": "Portuguese",
	"ar": "Arabic",
	"de": "German",
}

// LanguageName 返回语言代码对应的英文名，未知回退 English
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return "English"
}

// Registry 模板注册表，按需从嵌入文件加载并缓存
type Registry struct {
	mu    sync.RWMutex
	cache map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[string]string),
	}
}

func (r *Registry) load(path string) (string, error) {
	r.mu.RLock()
	if text, ok := r.cache[path]; ok {
		r.mu.RUnlock()
		return text, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if text, ok := r.cache[path]; ok {
		return text, nil
	}

	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("load prompt template %s: %w", path, err)
	}
	text := strings.TrimSpace(string(b))
	r.cache[path] = text
	return text, nil
}

// Render 加载模板并替换 {var} 占位符
func (r *Registry) Render(path string, vars map[string]string) (string, error) {
	text, err := r.load(path)
	if err != nil {
		return "", err
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text), nil
}

// BuildSummaryPrompt 组装摘要提示词：指令 + 行程标题 + 分日文本
func (r *Registry) BuildSummaryPrompt(title, stepsText, language string) (string, error) {
	lang := language
	if !summaryLanguages[lang] {
		lang = "en"
	}
	instr, err := r.load(fmt.Sprintf("templates/summary_v1.%s.txt", lang))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n\nItinéraire %q:\n%s", instr, title, stepsText), nil
}

// BuildItineraryPrompt 组装链接解析提示词，source 正文由调用方追加
func (r *Registry) BuildItineraryPrompt(languageCode, date string) (string, error) {
	name := LanguageName(languageCode)
	if languageCode == "" {
		languageCode = "en"
	}
	return r.Render("templates/itinerary_v1.user.txt", map[string]string{
		"language_name":       name,
		"language_name_upper": strings.ToUpper(name),
		"language_code":       languageCode,
		"date":                date,
	})
}
