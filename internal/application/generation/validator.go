// Package generation 实现生成编排：供应商链、响应校验与回填
package generation

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"regexp"
	"strings"
	"time"

	"ort-ai-api/internal/domain/entity"
	apperrors "ort-ai-api/pkg/errors"
)

// ExtractJSONObject 尝试从模型输出中截取“第一个完整 JSON 对象/数组”。
// 这是一个容错逻辑：模型可能会在 JSON 前后夹杂围栏或多余文本。
func ExtractJSONObject(s string) string {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "```json", "")
	raw = strings.ReplaceAll(raw, "```", "")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}

	// 如果模型输出夹杂了其它文本，尽量截取第一个 JSON 值（对象/数组）。
	objStart := strings.Index(raw, "{")
	arrStart := strings.Index(raw, "[")
	start := -1
	end := -1
	switch {
	case objStart >= 0 && (arrStart < 0 || objStart < arrStart):
		start = objStart
		end = strings.LastIndex(raw, "}")
	case arrStart >= 0:
		start = arrStart
		end = strings.LastIndex(raw, "]")
	}
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}

	// 简单校验：确保至少能被 Decoder 消费到一个 JSON 起始。
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err == nil {
		if d, ok := tok.(json.Delim); ok && (d == '{' || d == '[') {
			return raw
		}
	}

	// 最后兜底：尝试读取到 EOF 为止，避免调用方误用。
	dec = json.NewDecoder(strings.NewReader(raw))
	for {
		_, e := dec.Token()
		if e != nil {
			if errors.Is(e, io.EOF) {
				break
			}
			return strings.TrimSpace(s)
		}
	}
	return raw
}

// Validator 把模型原始文本输出解析校验为结构化生成物
type Validator struct{}

// NewValidator 创建校验器
func NewValidator() *Validator {
	return &Validator{}
}

// Validate 按生成物类型解析并校验模型输出。
// 解析失败或结构不合法返回 ErrMalformedResponse。
func (v *Validator) Validate(kind entity.ArtifactKind, raw string) (*entity.StructuredArtifact, error) {
	clean := ExtractJSONObject(raw)
	if clean == "" {
		return nil, apperrors.ErrMalformedResponse.WithDetail("empty model output")
	}

	switch kind {
	case entity.KindSummary:
		return v.validateSummary(clean)
	case entity.KindItinerary:
		return v.validateItinerary(clean)
	default:
		return nil, apperrors.ErrMalformedResponse.WithDetail("unknown artifact kind")
	}
}

func (v *Validator) validateSummary(clean string) (*entity.StructuredArtifact, error) {
	var summary entity.SummaryArtifact
	if err := json.Unmarshal([]byte(clean), &summary); err != nil {
		return nil, apperrors.ErrMalformedResponse.WithError(err)
	}
	if len(summary.Review) == 0 || len(summary.Steps) == 0 {
		return nil, apperrors.ErrMalformedResponse.WithDetail("summary missing review or steps")
	}

	// 日序号以模型输出为参考但不可信，按位置重排
	for i := range summary.Steps {
		summary.Steps[i].Day = i + 1
	}
	// 末日无后续段
	summary.Steps[len(summary.Steps)-1].Next = ""

	return &entity.StructuredArtifact{
		Kind:    entity.KindSummary,
		Summary: &summary,
	}, nil
}

// 链接解析响应的外层包装：itins 数组里恰有一个行程
type itineraryEnvelope struct {
	Itins []entity.ItineraryArtifact `json:"itins"`
}

func (v *Validator) validateItinerary(clean string) (*entity.StructuredArtifact, error) {
	var env itineraryEnvelope
	if err := json.Unmarshal([]byte(clean), &env); err != nil {
		// 有些模型直接输出单个行程对象
		var single entity.ItineraryArtifact
		if err2 := json.Unmarshal([]byte(clean), &single); err2 != nil || len(single.DaysPlan) == 0 {
			return nil, apperrors.ErrMalformedResponse.WithError(err)
		}
		env.Itins = []entity.ItineraryArtifact{single}
	}
	if len(env.Itins) == 0 {
		return nil, apperrors.ErrMalformedResponse.WithDetail("itins array empty")
	}

	itin := env.Itins[0]
	if len(itin.DaysPlan) == 0 {
		return nil, apperrors.ErrMalformedResponse.WithDetail("days_plan empty")
	}

	normalizeItinerary(&itin)

	return &entity.StructuredArtifact{
		Kind:      entity.KindItinerary,
		Itinerary: &itin,
	}, nil
}

// normalizeItinerary 回填缺省值并修正模型不可信的字段
func normalizeItinerary(itin *entity.ItineraryArtifact) {
	var total float64
	last := len(itin.DaysPlan) - 1
	for i := range itin.DaysPlan {
		d := &itin.DaysPlan[i]
		d.Day = i + 1
		d.Slice = 1
		if d.SuggestedDays <= 0 {
			d.SuggestedDays = 1
		}
		if d.Visits == nil {
			d.Visits = []entity.Visit{}
		}
		if d.Activities == nil {
			d.Activities = []entity.Activity{}
		}
		if i == last {
			d.ToNextLeg = nil
		}
		total += d.SuggestedDays
	}

	if itin.EstimatedDaysBase <= 0 {
		itin.EstimatedDaysBase = int(math.Ceil(total))
	}
	if itin.PacingRules == nil || len(itin.PacingRules.Factors) == 0 {
		itin.PacingRules = entity.DefaultPacingRules()
	}
	if itin.ItinID == "" {
		itin.ItinID = "XX::imported::" + slugify(itin.Title)
	}
	if itin.CreatedAt == "" {
		itin.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	if title == "" {
		title = "trip"
	}
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(slug) > 30 {
		slug = slug[:30]
	}
	if slug == "" {
		slug = "trip"
	}
	return slug
}
