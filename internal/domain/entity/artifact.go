// Package entity 定义领域实体
package entity

import "time"

// ArtifactKind 生成物类型
type ArtifactKind string

const (
	// KindSummary 行程摘要（点评 + 分日要点）
	KindSummary ArtifactKind = "summary"
	// KindItinerary 完整行程对象（从外部内容解析）
	KindItinerary ArtifactKind = "itinerary"
)

// Valid 检查类型取值
func (k ArtifactKind) Valid() bool {
	return k == KindSummary || k == KindItinerary
}

// StructuredArtifact 校验后的生成物，按 Kind 标记的联合类型。
// Summary 与 Itinerary 恰有一个非 nil，由 ResponseValidator 保证。
type StructuredArtifact struct {
	Kind      ArtifactKind      `json:"kind"`
	Summary   *SummaryArtifact  `json:"summary,omitempty"`
	Itinerary *ItineraryArtifact `json:"itinerary,omitempty"`
}

// Complete 检查生成物是否结构完整。
// 不完整的缓存条目按未命中处理，不完整的生成结果不得落库。
func (a *StructuredArtifact) Complete() bool {
	if a == nil {
		return false
	}
	switch a.Kind {
	case KindSummary:
		return a.Summary != nil && len(a.Summary.Review) > 0 && len(a.Summary.Steps) > 0
	case KindItinerary:
		return a.Itinerary != nil && len(a.Itinerary.DaysPlan) > 0
	default:
		return false
	}
}

// SummaryArtifact 行程摘要
type SummaryArtifact struct {
	// Review 三段点评：优点 / 缺点 / 总评
	Review []string      `json:"review"`
	Steps  []SummaryStep `json:"steps"`
}

// SummaryStep 摘要中的单日卡片
type SummaryStep struct {
	Day        int    `json:"day"`
	City       string `json:"city"`
	Highlights string `json:"highlights"`
	// Next 去往下一站的方向/距离/时长描述，末日为空
	Next string `json:"next"`
}

// ItineraryArtifact 完整行程对象
type ItineraryArtifact struct {
	ItinID             string            `json:"itin_id"`
	Language           string            `json:"language"`
	CreatedAt          string            `json:"created_at"`
	SourceURL          string            `json:"source_url"`
	DeptCode           string            `json:"dept_code,omitempty"`
	DeptName           string            `json:"dept_name,omitempty"`
	Title              string            `json:"title"`
	Subtitle           string            `json:"subtitle,omitempty"`
	SEOKeywords        []string          `json:"seo_keywords,omitempty"`
	EstimatedDaysBase  int               `json:"estimated_days_base"`
	PacingRules        *PacingRules      `json:"pacing_rules,omitempty"`
	PracticalContext   *PracticalContext `json:"practical_context,omitempty"`
	AISuggestions      *AISuggestions    `json:"ai_suggestions,omitempty"`
	DaysPlan           []DayPlan         `json:"days_plan"`
}

// PacingRules 节奏系数
type PacingRules struct {
	Factors        map[string]float64 `json:"factors"`
	MergeThreshold float64            `json:"merge_threshold"`
}

// DefaultPacingRules 默认节奏系数
func DefaultPacingRules() *PacingRules {
	return &PacingRules{
		Factors:        map[string]float64{"slow": 1.25, "standard": 1.0, "fast": 0.75},
		MergeThreshold: 0.85,
	}
}

// PracticalContext 实用信息
type PracticalContext struct {
	BestMonths     []string `json:"best_months,omitempty"`
	VehicleType    string   `json:"vehicle_type,omitempty"`
	GroupType      string   `json:"group_type,omitempty"`
	LoopType       string   `json:"loop_type,omitempty"`
	TotalKm        float64  `json:"total_km,omitempty"`
	DailyAverageKm float64  `json:"daily_average_km,omitempty"`
	Highlights     []string `json:"highlights,omitempty"`
}

// AISuggestions 模型补充建议（周边、贴士、注意事项）
type AISuggestions struct {
	NearbyGems    []string `json:"nearby_gems,omitempty"`
	PracticalTips []string `json:"practical_tips,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// DayPlan 单日计划
type DayPlan struct {
	Day           int         `json:"day"`
	Slice         int         `json:"slice"`
	RegionCode    string      `json:"region_code,omitempty"`
	SuggestedDays float64     `json:"suggested_days"`
	Night         *NightStop  `json:"night,omitempty"`
	Visits        []Visit     `json:"visits"`
	Activities    []Activity  `json:"activities"`
	// ToNextLeg 去往次日的交通段描述，末日必须为 nil
	ToNextLeg *Transition `json:"to_next_leg,omitempty"`
}

// NightStop 过夜地点
type NightStop struct {
	PlaceID string    `json:"place_id"`
	Coords  []float64 `json:"coords,omitempty"`
}

// Visit 景点/场所参观
type Visit struct {
	Text             string            `json:"text"`
	PlaceID          string            `json:"place_id,omitempty"`
	Coords           []float64         `json:"coords,omitempty"`
	VisitDurationMin int               `json:"visit_duration_min,omitempty"`
	PracticalInfo    map[string]string `json:"practical_info,omitempty"`
}

// Activity 活动（徒步、皮划艇等）
type Activity struct {
	Text                string            `json:"text"`
	PlaceID             string            `json:"place_id,omitempty"`
	Coords              []float64         `json:"coords,omitempty"`
	ActivityDurationMin int               `json:"activity_duration_min,omitempty"`
	PracticalInfo       map[string]string `json:"practical_info,omitempty"`
}

// Transition 日间交通段
type Transition struct {
	DistanceKm    float64 `json:"distance_km"`
	DriveMin      int     `json:"drive_min"`
	TransportMode string  `json:"transport_mode,omitempty"`
	RoadType      string  `json:"road_type,omitempty"`
	Method        string  `json:"method,omitempty"`
}

// Place 从行程中派生出的地点
type Place struct {
	PlaceID    string    `json:"place_id"`
	Name       string    `json:"name"`
	Coords     []float64 `json:"coords"`
	Country    string    `json:"country"`
	RegionCode string    `json:"region_code"`
}

// CacheTier 缓存层级
type CacheTier string

const (
	// TierShared 共享层：目录级条目，跨用户/语言复用
	TierShared CacheTier = "catalog"
	// TierPrivate 私有层：单一行程条目
	TierPrivate CacheTier = "trip"
)

// CacheEntry 缓存条目，仅在校验通过后写入
type CacheEntry struct {
	Tier            CacheTier          `json:"tier"`
	Key             string             `json:"key"`
	Artifact        StructuredArtifact `json:"artifact"`
	ProducedByModel string             `json:"produced_by_model"`
	Language        string             `json:"language,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}
