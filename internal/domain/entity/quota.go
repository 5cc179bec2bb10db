package entity

import "time"

// QuotaClass 配额类别
type QuotaClass string

const (
	// ClassSummary 摘要生成，按月计
	ClassSummary QuotaClass = "summary"
	// ClassURLParse 链接解析，按日 + 按月双计
	ClassURLParse QuotaClass = "url_parse"
)

// QuotaPeriod 配额周期
type QuotaPeriod string

const (
	PeriodDaily   QuotaPeriod = "daily"
	PeriodMonthly QuotaPeriod = "monthly"
)

// PeriodKey 返回 UTC 周期键，月度 "2006-01"，日度 "2006-01-02"
func (p QuotaPeriod) Key(now time.Time) string {
	switch p {
	case PeriodDaily:
		return now.UTC().Format("2006-01-02")
	default:
		return now.UTC().Format("2006-01")
	}
}

// QuotaUsage 某用户在某周期内的用量
type QuotaUsage struct {
	UserID    string      `json:"user_id"`
	Class     QuotaClass  `json:"class"`
	Period    QuotaPeriod `json:"period"`
	PeriodKey string      `json:"period_key"`
	Count     int64       `json:"count"`
	UpdatedAt time.Time   `json:"updated_at"`
}
