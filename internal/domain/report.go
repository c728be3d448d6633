package domain

import (
	"encoding/json"
	"time"
)

const (
	SourceFetched = "fetched"
	SourceCached  = "cached"
)

// RunReport 是一次抓取的结构化摘要（--report 落盘 / 终端摘要）。
type RunReport struct {
	Genre    string `json:"genre"`
	GenreURL string `json:"genre_url"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Movies    int `json:"movies"`
	Fetched   int `json:"fetched"`
	Cached    int `json:"cached"`
	Fallbacks int `json:"fallbacks"`
}

// ItemResult 对应榜单中的一部电影；Rank 从 1 开始，与榜单顺序一致。
type ItemResult struct {
	Rank      int        `json:"rank"`
	URL       string     `json:"url"`
	Source    string     `json:"source"`
	Title     string     `json:"title"`
	Rating    string     `json:"rating"`
	Critic    *int       `json:"tomatometer"`
	Audience  *int       `json:"audience_score"`
	Fallbacks []Fallback `json:"fallbacks"`
}

// NewItemResult 把解析结果转换为报告条目；未知分数输出为 null。
func NewItemResult(rank int, url, source string, rec MovieRecord, fallbacks []Fallback) ItemResult {
	if fallbacks == nil {
		fallbacks = []Fallback{}
	}
	return ItemResult{
		Rank:      rank,
		URL:       url,
		Source:    source,
		Title:     rec.Title,
		Rating:    rec.Rating.String(),
		Critic:    scorePtr(rec.Critic),
		Audience:  scorePtr(rec.Audience),
		Fallbacks: fallbacks,
	}
}

func scorePtr(s Score) *int {
	if !s.Valid {
		return nil
	}
	v := s.Value
	return &v
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) summary 由 items 计算得出
//
// items 保持榜单顺序，不重新排序。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Items == nil {
		r.Items = []ItemResult{}
	}

	var s ReportSummary
	for _, it := range r.Items {
		s.Movies++
		switch it.Source {
		case SourceFetched:
			s.Fetched++
		case SourceCached:
			s.Cached++
		}
		s.Fallbacks += len(it.Fallbacks)
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
