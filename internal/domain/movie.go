package domain

import (
	"strconv"
	"strings"
)

// RatingClass 是 MPAA 分级的封闭枚举；数值与 ratings 表的 id 一一对应。
type RatingClass int

const (
	RatingG       RatingClass = 1
	RatingPG      RatingClass = 2
	RatingPG13    RatingClass = 3
	RatingR       RatingClass = 4
	RatingUnrated RatingClass = 5
)

// AllRatings 按 id 顺序列出全部分级（ratings 表的种子数据即来自这里）。
var AllRatings = []RatingClass{RatingG, RatingPG, RatingPG13, RatingR, RatingUnrated}

func (r RatingClass) Valid() bool { return r >= RatingG && r <= RatingUnrated }

// String 返回 ratings.rating_name 中存储的名称。
func (r RatingClass) String() string {
	switch r {
	case RatingG:
		return "G"
	case RatingPG:
		return "PG"
	case RatingPG13:
		return "PG-13"
	case RatingR:
		return "R"
	default:
		return "No Rating"
	}
}

// ParseRating 把页面上的分级文本映射为 RatingClass。
// 映射是全函数：只有精确匹配 G/PG/PG-13/R 才落到 1-4，其余一律为 RatingUnrated。
func ParseRating(s string) RatingClass {
	switch s {
	case "G":
		return RatingG
	case "PG":
		return RatingPG
	case "PG-13":
		return RatingPG13
	case "R":
		return RatingR
	default:
		return RatingUnrated
	}
}

// RatingFromName 按 rating_name 查找分级（用于交互过滤条件），只接受五个种子名称。
func RatingFromName(name string) (RatingClass, bool) {
	name = strings.TrimSpace(name)
	for _, r := range AllRatings {
		if r.String() == name {
			return r, true
		}
	}
	return 0, false
}

// RatingNames 返回五个种子名称（按 id 顺序）。
func RatingNames() []string {
	out := make([]string, 0, len(AllRatings))
	for _, r := range AllRatings {
		out = append(out, r.String())
	}
	return out
}

// Score 是 0-100 的百分制分数；Valid=false 表示页面上缺失或无法解析。
type Score struct {
	Value int
	Valid bool
}

func KnownScore(v int) Score { return Score{Value: v, Valid: true} }

// ScorePolicy 决定未知分数落库时的取值。
type ScorePolicy string

const (
	// ScorePolicyZero 把未知分数存为 0。
	ScorePolicyZero ScorePolicy = "zero"
	// ScorePolicyLabel 把未知分数存为说明文字（SQLite 列类型宽松，允许 TEXT）。
	ScorePolicyLabel ScorePolicy = "label"
)

const (
	CriticScoreLabel   = "no tomatometer"
	AudienceScoreLabel = "no audience score"
)

func (p ScorePolicy) Valid() bool { return p == ScorePolicyZero || p == ScorePolicyLabel }

// Column 返回分数在 movies 表中的列值。
func (p ScorePolicy) Column(s Score, label string) any {
	if s.Valid {
		return s.Value
	}
	if p == ScorePolicyLabel {
		return label
	}
	return 0
}

const (
	// DefaultTitle 是详情页缺少标题时的占位值。
	DefaultTitle = "no name"
	// DefaultRatingText 是详情页缺少分级时的占位文本（映射为 RatingUnrated）。
	DefaultRatingText = "no rating"
)

// MovieRecord 是详情页解析结果；构造后不再修改。
type MovieRecord struct {
	Title    string
	Rating   RatingClass
	Critic   Score
	Audience Score
}

// NewMovieRecord 用原始分级文本构造记录，分级映射走 ParseRating。
func NewMovieRecord(title, rating string, critic, audience Score) MovieRecord {
	return MovieRecord{
		Title:    title,
		Rating:   ParseRating(rating),
		Critic:   critic,
		Audience: audience,
	}
}

// Info 返回一行人类可读的摘要。
func (m MovieRecord) Info() string {
	return m.Title + ": Tomatometer: " + scoreText(m.Critic) + " | Audience Score: " + scoreText(m.Audience)
}

func scoreText(s Score) string {
	if !s.Valid {
		return "n/a"
	}
	return strconv.Itoa(s.Value) + "%"
}

// Fallback 标记详情页中某个字段回退到了默认值。
type Fallback string

const (
	FallbackTitle    Fallback = "title"
	FallbackRating   Fallback = "rating"
	FallbackCritic   Fallback = "tomatometer"
	FallbackAudience Fallback = "audience_score"
)
