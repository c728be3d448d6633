package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SummaryAndUTC(t *testing.T) {
	rec := NewMovieRecord("Heat", "R", KnownScore(88), Score{})
	r := RunReport{
		Genre:      "action",
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Items: []ItemResult{
			NewItemResult(1, "https://example.test/m/heat", SourceFetched, rec, []Fallback{FallbackAudience}),
			NewItemResult(2, "https://example.test/m/alien", SourceCached, rec, nil),
			NewItemResult(3, "https://example.test/m/up", SourceCached, rec, nil),
		},
	}

	r.Finalize()

	// items 保持榜单顺序。
	if r.Items[0].Rank != 1 || r.Items[1].Rank != 2 || r.Items[2].Rank != 3 {
		t.Fatalf("items 顺序被改变：%+v", r.Items)
	}
	if r.Summary.Movies != 3 || r.Summary.Fetched != 1 || r.Summary.Cached != 2 || r.Summary.Fallbacks != 1 {
		t.Fatalf("summary 统计不正确：%+v", r.Summary)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
	// 未知分数输出 null，而不是 0。
	if !bytes.Contains(b, []byte("\"audience_score\":null")) {
		t.Fatalf("未知分数应输出 null：%s", string(b))
	}
	if !bytes.Contains(b, []byte("\"fallbacks\":[]")) {
		t.Fatalf("无回退时 fallbacks 应为 []：%s", string(b))
	}
}
