package run

import (
	"time"

	"github.com/John-Robertt/rttop/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：run 包只负责发事件，不做任何输出。
type Observer interface {
	// OnStart 在选定分类、开始抓取榜单时调用。
	OnStart(genre domain.Genre)
	// OnPhaseDone 在阶段结束时调用（listing / persist）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemDone 在一部电影解析完成时调用；idx 从 1 开始。
	OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration)
}

type nopObserver struct{}

func (nopObserver) OnStart(domain.Genre)                                  {}
func (nopObserver) OnPhaseDone(string, map[string]any, time.Duration)     {}
func (nopObserver) OnItemDone(int, int, domain.ItemResult, time.Duration) {}
