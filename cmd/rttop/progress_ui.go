package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/rttop/internal/app/run"
	"github.com/John-Robertt/rttop/internal/config"
	"github.com/John-Robertt/rttop/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 把 run 层的事件渲染成简洁的进度行（写 stderr，不混入 stdout 的菜单与图表）。
//
// 限速抓取时两条之间可能隔好几秒：keepalive 在长时间无输出时补一行进度。
type progressUI struct {
	w   io.Writer
	eff config.EffectiveConfig

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total     int
	done      int
	fetched   int
	cached    int
	fallbacks int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer, eff config.EffectiveConfig) *progressUI {
	return &progressUI{
		w:                  w,
		eff:                eff,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(genre domain.Genre) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] rttop run\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	if p.eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", p.eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  genre: %s\n", genre.Name)
	fmt.Fprintf(p.w, "  url: %s\n", truncate(genre.URL, 120))
	fmt.Fprintf(p.w, "  min_interval: %s\n", p.eff.MinInterval)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(p.eff.ProxyURL))
	fmt.Fprintf(p.w, "  cache: %s (write_through=%s)\n", p.eff.CacheFile, onOff(p.eff.WriteThrough))
	fmt.Fprintf(p.w, "  db: %s (score_default=%s)\n", p.eff.DB, p.eff.ScorePolicy)
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "listing":
		p.total = intField(fields, "movies")
		fmt.Fprintf(p.w, "榜单: movies=%d (%s)\n\n", p.total, formatShortDuration(dur))
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	case "persist":
		fmt.Fprintf(p.w, "写库: movies=%d (%s)\n", intField(fields, "movies"), formatShortDuration(dur))
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total
	switch res.Source {
	case domain.SourceFetched:
		p.fetched++
	case domain.SourceCached:
		p.cached++
	}
	p.fallbacks += len(res.Fallbacks)

	fmt.Fprintf(p.w, "[%d/%d] %s %s rating=%s tomatometer=%s audience=%s%s (%s)\n",
		idx, total, strings.ToUpper(res.Source), truncate(res.Title, 60), res.Rating,
		formatScore(res.Critic), formatScore(res.Audience), formatFallbacks(res.Fallbacks),
		formatShortDuration(dur),
	)

	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		p.stopTickerLocked()
	}
}

// close 停止 keepalive（运行中途失败时 OnItemDone 不会走到最后一条）。
func (p *progressUI) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tickerStarted {
		p.stopTickerLocked()
	}
}

func (p *progressUI) stopTickerLocked() {
	close(p.stopCh)
	p.tickerStarted = false
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进度: done=%d/%d fetched=%d cached=%d fallbacks=%d elapsed=%s\n",
						p.done, p.total, p.fetched, p.cached, p.fallbacks, formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func formatScore(v *int) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d%%", *v)
}

func formatFallbacks(fs []domain.Fallback) string {
	if len(fs) == 0 {
		return ""
	}
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = string(f)
	}
	return " fallback(" + strings.Join(parts, ",") + ")"
}

// truncate 按字符（rune）截断，max 也按字符计。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
