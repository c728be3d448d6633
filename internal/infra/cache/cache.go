package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gocache "github.com/patrickmn/go-cache"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/John-Robertt/rttop/internal/infra/fsx"
)

// Fetcher 是缓存未命中时的数据来源（生产环境为 httpx.Client）。
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetcherFunc 让普通函数满足 Fetcher。
type FetcherFunc func(ctx context.Context, url string) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) (string, error) { return f(ctx, url) }

// Stats 是一次运行内的缓存统计。
type Stats struct {
	Hits    int
	Misses  int
	Flushes int
}

// Store 是以 URL 为键的响应体缓存，持久化为单个 JSON 对象文件（url -> body）。
//
// 约束：
// - 文件只在 Open 时读取一次；读取失败一律视为空缓存
// - 未命中时恰好调用一次 Fetcher；抓取失败不写入任何内容
// - 默认 write-through：每次未命中后整份重写文件
type Store struct {
	fs      afero.Fs
	path    string
	fetcher Fetcher
	logger  *zap.Logger

	writeThrough bool

	mu    sync.Mutex
	items *gocache.Cache
	dirty bool
	stats Stats
}

type Option func(*Store)

// WithWriteThrough 控制未命中后是否立即落盘；关闭时由调用方在结束时调用 Flush。
func WithWriteThrough(on bool) Option {
	return func(s *Store) { s.writeThrough = on }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open 加载 path 处的缓存文件。文件不存在、无法读取或不是合法 JSON 对象时返回空缓存。
func Open(fs afero.Fs, path string, f Fetcher, opts ...Option) *Store {
	s := &Store{
		fs:           fs,
		path:         filepath.Clean(strings.TrimSpace(path)),
		fetcher:      f,
		logger:       zap.NewNop(),
		writeThrough: true,
	}
	for _, o := range opts {
		o(s)
	}

	entries, err := load(fs, s.path)
	if err != nil {
		if !errors.Is(err, afero.ErrFileNotFound) {
			s.logger.Warn("缓存文件不可用，按空缓存处理", zap.String("path", s.path), zap.Error(err))
		}
		entries = map[string]string{}
	}

	items := make(map[string]gocache.Item, len(entries))
	for k, v := range entries {
		items[k] = gocache.Item{Object: v}
	}
	s.items = gocache.NewFrom(gocache.NoExpiration, 0, items)
	s.logger.Debug("缓存已加载", zap.String("path", s.path), zap.Int("entries", len(items)))
	return s
}

// Get 返回 url 对应的响应体：命中直接返回；未命中时抓取、写入并（write-through 模式下）落盘。
func (s *Store) Get(ctx context.Context, url string) (string, error) {
	if v, ok := s.lookup(url); ok {
		s.mu.Lock()
		s.stats.Hits++
		s.mu.Unlock()
		return v, nil
	}

	if s.fetcher == nil {
		return "", fmt.Errorf("缓存未命中且未配置 fetcher：%s", url)
	}
	s.logger.Info("抓取页面", zap.String("url", url))
	body, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.items.Set(url, body, gocache.NoExpiration)
	s.stats.Misses++
	s.dirty = true
	s.mu.Unlock()

	if s.writeThrough {
		if err := s.Flush(); err != nil {
			return "", fmt.Errorf("写入缓存文件失败：%w", err)
		}
	}
	return body, nil
}

// Has 判断 url 是否已缓存（不触发抓取）。
func (s *Store) Has(url string) bool {
	_, ok := s.lookup(url)
	return ok
}

func (s *Store) lookup(url string) (string, bool) {
	v, ok := s.items.Get(url)
	if !ok {
		return "", false
	}
	body, ok := v.(string)
	return body, ok
}

func (s *Store) Len() int { return s.items.ItemCount() }

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Flush 把整份缓存重写到磁盘；没有新内容时不做任何事。
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	entries := make(map[string]string, s.items.ItemCount())
	for k, it := range s.items.Items() {
		if body, ok := it.Object.(string); ok {
			entries[k] = body
		}
	}
	if err := save(s.fs, s.path, entries); err != nil {
		return err
	}
	s.dirty = false
	s.stats.Flushes++
	return nil
}

// Snapshot 返回当前全部条目的副本。
func (s *Store) Snapshot() map[string]string {
	out := make(map[string]string, s.items.ItemCount())
	for k, it := range s.items.Items() {
		if body, ok := it.Object.(string); ok {
			out[k] = body
		}
	}
	return out
}

func load(fs afero.Fs, path string) (map[string]string, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	var entries map[string]string
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		// 文件内容为 JSON null。
		return nil, errors.New("缓存文件不是 JSON 对象")
	}
	return entries, nil
}

func save(fs afero.Fs, path string, entries map[string]string) error {
	b, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return fsx.WriteFile(fs, path, b)
}
