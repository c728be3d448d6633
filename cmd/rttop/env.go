package main

import (
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/John-Robertt/rttop/internal/config"
	"github.com/John-Robertt/rttop/internal/infra/cache"
	"github.com/John-Robertt/rttop/internal/infra/httpx"
	"github.com/John-Robertt/rttop/internal/provider"
	"github.com/John-Robertt/rttop/internal/provider/rottentomatoes"
)

// env 是一次抓取所需的全部依赖：fetcher → 缓存 → provider。
type env struct {
	pages   *cache.Store
	scraper provider.Scraper
	logger  *zap.Logger
}

func newEnv(eff config.EffectiveConfig, logger *zap.Logger) (*env, error) {
	client, err := httpx.NewClient(httpx.Options{
		Headers:     eff.Headers,
		MinInterval: eff.MinInterval,
		Timeout:     eff.Timeout,
		RetryMax:    eff.RetryMax,
		ProxyURL:    eff.ProxyURL,
	}, logger)
	if err != nil {
		return nil, err
	}

	reg, err := provider.NewRegistry(rottentomatoes.Provider{BaseURL: eff.BaseURL})
	if err != nil {
		return nil, fmt.Errorf("初始化 provider registry 失败：%w", err)
	}
	p, ok := reg.Get(eff.Provider)
	if !ok {
		return nil, fmt.Errorf("未知 provider %q（可选：%v）", eff.Provider, reg.Names())
	}

	pages := cache.Open(afero.NewOsFs(), eff.CacheFile, client,
		cache.WithWriteThrough(eff.WriteThrough),
		cache.WithLogger(logger),
	)

	return &env{
		pages:   pages,
		scraper: provider.Scraper{Pages: pages, Provider: p},
		logger:  logger,
	}, nil
}

// close 在非 write-through 模式下把新抓取的页面落盘。
func (e *env) close() error {
	if err := e.pages.Flush(); err != nil {
		return fmt.Errorf("写入缓存文件失败：%w", err)
	}
	st := e.pages.Stats()
	e.logger.Debug("缓存统计", zap.Int("hits", st.Hits), zap.Int("misses", st.Misses), zap.Int("flushes", st.Flushes))
	return nil
}
