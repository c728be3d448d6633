package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMinInterval = time.Second

	defaultUserAgent = "rttop (+https://github.com/John-Robertt/rttop)"
)

// Transport 把“代理 + keep-alive 策略 + 有界重试 + 兜底 UA”固化为统一策略。
// 身份请求头由 resty 客户端统一设置，这里只在缺失 User-Agent 时补一个。
type Transport struct {
	Base *http.Transport

	// RetryMax 表示最大重试次数（不含首次尝试）。默认 0：失败直接上抛。
	RetryMax int

	// DisableKeepAlives 决定是否对 Request 设置 Close=true（额外保险）。
	// 真正禁用 keep-alive 依赖 Base.DisableKeepAlives。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只对“可重放”的请求做重试：GET/HEAD 且无 body。
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && (req.Body == nil || req.Body == http.NoBody)
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" {
			r.Header.Set("User-Agent", defaultUserAgent)
		}
		if t.DisableKeepAlives {
			r.Close = true
		}

		resp, err := t.Base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			// ctx 已取消：不再重试，直接返回最后错误（更可解释）。
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func newTransport(proxyURL string, retryMax int) (*Transport, error) {
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
	disableKeepAlives := false

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(u)
		// proxy 模式强制每请求新连接（代理池轮换依赖该行为）。
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	return &Transport{
		Base:              base,
		RetryMax:          retryMax,
		DisableKeepAlives: disableKeepAlives,
	}, nil
}

// Options 是 Client 的全部可调项；零值字段使用默认值。
type Options struct {
	// Headers 是每个请求都携带的固定身份请求头。
	Headers map[string]string
	// MinInterval 是两次网络请求之间的最小间隔；<=0 表示不限速。
	MinInterval time.Duration
	Timeout     time.Duration
	RetryMax    int
	ProxyURL    string
}

// Client 是页面抓取器：每次 Fetch 恰好发出一个 GET（重试默认关闭）。
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewClient(opts Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tr, err := newTransport(strings.TrimSpace(opts.ProxyURL), opts.RetryMax)
	if err != nil {
		return nil, fmt.Errorf("proxy.url 无效：%w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	r := resty.New()
	r.SetTransport(tr)
	r.SetTimeout(timeout)
	r.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	r.SetHeader("User-Agent", defaultUserAgent)
	for k, v := range opts.Headers {
		if strings.TrimSpace(v) == "" {
			continue
		}
		r.SetHeader(k, v)
	}

	c := &Client{http: r, logger: logger}
	if opts.MinInterval > 0 {
		// burst=1：第一个请求立即发出，之后每个请求至少间隔 MinInterval。
		c.limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}
	r.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if c.limiter == nil {
			return nil
		}
		return c.limiter.Wait(req.Context())
	})
	return c, nil
}

// Fetch 发出一个 GET 并返回响应体原文。非 2xx 返回 *HTTPStatusError。
func (c *Client) Fetch(ctx context.Context, u string) (string, error) {
	started := time.Now()
	resp, err := c.http.R().SetContext(ctx).Get(u)
	if err != nil {
		return "", fmt.Errorf("请求失败 %s：%w", u, err)
	}
	c.logger.Debug("HTTP 响应",
		zap.String("url", u),
		zap.Int("status", resp.StatusCode()),
		zap.Int("bytes", len(resp.Body())),
		zap.Duration("took", time.Since(started)),
	)
	if !resp.IsSuccess() {
		return "", &HTTPStatusError{URL: u, StatusCode: resp.StatusCode(), Location: resp.Header().Get("Location")}
	}
	return string(resp.Body()), nil
}
