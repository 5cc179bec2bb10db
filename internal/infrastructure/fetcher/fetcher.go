// Package fetcher 拉取外部网页并压缩为纯文本
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ort-ai-api/internal/config"
	apperrors "ort-ai-api/pkg/errors"
	"ort-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("fetcher")

// 整块移除的非正文元素
var (
	blockRe   = regexp.MustCompile(`(?is)<(script|style|nav|header|footer|aside|iframe|noscript|svg|form)\b[^>]*>.*?</\s*(?:script|style|nav|header|footer|aside|iframe|noscript|svg|form)\s*>`)
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	tagRe     = regexp.MustCompile(`<[^>]+>`)
	spaceRe   = regexp.MustCompile(`[ \t\r\f\v]+`)
	blankRe   = regexp.MustCompile(`\n{3,}`)
)

var entities = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&rsquo;", "'",
	"&eacute;", "é",
	"&egrave;", "è",
	"&agrave;", "à",
)

// Fetcher 网页内容抓取器
type Fetcher struct {
	client *http.Client
	cfg    *config.FetcherConfig
}

// New 创建抓取器
func New(cfg *config.FetcherConfig) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}
}

// Fetch 拉取 URL 并返回压缩后的正文文本。
// 正文不足最小长度时返回 ErrContentUnavailable。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	ctx, span := tracer.Start(ctx, "fetcher.Fetch",
		trace.WithAttributes(attribute.String("fetch.url", rawURL)))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		metrics.FetchTotal.WithLabelValues("bad_url").Inc()
		return "", apperrors.ErrInvalidRequest.WithDetail(fmt.Sprintf("invalid url: %v", err))
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "fr,en;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		span.RecordError(err)
		metrics.FetchTotal.WithLabelValues("error").Inc()
		return "", apperrors.ErrContentUnavailable.WithError(err)
	}
	defer resp.Body.Close()

	span.SetAttributes(
		attribute.Int("fetch.status", resp.StatusCode),
		attribute.Int64("fetch.duration_ms", time.Since(start).Milliseconds()),
	)

	if resp.StatusCode != http.StatusOK {
		metrics.FetchTotal.WithLabelValues("bad_status").Inc()
		return "", apperrors.ErrContentUnavailable.WithDetail(
			fmt.Sprintf("fetch returned status %d", resp.StatusCode))
	}

	// 正文上限的 8 倍作为原始读取上限，避免超大页面占满内存
	raw, err := io.ReadAll(io.LimitReader(resp.Body, int64(f.cfg.MaxContentChars)*8))
	if err != nil {
		span.RecordError(err)
		metrics.FetchTotal.WithLabelValues("error").Inc()
		return "", apperrors.ErrContentUnavailable.WithError(err)
	}

	text := Reduce(string(raw), f.cfg.MaxContentChars)
	if len(text) < f.cfg.MinContentChars {
		metrics.FetchTotal.WithLabelValues("too_short").Inc()
		return "", apperrors.ErrContentUnavailable.WithDetail("page content too short to parse")
	}

	metrics.FetchTotal.WithLabelValues("ok").Inc()
	return text, nil
}

// Reduce 把 HTML 压缩为纯文本并截断到 maxChars
func Reduce(html string, maxChars int) string {
	text := commentRe.ReplaceAllString(html, " ")
	text = blockRe.ReplaceAllString(text, " ")
	text = tagRe.ReplaceAllString(text, "\n")
	text = entities.Replace(text)
	text = spaceRe.ReplaceAllString(text, " ")
	text = blankRe.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	text = strings.Join(kept, "\n")

	if len(text) > maxChars {
		text = text[:maxChars] + "... [truncated]"
	}
	return text
}
