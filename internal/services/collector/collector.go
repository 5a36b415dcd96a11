// Package collector captures content snapshots of tracked entity URLs. It
// is the collection collaborator of the pipeline: given a URL it returns the
// page content normalized to markdown, or an error the executor isolates.
package collector

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
	"golang.org/x/time/rate"
)

// Service implements the Collector interface over plain HTTP
type Service struct {
	config  common.CollectorConfig
	client  *retryablehttp.Client
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewService creates a new collector service
func NewService(config common.CollectorConfig, logger arbor.ILogger) interfaces.Collector {
	client := retryablehttp.NewClient()
	client.Logger = log.New(io.Discard, "", 0)
	client.RetryMax = config.MaxRetries
	client.HTTPClient.Timeout = common.ParseDurationOr(config.RequestTimeout, 30*time.Second)

	interval := common.ParseDurationOr(config.RateLimit, time.Second)
	if interval <= 0 {
		interval = time.Second
	}

	return &Service{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logger,
	}
}

// Collect fetches the URL and returns a normalized content snapshot. HTML
// responses are converted to markdown; other text content is stored as-is.
func (s *Service) Collect(ctx context.Context, targetURL string) (*interfaces.CollectResult, error) {
	if targetURL == "" {
		return nil, models.NewPipelineError(models.ErrValidation, "collect", "", "collection URL is empty")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, models.WrapPipelineError(models.ErrCollection, "collect", "", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, models.WrapPipelineError(models.ErrValidation, "collect", "", err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, models.WrapPipelineError(models.ErrCollection, "collect", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, models.NewPipelineError(models.ErrCollection, "collect", "",
			fmt.Sprintf("unexpected status %d fetching %s", resp.StatusCode, targetURL))
	}

	reader := io.Reader(resp.Body)
	if s.config.MaxBodySize > 0 {
		reader = io.LimitReader(resp.Body, s.config.MaxBodySize)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, models.WrapPipelineError(models.ErrCollection, "collect", "", err)
	}

	contentType := resp.Header.Get("Content-Type")
	content := string(body)
	title := ""

	if strings.Contains(contentType, "text/html") || looksLikeHTML(content) {
		title, content = s.normalizeHTML(targetURL, content)
	}

	s.logger.Debug().
		Str("url", targetURL).
		Int("status_code", resp.StatusCode).
		Int("size_bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("Snapshot collected")

	return &interfaces.CollectResult{
		Content:     content,
		ContentType: contentType,
		Title:       title,
		StatusCode:  resp.StatusCode,
		SizeBytes:   int64(len(body)),
		CapturedAt:  time.Now(),
	}, nil
}

// normalizeHTML extracts the page title and converts the document body to
// markdown. Falls back to stripped text when conversion produces nothing.
func (s *Service) normalizeHTML(targetURL, html string) (title, content string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", html
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())

	// Drop non-content elements before conversion
	doc.Find("script, style, noscript, iframe, nav, footer").Remove()

	cleaned, err := doc.Html()
	if err != nil {
		cleaned = html
	}

	converter := md.NewConverter(targetURL, true, nil)
	markdown, err := converter.ConvertString(cleaned)
	if err != nil || strings.TrimSpace(markdown) == "" {
		// Stripped-text fallback keeps the snapshot usable
		text := strings.TrimSpace(doc.Text())
		if text != "" {
			return title, text
		}
		return title, html
	}

	return title, strings.TrimSpace(markdown)
}

func looksLikeHTML(content string) bool {
	trimmed := strings.TrimSpace(content)
	return strings.HasPrefix(trimmed, "<!DOCTYPE") || strings.HasPrefix(trimmed, "<html") || strings.HasPrefix(trimmed, "<HTML")
}
