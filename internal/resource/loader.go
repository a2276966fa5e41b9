package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/wire"
	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"
)

// ProviderSet 资源描述加载Provider集合
var ProviderSet = wire.NewSet(
	ProvideLoader,
)

// Loader reads a resource description from a local file or an http(s) URL
// and extracts its resource paths.
type Loader struct {
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// NewLoader 创建资源描述加载器
func NewLoader(logger *zap.SugaredLogger) *Loader {
	client := cleanhttp.DefaultClient()
	client.Timeout = 30 * time.Second
	return &Loader{
		httpClient: client,
		logger:     logger.Named("resource"),
	}
}

// ProvideLoader 提供加载器实例
func ProvideLoader(logger *zap.SugaredLogger) *Loader {
	return NewLoader(logger)
}

// Load returns the resource paths described by source. Every failure is a
// *DescriptionParseError.
func (l *Loader) Load(ctx context.Context, source string) ([]string, error) {
	l.logger.Infow("Parsing RAML", "source", source)

	data, err := l.read(ctx, source)
	if err != nil {
		return nil, &DescriptionParseError{Source: source, Err: err}
	}

	nodes, err := Parse(data)
	if err != nil {
		var parseErr *DescriptionParseError
		if errors.As(err, &parseErr) {
			parseErr.Source = source
			return nil, parseErr
		}
		return nil, &DescriptionParseError{Source: source, Err: err}
	}

	paths := Extract(nodes)
	l.logger.Infow("Extracted resources", "source", source, "count", len(paths))
	return paths, nil
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return l.download(ctx, source)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read description file: %w", err)
	}
	return data, nil
}

// download fetches a description published by an artifact repository.
func (l *Loader) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download description: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read description body: %w", err)
	}
	return data, nil
}
