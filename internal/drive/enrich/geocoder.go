package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

// Geocoder 调用 LocationIQ 风格的接口做反向地理编码
type Geocoder struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGeocoder 创建反向地理编码客户端
func NewGeocoder(baseURL, apiKey string, timeout time.Duration) *Geocoder {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Geocoder{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Reverse 把经纬度转换成展示用地名
func (g *Geocoder) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	query := url.Values{}
	query.Set("key", g.apiKey)
	query.Set("lat", fmt.Sprintf("%f", lat))
	query.Set("lon", fmt.Sprintf("%f", lon))
	query.Set("format", "json")
	query.Set("zoom", "10")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/reverse?%s", g.baseURL, query.Encode()), nil)
	if err != nil {
		return "", fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocode request: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read geocode response: %w", err)
	}

	name := gjson.GetBytes(body, "display_name")
	if !name.Exists() || name.String() == "" {
		return "", fmt.Errorf("geocode response missing display_name")
	}
	return name.String(), nil
}
