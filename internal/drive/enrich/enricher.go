package enrich

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/lk2023060901/cloud-drive-backend/internal/drive/biz"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/attempt"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/logger"
	"github.com/rwcarlsen/goexif/exif"
	"go.uber.org/zap"
)

// UnknownLocation 无法定位时的占位值
const UnknownLocation = "Unknown"

// ReverseGeocoder 经纬度转地名
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

type exifData struct {
	date   string
	hasGPS bool
	lat    float64
	lon    float64
}

// Enricher 从图片提取拍摄时间和拍摄地点，实现 biz.Enricher。
// 提取只在限定时间内尽力而为，任何失败都退回占位值。
type Enricher struct {
	geocoder    ReverseGeocoder
	exifTimeout time.Duration
	geoTimeout  time.Duration
	logger      *logger.Logger
}

// NewEnricher 创建元数据提取器，geocoder 可以为 nil（未配置 API key）
func NewEnricher(geocoder ReverseGeocoder, exifTimeout, geoTimeout time.Duration, log *logger.Logger) *Enricher {
	if exifTimeout <= 0 {
		exifTimeout = 3 * time.Second
	}
	if geoTimeout <= 0 {
		geoTimeout = 3 * time.Second
	}
	return &Enricher{
		geocoder:    geocoder,
		exifTimeout: exifTimeout,
		geoTimeout:  geoTimeout,
		logger:      log,
	}
}

// Enrich 提取展示元数据。非 JPEG/TIFF 图片直接使用上传时间和占位地点。
func (e *Enricher) Enrich(ctx context.Context, data []byte, mimeType string) biz.Enrichment {
	result := biz.Enrichment{
		Date:     time.Now().Format(time.RFC3339),
		Location: UnknownLocation,
	}

	if mimeType != "image/jpeg" && mimeType != "image/tiff" {
		return result
	}

	meta := attempt.Run(ctx, e.exifTimeout, (*exifData)(nil), func(ctx context.Context) (*exifData, error) {
		return extractEXIF(data)
	})
	if meta == nil {
		return result
	}

	if meta.date != "" {
		result.Date = meta.date
	}

	if meta.hasGPS && e.geocoder != nil {
		location := attempt.Run(ctx, e.geoTimeout, UnknownLocation, func(ctx context.Context) (string, error) {
			return e.geocoder.Reverse(ctx, meta.lat, meta.lon)
		})
		if location != UnknownLocation {
			result.Location = location
		} else {
			e.logger.WithContext(ctx).Debug("reverse geocode fell back",
				zap.Float64("lat", meta.lat),
				zap.Float64("lon", meta.lon))
		}
	}

	return result
}

// extractEXIF 解析 EXIF。解析库对畸形文件可能 panic，这里统一 recover
// 成普通错误。
func extractEXIF(data []byte) (meta *exifData, err error) {
	defer func() {
		if r := recover(); r != nil {
			meta = nil
			err = fmt.Errorf("exif parse panic: %v", r)
		}
	}()

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("exif decode: %w", err)
	}

	meta = &exifData{}

	if dt, err := x.DateTime(); err == nil {
		meta.date = dt.Format(time.RFC3339)
	}

	if lat, lon, err := x.LatLong(); err == nil && validCoords(lat, lon) {
		meta.hasGPS = true
		meta.lat = lat
		meta.lon = lon
	}

	return meta, nil
}

// validCoords 过滤 NaN 和越界坐标
func validCoords(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

var _ biz.Enricher = (*Enricher)(nil)
