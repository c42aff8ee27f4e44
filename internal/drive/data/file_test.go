package data

import (
	"testing"
	"time"

	"github.com/lk2023060901/cloud-drive-backend/internal/drive/biz"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/logger"
)

func TestFilePOMapping(t *testing.T) {
	log, err := logger.New(nil)
	if err != nil {
		t.Fatalf("logger.New() error = %v", err)
	}
	repo := &fileRepo{logger: log}

	now := time.Now()
	record := &biz.FileRecord{
		URL:           "drive/1724800000000-photo.jpg",
		Name:          "1724800000000-photo.jpg",
		Type:          biz.TypeImage,
		SizeKB:        245,
		SizeFormatted: "245 KB",
		Date:          "2026-08-28T10:00:00Z",
		Location:      "Oslo, Norway",
		Favorite:      true,
		Metadata: map[string]interface{}{
			"originalName": "photo.jpg",
			"mimeType":     "image/jpeg",
			"extension":    "jpg",
		},
	}

	po, err := repo.fromDomain(record)
	if err != nil {
		t.Fatalf("fromDomain() error = %v", err)
	}

	if po.URL != record.URL {
		t.Errorf("po.URL = %q, want %q", po.URL, record.URL)
	}
	if po.FileType != biz.TypeImage {
		t.Errorf("po.FileType = %q, want %q", po.FileType, biz.TypeImage)
	}
	if po.Metadata == "" || po.Metadata == "{}" {
		t.Errorf("po.Metadata = %q, want serialized map", po.Metadata)
	}

	po.CreatedAt = now
	po.UpdatedAt = now

	// 转回领域对象后字段要对齐
	got, err := repo.toDomain(po)
	if err != nil {
		t.Fatalf("toDomain() error = %v", err)
	}
	if got.URL != record.URL {
		t.Errorf("got.URL = %q, want %q", got.URL, record.URL)
	}
	if got.SizeKB != 245 || got.SizeFormatted != "245 KB" {
		t.Errorf("size = %d / %q, want 245 / 245 KB", got.SizeKB, got.SizeFormatted)
	}
	if !got.Favorite {
		t.Error("got.Favorite = false, want true")
	}
	if got.Metadata["originalName"] != "photo.jpg" {
		t.Errorf("metadata originalName = %v, want photo.jpg", got.Metadata["originalName"])
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("got.CreatedAt = %v, want %v", got.CreatedAt, now)
	}
}

func TestFilePOMappingNilMetadata(t *testing.T) {
	log, err := logger.New(nil)
	if err != nil {
		t.Fatalf("logger.New() error = %v", err)
	}
	repo := &fileRepo{logger: log}

	po, err := repo.fromDomain(&biz.FileRecord{URL: "drive/a.txt", Name: "a.txt", Type: biz.TypeOther})
	if err != nil {
		t.Fatalf("fromDomain() error = %v", err)
	}
	if po.Metadata != "{}" {
		t.Errorf("po.Metadata = %q, want {}", po.Metadata)
	}

	// 坏的 JSON 不拦查询
	po.Metadata = "not json"
	got, err := repo.toDomain(po)
	if err != nil {
		t.Fatalf("toDomain() error = %v", err)
	}
	if got.Metadata != nil {
		t.Errorf("got.Metadata = %v, want nil", got.Metadata)
	}
}

func TestSubstrOffset(t *testing.T) {
	tests := []struct {
		prefix string
		want   int
	}{
		{"drive/docs/", 12},
		// 多字节目录名：字符数远小于字节数
		{"照片/", 4},
		{"照片/子目录/", 8},
		{"Ольга/", 7},
	}
	for _, tt := range tests {
		if got := substrOffset(tt.prefix); got != tt.want {
			t.Errorf("substrOffset(%q) = %d, want %d", tt.prefix, got, tt.want)
		}
	}
}

// TestSubstrOffsetRewritesMultiByteURL 模拟数据库端按字符计数的 substr，
// 验证改写偏移量对多字节前缀产出完整后缀
func TestSubstrOffsetRewritesMultiByteURL(t *testing.T) {
	// substr(text, n) 按字符取子串，对应 Go 里按 rune 切片
	charSubstr := func(s string, from int) string {
		runes := []rune(s)
		if from > len(runes) {
			return ""
		}
		return string(runes[from-1:])
	}

	tests := []struct {
		url       string
		oldPrefix string
		newPrefix string
		want      string
	}{
		{"照片/a.jpg", "照片/", "archive/照片/", "archive/照片/a.jpg"},
		{"照片/子目录/b.jpg", "照片/", "archive/照片/", "archive/照片/子目录/b.jpg"},
		{"drive/docs/a.txt", "drive/docs/", "archive/docs/", "archive/docs/a.txt"},
		{"Ольга/файл.txt", "Ольга/", "backup/Ольга/", "backup/Ольга/файл.txt"},
	}
	for _, tt := range tests {
		got := tt.newPrefix + charSubstr(tt.url, substrOffset(tt.oldPrefix))
		if got != tt.want {
			t.Errorf("rewrite(%q, %q -> %q) = %q, want %q",
				tt.url, tt.oldPrefix, tt.newPrefix, got, tt.want)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"drive/docs/", "drive/docs/"},
		{"100%/", `100\%/`},
		{"a_b/", `a\_b/`},
		{`a\b/`, `a\\b/`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"drive/docs/a.txt", "a.txt"},
		{"a.txt", "a.txt"},
		{"drive/", ""},
	}
	for _, tt := range tests {
		if got := baseName(tt.in); got != tt.want {
			t.Errorf("baseName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
