package biz_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lk2023060901/cloud-drive-backend/internal/drive/biz"
	"github.com/lk2023060901/cloud-drive-backend/internal/drive/storage"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/logger"
	"github.com/stretchr/testify/require"
)

// fakeRepo 内存版文件仓储，行为对齐数据库实现
type fakeRepo struct {
	mu      sync.Mutex
	records map[string]*biz.FileRecord
	seq     int

	failInsert bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*biz.FileRecord)}
}

func (r *fakeRepo) Insert(ctx context.Context, record *biz.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failInsert {
		return fmt.Errorf("insert failed")
	}
	if _, ok := r.records[record.URL]; ok {
		return fmt.Errorf("insert %s: %w", record.URL, biz.ErrConflict)
	}

	r.seq++
	clone := *record
	clone.CreatedAt = time.Unix(int64(r.seq), 0)
	r.records[record.URL] = &clone
	record.CreatedAt = clone.CreatedAt
	return nil
}

func (r *fakeRepo) FindByURL(ctx context.Context, url string) (*biz.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[url]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (r *fakeRepo) FindByURLPrefix(ctx context.Context, prefix string) ([]*biz.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*biz.FileRecord, 0)
	for url, record := range r.records {
		if strings.HasPrefix(url, prefix) {
			clone := *record
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeRepo) List(ctx context.Context, fileType, pathPrefix string) ([]*biz.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*biz.FileRecord, 0)
	for url, record := range r.records {
		if fileType != "" && record.Type != fileType {
			continue
		}
		if pathPrefix != "" {
			rest, ok := strings.CutPrefix(url, pathPrefix+"/")
			if !ok || strings.Contains(rest, "/") {
				continue
			}
		}
		clone := *record
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeRepo) UpdateURL(ctx context.Context, oldURL, newURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[oldURL]
	if !ok {
		return fmt.Errorf("update %s: %w", oldURL, biz.ErrNotFound)
	}
	delete(r.records, oldURL)
	record.URL = newURL
	r.records[newURL] = record
	return nil
}

func (r *fakeRepo) UpdateURLPrefix(ctx context.Context, oldPrefix, newPrefix string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var moved int64
	for url, record := range r.records {
		if !strings.HasPrefix(url, oldPrefix) {
			continue
		}
		newURL := newPrefix + strings.TrimPrefix(url, oldPrefix)
		delete(r.records, url)
		record.URL = newURL
		r.records[newURL] = record
		moved++
	}
	return moved, nil
}

func (r *fakeRepo) UpdateFavorite(ctx context.Context, url string, favorite bool) (*biz.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[url]
	if !ok {
		return nil, fmt.Errorf("favorite %s: %w", url, biz.ErrNotFound)
	}
	record.Favorite = favorite
	clone := *record
	return &clone, nil
}

func (r *fakeRepo) Delete(ctx context.Context, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[url]; !ok {
		return fmt.Errorf("delete %s: %w", url, biz.ErrNotFound)
	}
	delete(r.records, url)
	return nil
}

func (r *fakeRepo) DeleteByURLPrefix(ctx context.Context, prefix string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for url := range r.records {
		if strings.HasPrefix(url, prefix) {
			delete(r.records, url)
			removed++
		}
	}
	return removed, nil
}

func (r *fakeRepo) Stats(ctx context.Context) (*biz.StorageStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &biz.StorageStats{
		CountsByType: make(map[string]int64),
		RecentFiles:  make([]*biz.FileRecord, 0),
	}
	all := make([]*biz.FileRecord, 0, len(r.records))
	for _, record := range r.records {
		stats.TotalFiles++
		stats.UsedKB += record.SizeKB
		stats.CountsByType[record.Type]++
		clone := *record
		all = append(all, &clone)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if len(all) > 3 {
		all = all[:3]
	}
	stats.RecentFiles = all
	return stats, nil
}

func (r *fakeRepo) urls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.records))
	for url := range r.records {
		out = append(out, url)
	}
	sort.Strings(out)
	return out
}

// stubEnricher 返回固定元数据
type stubEnricher struct {
	enrichment biz.Enrichment
}

func (e *stubEnricher) Enrich(ctx context.Context, data []byte, mimeType string) biz.Enrichment {
	return e.enrichment
}

// fakeCache 内存版总览缓存
type fakeCache struct {
	mu          sync.Mutex
	stats       *biz.StorageStats
	sets        int
	invalidates int
}

func (c *fakeCache) Get(ctx context.Context) (*biz.StorageStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats, nil
}

func (c *fakeCache) Set(ctx context.Context, stats *biz.StorageStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = stats
	c.sets++
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = nil
	c.invalidates++
	return nil
}

func (c *fakeCache) invalidateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidates
}

type testEnv struct {
	repo    *fakeRepo
	store   *storage.LocalStore
	cache   *fakeCache
	files   *biz.FileUseCase
	folders *biz.FolderUseCase
}

func newTestEnv(t *testing.T, quotaKB int64) *testEnv {
	t.Helper()

	log, err := logger.New(nil)
	require.NoError(t, err)

	store, err := storage.NewLocalStore(t.TempDir(), log)
	require.NoError(t, err)

	repo := newFakeRepo()
	cache := &fakeCache{}
	enricher := &stubEnricher{enrichment: biz.Enrichment{Date: "2026-08-28T10:00:00Z", Location: "Unknown"}}
	locks := biz.NewPathLocker()

	return &testEnv{
		repo:    repo,
		store:   store,
		cache:   cache,
		files:   biz.NewFileUseCase(repo, store, enricher, cache, locks, quotaKB, log),
		folders: biz.NewFolderUseCase(repo, store, cache, locks, log),
	}
}

// seedFile 直接落一条记录和对应物理文件，绕过时间戳命名
func (e *testEnv) seedFile(t *testing.T, url string, data []byte, fileType string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, e.store.Write(ctx, url, data))
	sizeKB := int64(len(data) / 1024)
	require.NoError(t, e.repo.Insert(ctx, &biz.FileRecord{
		URL:           url,
		Name:          url[strings.LastIndex(url, "/")+1:],
		Type:          fileType,
		SizeKB:        sizeKB,
		SizeFormatted: fmt.Sprintf("%d KB", sizeKB),
		Date:          "2026-08-28T10:00:00Z",
		Location:      "Unknown",
	}))
}
