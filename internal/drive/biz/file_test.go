package biz_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/lk2023060901/cloud-drive-backend/internal/drive/biz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload(t *testing.T) {
	env := newTestEnv(t, 1024*1024)
	ctx := context.Background()

	record, err := env.files.Upload(ctx, &biz.UploadRequest{
		Name:     "photo.jpg",
		MimeType: "image/jpeg",
		Folder:   "drive",
		Data:     []byte("jpeg bytes"),
	})
	require.NoError(t, err)

	// 物理文件名带毫秒时间戳前缀
	assert.Regexp(t, regexp.MustCompile(`^drive/\d+-photo\.jpg$`), record.URL)
	assert.Equal(t, biz.TypeImage, record.Type)
	assert.Equal(t, "0 KB", record.SizeFormatted)
	assert.Equal(t, "2026-08-28T10:00:00Z", record.Date)
	assert.Equal(t, "Unknown", record.Location)
	assert.Equal(t, "photo.jpg", record.Metadata["originalName"])
	assert.Equal(t, "image/jpeg", record.Metadata["mimeType"])
	assert.Equal(t, "jpg", record.Metadata["extension"])

	// 物理文件和记录都在
	data, err := env.store.Read(ctx, record.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), data)

	found, err := env.repo.FindByURL(ctx, record.URL)
	require.NoError(t, err)
	require.NotNil(t, found)
}

func TestUploadDefaultFolder(t *testing.T) {
	env := newTestEnv(t, 1024*1024)

	record, err := env.files.Upload(context.Background(), &biz.UploadRequest{
		Name:     "notes.txt",
		MimeType: "text/plain",
		Data:     []byte("hello"),
	})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^drive/\d+-notes\.txt$`), record.URL)
	assert.Equal(t, biz.TypeOther, record.Type)
}

func TestUploadEmpty(t *testing.T) {
	env := newTestEnv(t, 1024*1024)

	_, err := env.files.Upload(context.Background(), &biz.UploadRequest{Name: "a.txt"})
	assert.True(t, errors.Is(err, biz.ErrEmptyUpload))

	_, err = env.files.Upload(context.Background(), &biz.UploadRequest{Data: []byte("x")})
	assert.True(t, errors.Is(err, biz.ErrEmptyUpload))
}

func TestUploadQuotaExceeded(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()

	_, err := env.files.Upload(ctx, &biz.UploadRequest{
		Name:     "big.bin",
		MimeType: "application/octet-stream",
		Data:     make([]byte, 4096),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, biz.ErrNoSpace))

	// 没有落盘也没有落库
	assert.Empty(t, env.repo.urls())
	entries, err := env.store.ListDir(ctx, "drive")
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestUploadInsertFailureCleansBlob(t *testing.T) {
	env := newTestEnv(t, 1024*1024)
	env.repo.failInsert = true
	ctx := context.Background()

	_, err := env.files.Upload(ctx, &biz.UploadRequest{
		Name:     "photo.jpg",
		MimeType: "image/jpeg",
		Folder:   "drive",
		Data:     []byte("jpeg bytes"),
	})
	require.Error(t, err)

	// 落库失败后物理文件被回收，不留孤儿
	var files []string
	_ = env.store.Walk(ctx, "drive", func(rel string, isDir bool) error {
		if !isDir {
			files = append(files, rel)
		}
		return nil
	})
	assert.Empty(t, files)
}

func TestUploadSameNameTwice(t *testing.T) {
	env := newTestEnv(t, 1024*1024)
	ctx := context.Background()

	first, err := env.files.Upload(ctx, &biz.UploadRequest{
		Name: "photo.jpg", MimeType: "image/jpeg", Folder: "drive", Data: []byte("one"),
	})
	require.NoError(t, err)

	// 时间戳前缀按毫秒递增
	time.Sleep(5 * time.Millisecond)

	second, err := env.files.Upload(ctx, &biz.UploadRequest{
		Name: "photo.jpg", MimeType: "image/jpeg", Folder: "drive", Data: []byte("two"),
	})
	require.NoError(t, err)

	assert.NotEqual(t, first.URL, second.URL)

	one, err := env.store.Read(ctx, first.URL)
	require.NoError(t, err)
	two, err := env.store.Read(ctx, second.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), one)
	assert.Equal(t, []byte("two"), two)
}

func TestTypeFromMIME(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/jpeg", biz.TypeImage},
		{"image/png", biz.TypeImage},
		{"video/mp4", biz.TypeVideo},
		{"audio/mpeg", biz.TypeAudio},
		{"application/pdf", biz.TypeOther},
		{"text/plain", biz.TypeOther},
		{"", biz.TypeOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, biz.TypeFromMIME(tt.mime), "mime %q", tt.mime)
	}
}

func TestRename(t *testing.T) {
	env := newTestEnv(t, 1024*1024)
	ctx := context.Background()
	env.seedFile(t, "drive/photo.jpg", []byte("x"), biz.TypeImage)

	results, err := env.files.MoveOrRename(ctx, []string{"drive/photo.jpg"}, "drive/vacation", true)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// 改名保留扩展名
	assert.Equal(t, "drive/vacation.jpg", results[0].NewURL)
	assert.Equal(t, "vacation.jpg", results[0].Record.Name)

	_, err = env.store.Read(ctx, "drive/vacation.jpg")
	require.NoError(t, err)

	old, err := env.repo.FindByURL(ctx, "drive/photo.jpg")
	require.NoError(t, err)
	assert.Nil(t, old)
}

func TestRenameNoop(t *testing.T) {
	env := newTestEnv(t, 1024*1024)
	ctx := context.Background()
	env.seedFile(t, "drive/photo.jpg", []byte("x"), biz.TypeImage)

	// 新名字与旧名字相同时原样返回，不触发物理操作
	results, err := env.files.MoveOrRename(ctx, []string{"drive/photo.jpg"}, "drive/photo", true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "drive/photo.jpg", results[0].NewURL)

	data, err := env.store.Read(ctx, "drive/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)

	// 原地改名没有变更，不触发缓存失效
	assert.Equal(t, 0, env.cache.invalidateCount())
}

func TestMoveToFolder(t *testing.T) {
	env := newTestEnv(t, 1024*1024)
	ctx := context.Background()
	env.seedFile(t, "drive/photo.jpg", []byte("x"), biz.TypeImage)

	results, err := env.files.MoveOrRename(ctx, []string{"drive/photo.jpg"}, "archive", false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "archive/photo.jpg", results[0].NewURL)

	_, err = env.store.Read(ctx, "archive/photo.jpg")
	require.NoError(t, err)

	// 移动改变了最近文件的 URL，总览缓存要失效
	assert.Equal(t, 1, env.cache.invalidateCount())
}

func TestMoveSkipsUnknownAndKeepsGoing(t *testing.T) {
	env := newTestEnv(t, 1024*1024)
	ctx := context.Background()
	env.seedFile(t, "drive/b.txt", []byte("b"), biz.TypeOther)

	// 不存在的记录静默跳过，其余照常处理
	results, err := env.files.MoveOrRename(ctx, []string{"drive/missing.txt", "drive/b.txt", ""}, "archive", false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "archive/b.txt", results[0].NewURL)
}

func TestMoveSkipsWhenBlobMissing(t *testing.T) {
	env := newTestEnv(t, 1024*1024)
	ctx := context.Background()

	// 只有记录没有物理文件
	require.NoError(t, env.repo.Insert(ctx, &biz.FileRecord{URL: "drive/ghost.txt", Name: "ghost.txt", Type: biz.TypeOther}))

	results, err := env.files.MoveOrRename(ctx, []string{"drive/ghost.txt"}, "archive", false)
	require.NoError(t, err)
	assert.Empty(t, results)

	// 元数据保持原位
	record, err := env.repo.FindByURL(ctx, "drive/ghost.txt")
	require.NoError(t, err)
	require.NotNil(t, record)
}

func TestMoveEmptyTarget(t *testing.T) {
	env := newTestEnv(t, 1024*1024)

	_, err := env.files.MoveOrRename(context.Background(), []string{"drive/a.txt"}, "", false)
	assert.True(t, errors.Is(err, biz.ErrInvalidPath))
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t, 1024*1024)
	ctx := context.Background()
	env.seedFile(t, "drive/a.txt", []byte("a"), biz.TypeOther)
	env.seedFile(t, "drive/b.txt", []byte("b"), biz.TypeOther)

	deleted, err := env.files.Delete(ctx, []string{"drive/a.txt"})
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, "drive/a.txt", deleted[0].URL)

	exists, err := env.store.Exists(ctx, "drive/a.txt")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, []string{"drive/b.txt"}, env.repo.urls())
}

func TestDeleteAlreadyGone(t *testing.T) {
	env := newTestEnv(t, 1024*1024)
	ctx := context.Background()
	env.seedFile(t, "drive/a.txt", []byte("a"), biz.TypeOther)

	deleted, err := env.files.Delete(ctx, []string{"drive/a.txt"})
	require.NoError(t, err)
	require.Len(t, deleted, 1)

	// 重复删除静默跳过
	deleted, err = env.files.Delete(ctx, []string{"drive/a.txt"})
	require.NoError(t, err)
	assert.Empty(t, deleted)
}

func TestDeleteRecordWithoutBlob(t *testing.T) {
	env := newTestEnv(t, 1024*1024)
	ctx := context.Background()

	require.NoError(t, env.repo.Insert(ctx, &biz.FileRecord{URL: "drive/ghost.txt", Name: "ghost.txt", Type: biz.TypeOther}))

	// 物理文件缺失不阻止记录删除
	deleted, err := env.files.Delete(ctx, []string{"drive/ghost.txt"})
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Empty(t, env.repo.urls())
}

func TestToggleFavorite(t *testing.T) {
	env := newTestEnv(t, 1024*1024)
	ctx := context.Background()
	env.seedFile(t, "drive/a.txt", []byte("a"), biz.TypeOther)

	record, err := env.files.ToggleFavorite(ctx, "drive/a.txt", true)
	require.NoError(t, err)
	assert.True(t, record.Favorite)

	record, err = env.files.ToggleFavorite(ctx, "drive/a.txt", false)
	require.NoError(t, err)
	assert.False(t, record.Favorite)

	_, err = env.files.ToggleFavorite(ctx, "drive/missing.txt", true)
	assert.True(t, errors.Is(err, biz.ErrNotFound))
}

func TestList(t *testing.T) {
	env := newTestEnv(t, 1024*1024)
	ctx := context.Background()
	env.seedFile(t, "drive/a.jpg", []byte("a"), biz.TypeImage)
	env.seedFile(t, "drive/b.mp4", []byte("b"), biz.TypeVideo)
	env.seedFile(t, "drive/sub/c.jpg", []byte("c"), biz.TypeImage)

	// All 不过滤类型
	all, err := env.files.List(ctx, biz.TypeAll, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	images, err := env.files.List(ctx, biz.TypeImage, "")
	require.NoError(t, err)
	assert.Len(t, images, 2)

	// path 只返回直接子文件
	direct, err := env.files.List(ctx, biz.TypeAll, "drive")
	require.NoError(t, err)
	urls := make([]string, 0, len(direct))
	for _, r := range direct {
		urls = append(urls, r.URL)
	}
	assert.ElementsMatch(t, []string{"drive/a.jpg", "drive/b.mp4"}, urls)
}

func TestGetFile(t *testing.T) {
	env := newTestEnv(t, 1024*1024)
	ctx := context.Background()
	env.seedFile(t, "drive/a.txt", []byte("content"), biz.TypeOther)

	data, name, err := env.files.GetFile(ctx, "drive/a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), data)
	assert.Equal(t, "a.txt", name)

	_, _, err = env.files.GetFile(ctx, "drive/missing.txt")
	assert.True(t, errors.Is(err, biz.ErrNotFound))
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, 1024*1024)
	ctx := context.Background()
	env.seedFile(t, "drive/a.jpg", make([]byte, 2048), biz.TypeImage)
	env.seedFile(t, "drive/b.mp4", make([]byte, 1024), biz.TypeVideo)

	stats, err := env.files.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalFiles)
	assert.Equal(t, int64(3), stats.UsedKB)
	assert.Equal(t, int64(1024*1024), stats.QuotaKB)
	assert.Equal(t, int64(1), stats.CountsByType[biz.TypeImage])
	assert.Equal(t, int64(1), stats.CountsByType[biz.TypeVideo])
	assert.Equal(t, 1, env.cache.sets)

	// 第二次命中缓存
	cached, err := env.files.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.TotalFiles, cached.TotalFiles)
	assert.Equal(t, 1, env.cache.sets)
}

func TestMutationsInvalidateStatsCache(t *testing.T) {
	env := newTestEnv(t, 1024*1024)
	ctx := context.Background()

	_, err := env.files.Upload(ctx, &biz.UploadRequest{
		Name: "a.txt", MimeType: "text/plain", Data: []byte("x"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, env.cache.invalidateCount())

	records := env.repo.urls()
	require.Len(t, records, 1)

	_, err = env.files.Delete(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 2, env.cache.invalidateCount())
}
