package biz

import "errors"

var (
	// ErrNotFound 文件/文件夹/记录不存在
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists 文件夹已存在
	ErrAlreadyExists = errors.New("already exists")

	// ErrConflict 目标路径已被占用
	ErrConflict = errors.New("destination already exists")

	// ErrInvalidPath 路径为空或越出存储根目录
	ErrInvalidPath = errors.New("invalid path")

	// ErrNoSpace 超出存储配额
	ErrNoSpace = errors.New("no space available")

	// ErrEmptyUpload 请求中没有文件
	ErrEmptyUpload = errors.New("no files uploaded")
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
