// Package storage keeps product images on local disk or in S3.
package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// 画像の上限（5MB）
const DefaultMaxImageBytes = 5 * 1024 * 1024

var allowedExts = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// アップロード検証エラー（Codeは機械判定用）
type UploadError struct {
	Code    string
	Message string
}

func (e *UploadError) Error() string { return e.Message }

// 拡張子とサイズを検証する。maxBytes<=0ならデフォルト
func ValidateImage(filename string, size int64, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if size <= 0 {
		return &UploadError{Code: "EMPTY_FILE", Message: "image is empty"}
	}
	if size > maxBytes {
		return &UploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("image exceeds maximum size of %d MB", maxBytes/(1024*1024)),
		}
	}
	if _, ok := allowedExts[strings.ToLower(filepath.Ext(filename))]; !ok {
		return &UploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: "only png, jpg, jpeg and webp images are allowed",
		}
	}
	return nil
}

// 衝突しない保存キー（元のファイル名は使わない）
func NewKey(filename string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(filename))
}

// 拡張子からContent-Type
func ContentTypeFor(key string) string {
	if ct, ok := allowedExts[strings.ToLower(filepath.Ext(key))]; ok {
		return ct
	}
	return "application/octet-stream"
}
