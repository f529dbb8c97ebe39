package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"textilemart/internal/usecase"
)

// ローカル保存した画像の配信パス
const UploadsPath = "/api/uploads"

type baseURLKey struct{}

// リクエストの scheme://host をctxに載せる（PUBLIC_BASE_URL未設定時に使う）
func WithBaseURL(ctx context.Context, base string) context.Context {
	return context.WithValue(ctx, baseURLKey{}, strings.TrimRight(base, "/"))
}

func BaseURLFrom(ctx context.Context) string {
	s, _ := ctx.Value(baseURLKey{}).(string)
	return s
}

// UPLOAD_DIR 配下に保存して /api/uploads で配信する
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir string, publicBaseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Save(ctx context.Context, img usecase.ImageUpload) (key string, err error) {
	key = NewKey(img.Filename)
	dst, err := os.Create(filepath.Join(s.dir, key))
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close file: %w", closeErr)
		}
		if err != nil {
			_ = os.Remove(filepath.Join(s.dir, key))
		}
	}()

	if _, err = io.Copy(dst, img.Body); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return key, nil
}

// 無いファイルの削除はエラーにしない
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, filepath.Base(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// PUBLIC_BASE_URL > リクエストのHost > 相対パス
func (s *LocalStore) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	path := UploadsPath + "/" + filepath.Base(key)
	if s.baseURL != "" {
		return s.baseURL + path, nil
	}
	if base := BaseURLFrom(ctx); base != "" {
		return base + path, nil
	}
	return path, nil
}
