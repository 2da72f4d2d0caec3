package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidPath は保存先パスがストレージのルート外を指す場合のエラー。
var ErrInvalidPath = errors.New("media: invalid storage path")

// StoredFile はストレージ上のファイル情報を表す。
type StoredFile struct {
	Path    string // ストレージ相対パス（"/" 区切り）
	Size    int64
	ModTime time.Time
}

// LocalStorage はローカルファイルシステム上のメディアストレージ。
type LocalStorage struct {
	root      string
	publicURL string
}

// NewLocalStorage はLocalStorageを生成する。
// publicURL は保存ファイルを配信するURLの接頭辞（例: http://localhost:8080/media/）。
func NewLocalStorage(root, publicURL string) *LocalStorage {
	if publicURL != "" && !strings.HasSuffix(publicURL, "/") {
		publicURL += "/"
	}
	return &LocalStorage{root: root, publicURL: publicURL}
}

// Root はストレージのルートディレクトリを返す。
func (s *LocalStorage) Root() string {
	return s.root
}

// Save はデータを相対パスに書き込む。一時ファイルに書いてからリネームする。
func (s *LocalStorage) Save(relPath string, data []byte) error {
	full, err := s.fullPath(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create media directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write media file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close media file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod media file: %w", err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return fmt.Errorf("failed to move media file: %w", err)
	}
	return nil
}

// Delete は相対パスのファイルを削除する。存在しない場合は何もしない。
func (s *LocalStorage) Delete(relPath string) error {
	full, err := s.fullPath(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete media file: %w", err)
	}
	return nil
}

// Walk はprefix配下の通常ファイルを列挙する。prefixが存在しない場合は空を返す。
func (s *LocalStorage) Walk(prefix string) ([]StoredFile, error) {
	dir, err := s.fullPath(prefix)
	if err != nil {
		return nil, err
	}

	var files []StoredFile
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == dir {
				return fs.SkipDir
			}
			return err
		}
		// 書き込み途中の一時ファイルは対象外
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		files = append(files, StoredFile{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk media directory: %w", err)
	}
	return files, nil
}

// URL は相対パスの公開URLを返す。
func (s *LocalStorage) URL(relPath string) string {
	return s.publicURL + strings.TrimPrefix(relPath, "/")
}

func (s *LocalStorage) fullPath(relPath string) (string, error) {
	cleaned := path.Clean("/" + filepath.ToSlash(relPath))
	if cleaned == "/" || strings.Contains(relPath, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, relPath)
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/"))), nil
}
