// Package media はレシピ画像の検証とファイルストレージを提供する。
package media

import (
	"bytes"
	"errors"
	"image"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// RecipeImageDir はレシピ画像を保存する論理ディレクトリ。
const RecipeImageDir = "uploads/recipe"

// ErrNotImage はデータが画像としてデコードできない場合のエラー。
var ErrNotImage = errors.New("media: data is not a decodable image")

// Verify はデータを画像としてデコードし、フォーマット名（jpeg, png, gif等）を返す。
// ヘッダーだけでなく画素データまで読み込むため、途中で切れたファイルも拒否する。
func Verify(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNotImage
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", ErrNotImage
	}
	if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
		return "", ErrNotImage
	}
	return format, nil
}

// ImageFilePath はアップロード画像の保存パスを生成する。
// ファイル名はUUIDv4に元ファイル名の最後の "." 以降を拡張子として付けたもの。
// 元ファイル名に "." がない場合はデコード結果のフォーマットを使う。
func ImageFilePath(originalName, format string) string {
	ext := extension(originalName)
	if ext == "" {
		ext = formatExtension(format)
	}
	name := uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	return path.Join(RecipeImageDir, name)
}

func extension(name string) string {
	// クライアントがパス付きで送ってきた場合に備えてベース名だけを見る
	name = name[strings.LastIndexAny(name, `/\`)+1:]
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	ext := name[i+1:]
	if strings.ContainsAny(ext, " \t\r\n") {
		return ""
	}
	return ext
}

func formatExtension(format string) string {
	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		return format
	}
	switch f {
	case imaging.JPEG:
		return "jpg"
	case imaging.TIFF:
		return "tif"
	default:
		return strings.ToLower(f.String())
	}
}

// ContentType は保存パスの拡張子から配信時のContent-Typeを決める。
// 画像として扱える拡張子でなければ application/octet-stream を返し、inlineはfalseになる。
func ContentType(relPath string) (contentType string, inline bool) {
	f, err := imaging.FormatFromFilename(relPath)
	if err != nil {
		return "application/octet-stream", false
	}
	switch f {
	case imaging.JPEG:
		return "image/jpeg", true
	case imaging.PNG:
		return "image/png", true
	case imaging.GIF:
		return "image/gif", true
	case imaging.TIFF:
		return "image/tiff", true
	case imaging.BMP:
		return "image/bmp", true
	default:
		return "application/octet-stream", false
	}
}
