// Package cleanup はどのレシピからも参照されていない画像ファイルを削除するジョブを提供する。
// 画像の差し替えやレシピ削除で残ったファイルを定期的に回収する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/recipebox/internal/media"
	"github.com/hitoshi/recipebox/internal/metrics"
)

// DefaultGrace は保存から削除対象になるまでの猶予期間のデフォルト値。
const DefaultGrace = 24 * time.Hour

// ImagePathLister はレシピから参照されている画像パスを列挙するインターフェース。
// repository.RecipeRepositoryが実装する。
type ImagePathLister interface {
	ListImagePaths(ctx context.Context) ([]string, error)
}

// FileStore は画像ファイルの列挙と削除を行うインターフェース。
// media.LocalStorageが実装する。
type FileStore interface {
	Walk(prefix string) ([]media.StoredFile, error)
	Delete(relPath string) error
}

// CleanupJob は孤立した画像ファイルの削除ジョブ。
// 冪等であり、削除対象がない場合でもエラーにならない。
type CleanupJob struct {
	recipes ImagePathLister
	store   FileStore
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time

	// Grace より新しいファイルは参照がなくても削除しない。
	// アップロード直後でDB更新が未完了のファイルを守る。
	Grace time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewCleanupJob(recipes ImagePathLister, store FileStore, logger *slog.Logger, collector metrics.MetricsCollector) *CleanupJob {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &CleanupJob{
		recipes: recipes,
		store:   store,
		logger:  logger,
		metrics: collector,
		now:     time.Now,
		Grace:   DefaultGrace,
	}
}

// Start はintervalごとにRunを実行する。起動直後に1回実行し、ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("画像クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("grace", j.Grace),
	)

	if err := j.Run(ctx); err != nil {
		j.logger.Error("画像クリーンアップジョブの実行に失敗しました", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("画像クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("画像クリーンアップジョブの実行に失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}

// Run は参照されていない古い画像ファイルを1回分削除する。
// ファイルの列挙を参照パスの取得より先に行い、列挙後に保存されたファイルは対象外とする。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()

	files, err := j.store.Walk(media.RecipeImageDir)
	if err != nil {
		return fmt.Errorf("画像ファイルの列挙に失敗: %w", err)
	}

	paths, err := j.recipes.ListImagePaths(ctx)
	if err != nil {
		return fmt.Errorf("参照中の画像パスの取得に失敗: %w", err)
	}
	referenced := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		referenced[p] = struct{}{}
	}

	cutoff := start.Add(-j.Grace)
	removed, failed := 0, 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := referenced[f.Path]; ok {
			continue
		}
		if f.ModTime.After(cutoff) {
			continue
		}
		if err := j.store.Delete(f.Path); err != nil {
			failed++
			j.logger.Warn("孤立画像の削除に失敗しました",
				slog.String("path", f.Path),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	if removed > 0 {
		j.metrics.RecordOrphanImagesRemoved(removed)
	}

	j.logger.Info("画像クリーンアップジョブが完了しました",
		slog.Int("scanned_count", len(files)),
		slog.Int("deleted_count", removed),
		slog.Int("failed_count", failed),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return nil
}
