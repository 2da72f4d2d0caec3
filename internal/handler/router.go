package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/recipebox/internal/media"
	"github.com/hitoshi/recipebox/internal/metrics"
	"github.com/hitoshi/recipebox/internal/middleware"
)

// healthCheckTimeout はヘルスチェックでのDB疎通確認のタイムアウト。
const healthCheckTimeout = 3 * time.Second

// HealthChecker はDBの疎通確認インターフェース。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenAuthenticator middleware.TokenAuthenticator
	CORSAllowedOrigin  string
	RateLimiter        *middleware.RateLimiter
	Metrics            metrics.MetricsCollector
	Logger             *slog.Logger

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// メディア配信（MEDIA_URL配下でMEDIA_ROOTを公開する）
	MediaURL  string
	MediaRoot string

	// ユーザー
	AuthService AuthServiceInterface
	UserService UserServiceInterface

	// タグ・材料
	TagService        AttributeServiceInterface
	IngredientService AttributeServiceInterface

	// レシピ
	RecipeService RecipeServiceInterface
	ImageURLs     ImageURLBuilder
	MaxImageSize  int64

	// スタッフ向けユーザー管理（nilの場合は/admin配下を公開しない）
	AdminService AdminServiceInterface

	Validator RequestValidator
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → Metrics → SecurityHeaders → CORS → StripSlashes
//
// 資格情報を扱うルート（/user/create, /user/token）はIP単位、
// トークン認証ルートはユーザー単位でレート制限する。
// /admin配下はさらにスタッフ権限を要求する。
func NewRouter(deps *RouterDeps) http.Handler {
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(metrics.Middleware(collector))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(chimw.StripSlashes)

	r.NotFound(notFoundHandler)
	r.MethodNotAllowed(methodNotAllowedHandler)

	userHandler := NewUserHandler(deps.AuthService, deps.UserService, deps.Validator)
	tagHandler := NewAttributeHandler(deps.TagService, deps.Validator)
	ingredientHandler := NewAttributeHandler(deps.IngredientService, deps.Validator)
	recipeHandler := NewRecipeHandler(deps.RecipeService, deps.Validator, deps.ImageURLs, deps.MaxImageSize)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	if prefix, ok := mediaPrefix(deps.MediaURL); ok && deps.MediaRoot != "" {
		r.Get(prefix+"*", mediaHandler(prefix, deps.MediaRoot))
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.CredentialMiddleware())

		r.Post("/user/create", userHandler.Create)
		r.Post("/user/token", userHandler.Token)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: TokenAuth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewTokenAuthMiddleware(deps.TokenAuthenticator, collector))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/user/me", func(r chi.Router) {
			r.Get("/", userHandler.Me)
			r.Put("/", userHandler.Update)
			r.Patch("/", userHandler.Patch)
		})

		r.Route("/recipe", func(r chi.Router) {
			r.Get("/tags", tagHandler.List)
			r.Post("/tags", tagHandler.Create)

			r.Get("/ingredients", ingredientHandler.List)
			r.Post("/ingredients", ingredientHandler.Create)

			r.Route("/recipes", func(r chi.Router) {
				r.Get("/", recipeHandler.List)
				r.Post("/", recipeHandler.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", recipeHandler.Get)
					r.Put("/", recipeHandler.Update)
					r.Patch("/", recipeHandler.Patch)
					r.Delete("/", recipeHandler.Delete)

					r.Post("/upload-image", recipeHandler.UploadImage)
				})
			})
		})
	})

	// --- スタッフ専用のルート ---
	// ミドルウェアスタック: TokenAuth → RequireStaff → RateLimit(General)
	if deps.AdminService != nil {
		adminHandler := NewAdminHandler(deps.AdminService, deps.Validator)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewTokenAuthMiddleware(deps.TokenAuthenticator, collector))
			r.Use(middleware.NewRequireStaffMiddleware())
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Route("/admin/users", func(r chi.Router) {
				r.Get("/", adminHandler.List)
				r.Post("/", adminHandler.Create)
				r.Get("/{id}", adminHandler.Get)
				r.Patch("/{id}", adminHandler.Patch)
			})
		})
	}

	return r
}

type healthResponse struct {
	Status string `json:"status"`
}

// healthHandler はDBに疎通できれば200、できなければ503を返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// mediaPrefix はMEDIA_URLからルーティング用のパス接頭辞を取り出す。
// 外部ホストを指すURLの場合は配信しない。
func mediaPrefix(mediaURL string) (string, bool) {
	if !strings.HasPrefix(mediaURL, "/") || mediaURL == "/" {
		return "", false
	}
	if !strings.HasSuffix(mediaURL, "/") {
		mediaURL += "/"
	}
	return mediaURL, true
}

// mediaHandler は保存済みファイルを読み取り専用で配信する。ディレクトリ一覧は返さない。
// Content-Typeは拡張子から画像形式のみを許可し、それ以外は添付ファイルとして返す。
func mediaHandler(prefix, root string) http.HandlerFunc {
	files := http.StripPrefix(strings.TrimSuffix(prefix, "/"), http.FileServer(http.Dir(root)))
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, prefix)
		if name == "" || strings.HasSuffix(name, "/") || strings.Contains(name, "/.") || strings.HasPrefix(name, ".") {
			notFoundHandler(w, r)
			return
		}

		contentType, inline := media.ContentType(name)
		w.Header().Set("Content-Type", contentType)
		if !inline {
			w.Header().Set("Content-Disposition", "attachment")
		}
		w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
		files.ServeHTTP(w, r)
	}
}
