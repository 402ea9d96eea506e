package api

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/SIMPLYBOYS/tweetpulse/internal/dashboard"
	"github.com/SIMPLYBOYS/tweetpulse/internal/session"
	"github.com/SIMPLYBOYS/tweetpulse/internal/types"
	"github.com/SIMPLYBOYS/tweetpulse/internal/wallet"
	"github.com/dustin/go-humanize"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Dashboard is what the handlers need from the dashboard service.
type Dashboard interface {
	Search(ctx context.Context, walletAddr, query string) (*dashboard.SearchResult, error)
	Overview(ctx context.Context, popularPage, recentPage int) (*dashboard.Overview, error)
	Suggest(ctx context.Context, q string) ([]types.Suggestion, error)
	Series(ctx context.Context, query string) ([]types.TimeSeriesPoint, error)
	PlotPNG(ctx context.Context, query string) ([]byte, error)
	PlotText(ctx context.Context, query string, width int) (string, error)
	ConnectWallet(ctx context.Context, raw string) (string, int, error)
	Points(ctx context.Context, address string) (int, error)
	Leaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error)
}

// LiveFeed upgrades /ws requests.
type LiveFeed interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
}

type RouterConfig struct {
	Dashboard   Dashboard
	Sessions    *session.Manager
	LiveFeed    LiveFeed
	CORSOrigins []string
}

// SetupRouter initializes the Gin router and sets up the routes
func SetupRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(cfg.Sessions.Middleware())
	r.Use(ErrorMiddleware())
	r.SetHTMLTemplate(template.Must(template.New("").Funcs(templateFuncs()).ParseFS(templatesFS, "templates/*.html")))

	h := &Handler{svc: cfg.Dashboard}

	r.GET("/", h.Index)
	r.POST("/", h.Search)

	r.POST("/connect_wallet", h.ConnectWallet)
	r.POST("/disconnect_wallet", h.DisconnectWallet)

	r.GET("/suggest", h.Suggest)
	r.GET("/data/*query", h.Data)
	r.GET("/plot/*query", h.Plot)
	r.GET("/leaderboard", h.Leaderboard)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.LiveFeed != nil {
		r.GET("/ws", func(c *gin.Context) {
			cfg.LiveFeed.HandleWebSocket(c.Writer, c.Request)
		})
	}

	return r
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"comma": func(n int) string { return humanize.Comma(int64(n)) },
		"short": wallet.Short,
		"add":   func(a, b int) int { return a + b },
		"sub":   func(a, b int) int { return a - b },
		// pngURL marks a base64 chart as a safe data URI for <img src>.
		"pngURL": func(b64 string) template.URL { return template.URL("data:image/png;base64," + b64) },
		"since":  func(t time.Time) string { return humanize.Time(t) },
	}
}
