package api

import (
	stderrors "errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/SIMPLYBOYS/tweetpulse/internal/chart"
	"github.com/SIMPLYBOYS/tweetpulse/internal/dashboard"
	"github.com/SIMPLYBOYS/tweetpulse/internal/errors"
	"github.com/SIMPLYBOYS/tweetpulse/internal/session"
	"github.com/SIMPLYBOYS/tweetpulse/internal/store"
	"github.com/SIMPLYBOYS/tweetpulse/internal/types"
	"github.com/SIMPLYBOYS/tweetpulse/pkg/logger"
	"github.com/gin-gonic/gin"
)

const (
	FlashError   = "error"
	FlashSuccess = "success"
)

type Handler struct {
	svc Dashboard
}

// indexPage is handed to the index template and, for JSON clients, encoded as is.
type indexPage struct {
	Overview      *dashboard.Overview     `json:"overview"`
	Result        *dashboard.SearchResult `json:"result,omitempty"`
	WalletAddress string                  `json:"wallet_address"`
	Points        int                     `json:"points"`
	Flashes       []session.Flash         `json:"flashes"`
}

type dataPoint struct {
	Start      string `json:"start"`
	TweetCount int    `json:"tweet_count"`
}

// pageParam reads a 1-based page number. Anything unparsable is page 1; a
// positive number too large for int is treated as the last page.
func pageParam(c *gin.Context, name string) int {
	raw := strings.TrimSpace(c.Query(name))
	page, err := strconv.Atoi(raw)
	if stderrors.Is(err, strconv.ErrRange) && !strings.HasPrefix(raw, "-") {
		return math.MaxInt
	}
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func wantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

// Index renders both ranked lists without calling the counts API.
func (h *Handler) Index(c *gin.Context) {
	if err := h.render(c, nil, pageParam(c, "popular_page"), pageParam(c, "recent_page")); err != nil {
		c.Error(&errors.APIError{StatusCode: http.StatusInternalServerError, Message: dashboard.MsgGenericFailure, Err: err})
	}
}

// Search handles the search form. Any failure is flashed and redirected to /.
func (h *Handler) Search(c *gin.Context) {
	walletAddr := session.Wallet(c)
	query := c.PostForm("query")

	result, err := h.svc.Search(c.Request.Context(), walletAddr, query)
	if err != nil {
		var precondition *errors.PreconditionError
		if stderrors.As(err, &precondition) {
			logger.Debug("Search rejected: %s", precondition.Message)
		} else {
			logger.LogError(err)
		}
		session.AddFlash(c, FlashError, dashboard.FlashMessage(err))
		c.Redirect(http.StatusFound, "/")
		return
	}

	// The search already counted; only the page failed.
	if err := h.render(c, result, pageParam(c, "popular_page"), pageParam(c, "recent_page")); err != nil {
		session.AddFlash(c, FlashError, dashboard.MsgGenericFailure)
		c.Redirect(http.StatusFound, "/")
	}
}

// render writes the index page. Nothing is written when it returns an error.
func (h *Handler) render(c *gin.Context, result *dashboard.SearchResult, popularPage, recentPage int) error {
	ctx := c.Request.Context()
	walletAddr := session.Wallet(c)

	overview, err := h.svc.Overview(ctx, popularPage, recentPage)
	if err != nil {
		logger.LogError(err)
		return err
	}

	points, err := h.svc.Points(ctx, walletAddr)
	if err != nil {
		logger.Warn("Failed to load points for %s: %v", walletAddr, err)
	}

	page := indexPage{
		Overview:      overview,
		Result:        result,
		WalletAddress: walletAddr,
		Points:        points,
		Flashes:       session.Flashes(c),
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, page)
		return nil
	}
	c.HTML(http.StatusOK, "index.html", page)
	return nil
}

type connectRequest struct {
	WalletAddress string `json:"wallet_address" form:"wallet_address"`
	Address       string `json:"address" form:"address"`
}

func (h *Handler) ConnectWallet(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBind(&req); err != nil {
		logger.Debug("Unreadable connect_wallet body: %v", err)
	}
	raw := req.WalletAddress
	if strings.TrimSpace(raw) == "" {
		raw = req.Address
	}

	address, points, err := h.svc.ConnectWallet(c.Request.Context(), raw)
	if err != nil {
		var precondition *errors.PreconditionError
		if stderrors.As(err, &precondition) {
			c.JSON(http.StatusBadRequest, gin.H{"error": precondition.Message})
			return
		}
		c.Error(&errors.APIError{StatusCode: http.StatusInternalServerError, Message: "Failed to connect wallet.", Err: err})
		return
	}

	session.SetWallet(c, address)
	session.AddFlash(c, FlashSuccess, "Wallet connected successfully.")
	logger.Info("Wallet connected: %s", address)
	c.JSON(http.StatusOK, gin.H{
		"message":        "Wallet connected successfully.",
		"points":         points,
		"wallet_address": address,
	})
}

func (h *Handler) DisconnectWallet(c *gin.Context) {
	if previous := session.ClearWallet(c); previous != "" {
		logger.Info("Wallet disconnected: %s", previous)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Wallet disconnected."})
}

func (h *Handler) Suggest(c *gin.Context) {
	suggestions, err := h.svc.Suggest(c.Request.Context(), c.Query("q"))
	if err != nil {
		c.Error(&errors.APIError{StatusCode: http.StatusInternalServerError, Message: "Failed to load suggestions.", Err: err})
		return
	}
	if suggestions == nil {
		suggestions = []types.Suggestion{}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// queryParam strips the leading slash gin leaves on catch-all parameters.
func queryParam(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("query"), "/")
}

func notFound(query string, err error) *errors.APIError {
	return &errors.APIError{
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf("No data found for query '%s'.", query),
		Err:        err,
	}
}

func (h *Handler) Data(c *gin.Context) {
	query := queryParam(c)
	series, err := h.svc.Series(c.Request.Context(), query)
	if err != nil {
		h.seriesError(c, query, err)
		return
	}

	data := make([]dataPoint, len(series))
	for i, p := range series {
		data[i] = dataPoint{Start: p.Start.UTC().Format(store.SeriesTimeLayout), TweetCount: p.TweetCount}
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "data": data})
}

// Plot returns the chart as base64 JSON by default, or raw with format=png or format=text.
func (h *Handler) Plot(c *gin.Context) {
	query := queryParam(c)
	ctx := c.Request.Context()

	switch c.DefaultQuery("format", "json") {
	case "text":
		width, _ := strconv.Atoi(c.Query("width"))
		text, err := h.svc.PlotText(ctx, query, width)
		if err != nil {
			h.seriesError(c, query, err)
			return
		}
		c.String(http.StatusOK, text)
	case "png":
		png, err := h.svc.PlotPNG(ctx, query)
		if err != nil {
			h.seriesError(c, query, err)
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	default:
		png, err := h.svc.PlotPNG(ctx, query)
		if err != nil {
			h.seriesError(c, query, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"plot_url": chart.EncodeBase64(png)})
	}
}

func (h *Handler) seriesError(c *gin.Context, query string, err error) {
	var nf *errors.NotFoundError
	switch {
	case query == "" || stderrors.As(err, &nf):
		logger.Debug("No data file found for query %q", query)
		c.Error(notFound(query, err))
	case stderrors.Is(err, chart.ErrNotEnoughPoints):
		c.Error(&errors.APIError{
			StatusCode: http.StatusUnprocessableEntity,
			Message:    fmt.Sprintf("Not enough data to plot query '%s'.", query),
			Err:        err,
		})
	default:
		c.Error(&errors.APIError{StatusCode: http.StatusInternalServerError, Message: "Failed to generate plot.", Err: err})
	}
}

func (h *Handler) Leaderboard(c *gin.Context) {
	limit := dashboard.DefaultLeaderboardLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	board, err := h.svc.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		c.Error(&errors.APIError{StatusCode: http.StatusInternalServerError, Message: "Failed to fetch leaderboard", Err: err})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": board})
}
