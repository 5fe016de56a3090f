package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelfscrape/cache"
	"github.com/use-agent/shelfscrape/models"
	"github.com/use-agent/shelfscrape/paginate"
)

// Scraper runs one scrape; *service.Service implements it.
type Scraper interface {
	Scrape(ctx context.Context, req *models.ScrapeRequest, onProgress paginate.ProgressFunc) *models.ScrapeResult
}

// Scrape returns a handler for POST /api/v1/scrape.
//
// Flow:
//  1. Bind the request and apply defaults.
//  2. Serve from cache when max_age allows.
//  3. Run the scrape on the request context.
//  4. Answer with the JSON envelope, or the raw file when download is set.
func Scrape(svc Scraper, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}
		req.Defaults()

		useCache := cc != nil && req.MaxAge > 0
		if useCache {
			if cached, hit := cc.Get(cache.Key(&req), req.MaxAge); hit {
				cached.CacheStatus = "hit"
				cached.Timing = models.TimingInfo{TotalMs: time.Since(start).Milliseconds()}
				respondResult(c, cached, req.Download)
				return
			}
		}

		res := svc.Scrape(c.Request.Context(), &req, nil)
		if useCache && res.Success {
			cc.Set(cache.Key(&req), res)
			res.CacheStatus = "miss"
		}
		respondResult(c, res, req.Download)
	}
}

// respondResult writes res as JSON, or as an attachment when download is
// set and the scrape succeeded.
func respondResult(c *gin.Context, res *models.ScrapeResult, download bool) {
	if !res.Success {
		c.JSON(statusForCode(res.ErrorCode), res)
		return
	}
	if download {
		sendFile(c, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func sendFile(c *gin.Context, res *models.ScrapeResult) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	c.Header("X-Record-Count", fmt.Sprint(res.Count))
	c.Data(http.StatusOK, res.ContentType, res.Data)
}

// respondError maps an error to its HTTP status and writes the failure
// envelope.
func respondError(c *gin.Context, err error) {
	res := models.Failure(err)
	c.JSON(statusForCode(res.ErrorCode), res)
}

// statusForCode translates error codes to HTTP status codes.
func statusForCode(code string) int {
	switch code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput, models.ErrCodeUnsupportedFormat:
		return http.StatusBadRequest // 400
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
