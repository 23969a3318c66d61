// Package api is the operator HTTP surface: health, run control, read-back
// of normalized playlists, orphan audit, metrics and the progress WebSocket.
package api

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/937bb/937cms-sub001/internal/auth"
	"github.com/937bb/937cms-sub001/internal/episode"
	"github.com/937bb/937cms-sub001/internal/logging"
	"github.com/937bb/937cms-sub001/internal/metrics"
	"github.com/937bb/937cms-sub001/internal/resync"
	synchub "github.com/937bb/937cms-sub001/internal/sync"
	"github.com/937bb/937cms-sub001/pkg/models"
)

// Runner starts resync runs. *resync.Orchestrator implements it.
type Runner interface {
	Start(ctx context.Context) (string, <-chan resync.Report, error)
	Running() bool
}

// Playlists reads the normalized tables. *episode.Repo implements it.
type Playlists interface {
	ListByVideo(ctx context.Context, videoID int64) ([]episode.Playlist, error)
	Orphans(ctx context.Context) ([]models.Orphan, error)
	Counts(ctx context.Context) (episode.Counts, error)
}

// Videos looks up legacy rows. *vod.Repo implements it.
type Videos interface {
	GetByID(ctx context.Context, id int64) (*models.LegacyVideo, error)
}

type Server struct {
	DB        *sql.DB
	Runner    Runner
	Tracker   *resync.Tracker
	Playlists Playlists
	Videos    Videos
	Auth      *auth.Handler
	Hub       *synchub.Hub
	Gatherer  prometheus.Gatherer
	Log       *logrus.Entry
}

// Router wires every route. Runs are started with context.Background so a
// dropped request never cancels them.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog())
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", s.health)
	router.GET("/ready", s.ready)

	if s.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(s.Gatherer)))
	}
	if s.Hub != nil {
		router.GET("/ws", synchub.WSHandler(s.Hub))
	}

	s.Auth.RegisterRoutes(router.Group("/auth"))

	runs := router.Group("/runs")
	runs.GET("/current", s.currentRun)
	runs.GET("/last", s.lastRun)
	runs.POST("", s.Auth.Middleware(), s.startRun)

	router.GET("/videos/:id/sources", s.videoSources)
	router.GET("/orphans", s.orphans)
	router.GET("/counts", s.counts)

	return router
}

func (s *Server) requestLog() gin.HandlerFunc {
	log := logging.Component(s.Log, "http")
	return func(c *gin.Context) {
		c.Next()
		log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		}).Debug("request")
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
