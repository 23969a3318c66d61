package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/937bb/937cms-sub001/internal/auth"
	"github.com/937bb/937cms-sub001/internal/episode"
	"github.com/937bb/937cms-sub001/internal/playurl"
	"github.com/937bb/937cms-sub001/internal/resync"
)

func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{"running": s.Runner.Running()}
	if s.Hub != nil {
		stats := s.Hub.Stats()
		body["tcp_clients"] = stats.TCPClients
		body["ws_clients"] = stats.WSClients
	}

	if err := s.DB.PingContext(ctx); err != nil {
		body["status"] = "not_ready"
		body["db_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ready"
	body["db"] = "ok"
	c.JSON(http.StatusOK, body)
}

func (s *Server) startRun(c *gin.Context) {
	runID, _, err := s.Runner.Start(context.WithoutCancel(c.Request.Context()))
	if errors.Is(err, resync.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "a resync is already running"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "start failed"})
		return
	}

	log := s.Log.WithField("run_id", runID)
	if claims := auth.MustGetClaims(c); claims != nil {
		log = log.WithField("operator", claims.Username)
	}
	log.Info("resync started over http")

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

func (s *Server) currentRun(c *gin.Context) {
	c.JSON(http.StatusOK, s.Tracker.Current())
}

func (s *Server) lastRun(c *gin.Context) {
	last := s.Tracker.Last()
	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run finished yet"})
		return
	}
	c.JSON(http.StatusOK, last)
}

func (s *Server) videoSources(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return
	}

	lists, err := s.Playlists.ListByVideo(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	if lists == nil {
		lists = []episode.Playlist{}
	}

	body := gin.H{
		"vod_id":  id,
		"sources": lists,
	}
	if c.Query("legacy") != "" {
		from, url := playurl.Encode(episode.Groups(lists))
		body["vod_play_from"] = from
		body["vod_play_url"] = url

		if s.Videos != nil {
			v, err := s.Videos.GetByID(c.Request.Context(), id)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
				return
			}
			if v != nil {
				body["legacy"] = gin.H{
					"vod_play_from": v.PlayFrom,
					"vod_play_url":  v.PlayURL,
				}
			}
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) orphans(c *gin.Context) {
	items, err := s.Playlists.Orphans(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "orphan audit failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total": len(items),
		"items": items,
	})
}

func (s *Server) counts(c *gin.Context) {
	counts, err := s.Playlists.Counts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}
	c.JSON(http.StatusOK, counts)
}
