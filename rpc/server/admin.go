package server

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"
	"github.com/yanqingluo/dble/lib/seqconf"
	"github.com/yanqingluo/dble/lib/sequence"
)

// startAdmin starts the admin API in the background if an admin endpoint is configured
func (s *rpcServer) startAdmin() error {
	if s.config.AdminEndpoint == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.config.AdminEndpoint)
	if err != nil {
		return err
	}
	s.admin = &http.Server{Handler: s.adminRouter()}

	Logger.Infof("Starting admin API on %s", listener.Addr())
	go func() {
		if err := s.admin.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("admin API stopped: %v", err)
		}
	}()
	return nil
}

// adminRouter builds the admin API:
//
//	GET  /healthz       liveness
//	GET  /metrics       prometheus metrics
//	GET  /sequences     sequence name to target
//	GET  /errors        last refill error per sequence
//	GET  /next/:name    allocates one id
//	POST /reload        reloads the sequence configuration, from the body (properties
//	                    format) or, with an empty body, from the configured source
func (s *rpcServer) adminRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), adminLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		metrics.WritePrometheus(c.Writer, true)
	})

	r.GET("/sequences", func(c *gin.Context) {
		if !s.requireAllocator(c) {
			return
		}
		c.JSON(http.StatusOK, s.allocator.Sequences())
	})
	r.GET("/errors", func(c *gin.Context) {
		if !s.requireAllocator(c) {
			return
		}
		c.JSON(http.StatusOK, s.allocator.LastErrors())
	})
	r.GET("/next/:name", s.handleNext)
	r.POST("/reload", s.handleReload)
	return r
}

func (s *rpcServer) requireAllocator(c *gin.Context) bool {
	if s.allocator == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no allocator shard on this server"})
		return false
	}
	return true
}

func (s *rpcServer) handleNext(c *gin.Context) {
	if !s.requireAllocator(c) {
		return
	}
	name := c.Param("name")
	id, err := s.allocator.NextID(name)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"sequence": name, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sequence": name, "id": id})
}

func (s *rpcServer) handleReload(c *gin.Context) {
	if !s.requireAllocator(c) {
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var mapping map[string]string
	if strings.TrimSpace(string(body)) == "" {
		mapping, err = s.source.Load()
	} else {
		mapping, err = seqconf.ParseProperties(string(body), s.config.Sequence.LowerCaseNames)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.applyMapping(mapping)
	c.JSON(http.StatusOK, gin.H{"sequences": len(mapping)})
}

// statusOf maps allocator errors to http status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, sequence.ErrUnknownSequence):
		return http.StatusNotFound
	case errors.Is(err, sequence.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, sequence.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func adminLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		Logger.Debugf("admin %s %s => %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}
