package http

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/yanqingluo/dble/rpc/common"
	"github.com/yanqingluo/dble/rpc/transport"
)

var Logger = logger.GetLogger("transport/rpc")

// shutdownTimeout bounds how long Close waits for in-flight requests
const shutdownTimeout = 5 * time.Second

func NewHttpServerTransport() transport.IRPCServerTransport {
	return &httpServerTransport{}
}

type httpServerTransport struct {
	handler transport.ServerHandleFunc

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *httpServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *httpServerTransport) Listen(config common.ServerTransportConfig) error {
	if t.handler == nil {
		return errors.New("no handler registered")
	}

	listener, err := net.Listen("tcp", config.Endpoint)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return listener.Close()
	}
	t.server = &http.Server{Handler: t.router()}
	server := t.server
	t.mu.Unlock()

	Logger.Infof("Starting HTTP server on %s", listener.Addr())

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (t *httpServerTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	server := t.server
	t.mu.Unlock()

	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(ctx)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// router builds the gin engine serving POST /:shardId
func (t *httpServerTransport) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), loggerMiddleware())
	r.POST("/:shardId", t.handleRequest)
	return r
}

// handleRequest passes the body to the handler and writes the response
func (t *httpServerTransport) handleRequest(c *gin.Context) {
	shardId, err := strconv.ParseUint(c.Param("shardId"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid shardId")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to read request body")
		return
	}

	resp := t.handler(shardId, body)
	c.Data(http.StatusOK, "application/octet-stream", resp)
}

// loggerMiddleware logs every request on debug level
func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		Logger.Debugf("%s %s => %d took %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
