package daemon

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ess-reader/ess-reader/pkg/config"
	"github.com/ess-reader/ess-reader/pkg/events"
	"github.com/ess-reader/ess-reader/pkg/sink"
	"github.com/ess-reader/ess-reader/pkg/version"
)

// Health is the body of GET /healthz.
type Health struct {
	Status    string     `json:"status"`
	LastCycle *time.Time `json:"lastCycle,omitempty"`
	Cycles    int        `json:"cycles"`
	// Streak is the number of recent cycles in the current unbroken run.
	Streak int `json:"streak"`
}

const (
	HealthOK    = "ok"
	HealthStale = "stale"
)

// streakWindow is how many intervals back /healthz looks for an unbroken run.
const streakWindow = 10

// VersionInfo is the body of GET /version.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
}

// Server is the read-only status API of a running daemon.
type Server struct {
	conf       config.Config
	latest     *sink.Latest
	metrics    *sink.Prometheus
	hub        *events.Hub
	recorder   *CycleRecorder
	interval   time.Duration
	staleAfter time.Duration
	now        func() time.Time

	closeOnce sync.Once
	closing   chan struct{}
}

// NewServer builds the status API for a loop polling every interval. The
// loop is stale when no cycle succeeded within two intervals plus 5s.
func NewServer(
	conf config.Config,
	latest *sink.Latest,
	metrics *sink.Prometheus,
	hub *events.Hub,
	recorder *CycleRecorder,
	interval time.Duration,
) *Server {
	return &Server{
		conf:       conf,
		latest:     latest,
		metrics:    metrics,
		hub:        hub,
		recorder:   recorder,
		interval:   interval,
		staleAfter: 2*interval + 5*time.Second,
		now:        time.Now,
		closing:    make(chan struct{}),
	}
}

// CloseStreams ends all open event streams so that a graceful shutdown does
// not wait for them.
func (s *Server) CloseStreams() {
	s.closeOnce.Do(func() { close(s.closing) })
}

// Handler returns the gin engine serving the status API.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logrus.StandardLogger()))
	router.GET("/reading", s.getReading)
	router.GET("/healthz", s.getHealth)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	router.GET("/events", s.streamEvents)
	router.GET("/config", s.getConfig)
	router.GET("/version", getVersion)

	return router
}

func (s *Server) getReading(c *gin.Context) {
	r, ok := s.latest.Get()
	if !ok {
		c.IndentedJSON(http.StatusNotFound, "no reading yet")
		return
	}
	c.IndentedJSON(http.StatusOK, r)
}

func (s *Server) getHealth(c *gin.Context) {
	now := s.now()
	h := Health{
		Status: HealthOK,
		Cycles: s.recorder.Len(),
		Streak: s.recorder.Continuous(now, streakWindow*s.interval, s.interval),
	}
	if last := s.recorder.Last(); !last.IsZero() {
		h.LastCycle = &last
	}
	code := http.StatusOK
	if s.recorder.Stale(now, s.staleAfter) {
		h.Status = HealthStale
		code = http.StatusServiceUnavailable
	}
	c.IndentedJSON(code, h)
}

func (s *Server) getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(s.conf, false)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func (s *Server) streamEvents(c *gin.Context) {
	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(_ io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		case <-c.Request.Context().Done():
			return false
		case <-s.closing:
			return false
		}
	})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, VersionInfo{
		Version:   version.Version,
		GitCommit: version.GitCommit,
	})
}
