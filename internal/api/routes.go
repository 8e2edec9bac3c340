package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"risk-decision/internal/logging"
	"risk-decision/internal/metrics"
	"risk-decision/internal/scoring"
	"risk-decision/internal/store"
	"risk-decision/internal/util"
)

const (
	requestIDHeader  = "X-Request-ID"
	defaultStatsDays = 7
	maxStatsDays     = 366
)

// ErrStatsDisabled is returned when the tally store is not configured.
var ErrStatsDisabled = errors.New("decision stats are disabled")

// Config defines server dependencies.
type Config struct {
	DBPath         string
	DisableStats   bool
	SilentDB       bool
	AllowedOrigins []string
}

// Server wires HTTP handlers with the decision engine and its side channels.
type Server struct {
	db             *store.Database
	allowedOrigins []string
	engine         func(scoring.Input) scoring.Result
	notifier       *DecisionNotifier
	registry       *prometheus.Registry
	metrics        *metrics.Metrics
	now            func() time.Time
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	configureValidator()

	var db *store.Database
	if cfg.DisableStats {
		logrus.Info("decision stats disabled via configuration")
	} else {
		if strings.TrimSpace(cfg.DBPath) == "" {
			return nil, errors.New("db path required")
		}
		opened, err := store.Open(cfg.DBPath, cfg.SilentDB)
		if err != nil {
			return nil, err
		}
		db = opened
		entry := logrus.WithField("path", cfg.DBPath)
		if total, err := db.CountDecisions(); err == nil {
			entry = entry.WithField("decisions", total)
		}
		entry.Info("decision stats store ready")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Server{
		db:             db,
		allowedOrigins: cfg.AllowedOrigins,
		engine:         scoring.Compute,
		notifier:       NewDecisionNotifier(),
		registry:       registry,
		metrics:        metrics.New(registry),
		now:            time.Now,
	}, nil
}

// Close releases the stats store.
func (s *Server) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	corsCfg := cors.DefaultConfig()
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", requestIDHeader}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsCfg.ExposeHeaders = []string{requestIDHeader}
	if err := corsCfg.Validate(); err != nil {
		return nil, fmt.Errorf("cors config: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(logging.Middleware(logrus.StandardLogger()))
	r.Use(cors.New(corsCfg))

	r.GET("/health", s.handleHealth)
	r.POST("/predict", s.handlePredict)
	r.GET("/stats", s.handleStats)
	r.GET("/decisions/stream", s.handleDecisionStream)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handlePredict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.metrics.IncrementValidationFailure()
		details := validationDetails(err)
		logrus.WithFields(logrus.Fields{
			logging.RequestIDKey: c.GetString(logging.RequestIDKey),
			"errors":             len(details),
		}).Debug("predict request rejected")
		c.JSON(http.StatusUnprocessableEntity, ValidationErrorResponse{Detail: details})
		return
	}

	timer := util.StartTimer()
	result := s.engine(req.Input())
	s.metrics.ObserveEvaluateLatency(timer.Elapsed())

	resp := FromResult(result)
	s.metrics.ObserveDecision(resp.RiskLevel, resp.Decision, resp.RiskScore)
	s.recordTally(resp)
	s.notifier.Broadcast(DecisionEvent{
		Type:      "decision",
		RequestID: c.GetString(logging.RequestIDKey),
		RiskScore: resp.RiskScore,
		RiskLevel: resp.RiskLevel,
		Decision:  resp.Decision,
	})

	c.JSON(http.StatusOK, resp)
}

// recordTally is best effort; a store failure never changes the response.
func (s *Server) recordTally(resp PredictResponse) {
	if s.db == nil {
		return
	}
	if err := s.db.RecordDecision(resp.RiskLevel, resp.Decision); err != nil {
		logrus.WithError(err).WithField("risk_level", resp.RiskLevel).Warn("record decision tally")
	}
}

func (s *Server) handleStats(c *gin.Context) {
	if s.db == nil {
		s.renderError(c, http.StatusServiceUnavailable, ErrStatsDisabled)
		return
	}

	days := defaultStatsDays
	if value := strings.TrimSpace(c.Query("days")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 || parsed > maxStatsDays {
			s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid days: %s", value))
			return
		}
		days = parsed
	}

	since := s.now().UTC().AddDate(0, 0, -(days - 1))
	rows, err := s.db.ListTallies(since)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	resp := StatsResponse{
		Since: store.DayOf(since),
		Items: make([]TallyDTO, 0, len(rows)),
	}
	for _, row := range rows {
		resp.Items = append(resp.Items, TallyFromModel(row))
		resp.Total += row.Total
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDecisionStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin:       s.originAllowed,
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("decision stream connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).Warn("decision stream unexpected close")
			} else {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("decision stream closed")
			}
			return
		}
	}
}

// originAllowed accepts non-browser clients (no Origin header) and origins on the CORS list.
func (s *Server) originAllowed(r *http.Request) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, allowed := range s.allowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(logging.RequestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}
