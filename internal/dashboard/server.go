package dashboard

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"api_ventas/api"
	"api_ventas/internal/sales"
)

//go:embed templates/*.html
var templatesFS embed.FS

// LimitOptions are the page sizes offered by the limit selector.
var LimitOptions = []int{10, 25, 50, 100}

// ServerConfig configures the dashboard HTTP surface.
type ServerConfig struct {
	DefaultLimit int
	LoadTimeout  time.Duration
}

type server struct {
	dash   *Dashboard
	format *Formatter
	cfg    ServerConfig
	limits []int
	logger *zap.Logger
}

type indexPage struct {
	View     View
	Stats    DailyStats
	Limits   []int
	Today    string
	DateFrom string
	DateTo   string
}

const dateInputLayout = "2006-01-02"

// defaultRangeDays is the span preselected in the date controls.
const defaultRangeDays = 7

// NewRouter builds the gin engine serving the dashboard pages.
func NewRouter(d *Dashboard, f *Formatter, cfg ServerConfig, logger *zap.Logger) (*gin.Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultLimit < 1 {
		cfg.DefaultLimit = 50
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 10 * time.Second
	}

	tmpl, err := template.New("").Funcs(f.Funcs()).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	limits := slices.Clone(LimitOptions)
	if !slices.Contains(limits, cfg.DefaultLimit) {
		limits = append(limits, cfg.DefaultLimit)
		slices.Sort(limits)
	}

	s := &server{dash: d, format: f, cfg: cfg, limits: limits, logger: logger}

	e := gin.New()
	e.Use(api.RequestLogger(logger), api.Recovery(logger))
	e.SetHTMLTemplate(tmpl)

	e.GET("/", s.handleIndex)
	e.GET("/ventas/:id", s.handleDetail)
	e.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "timestamp": time.Now().UTC().Format(api.TimestampLayout)})
	})
	return e, nil
}

// parseLimit accepts only the offered page sizes.
func (s *server) parseLimit(text string) int {
	n, err := strconv.Atoi(text)
	if err != nil || !slices.Contains(s.limits, n) {
		return s.cfg.DefaultLimit
	}
	return n
}

// parseRange reads the date controls, falling back to the last defaultRangeDays days.
func (s *server) parseRange(fromText, toText string) (string, string) {
	today := time.Now().In(s.dash.Location())
	from := today.AddDate(0, 0, -defaultRangeDays).Format(dateInputLayout)
	to := today.Format(dateInputLayout)
	if _, err := time.Parse(dateInputLayout, fromText); err == nil {
		from = fromText
	}
	if _, err := time.Parse(dateInputLayout, toText); err == nil {
		to = toText
	}
	return from, to
}

func (s *server) load(c *gin.Context, limit int) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.LoadTimeout)
	defer cancel()
	// El error ya queda en el estado (fase Errored) y se muestra en la tabla.
	_ = s.dash.LoadSales(ctx, limit)
}

func (s *server) handleIndex(c *gin.Context) {
	limit := s.parseLimit(c.Query("limit"))
	from, to := s.parseRange(c.Query("dateFrom"), c.Query("dateTo"))
	refresh := c.Query("refresh") == "1"
	if s.dash.RangeChanged(from, to) {
		refresh = true
	}
	if s.dash.NeedsLoad(limit, refresh) {
		s.load(c, limit)
	}

	// el término es propio de cada request
	view := s.dash.View(c.Query("q"))
	c.HTML(http.StatusOK, "index.html", indexPage{
		View:     view,
		Stats:    s.dash.Stats(view),
		Limits:   s.limits,
		Today:    s.format.Date(time.Now()),
		DateFrom: from,
		DateTo:   to,
	})
}

func (s *server) handleDetail(c *gin.Context) {
	if s.dash.Phase() == Idle {
		s.load(c, s.cfg.DefaultLimit)
	}

	detail, err := s.dash.RenderDetail(c.Param("id"))
	switch {
	case errors.Is(err, sales.ErrNotFound):
		c.HTML(http.StatusNotFound, "notfound.html", gin.H{"ID": c.Param("id")})
		return
	case err != nil:
		s.logger.Error("failed to render sale detail", zap.String("id", c.Param("id")), zap.Error(err))
		c.HTML(http.StatusInternalServerError, "notfound.html", gin.H{"ID": c.Param("id"), "Error": err.Error()})
		return
	}
	c.HTML(http.StatusOK, "detail.html", detail)
}
