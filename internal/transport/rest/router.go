package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"studiobook/backend/internal/calendar"
	"studiobook/backend/internal/domain"
	"studiobook/backend/internal/service/studio"
)

type studioService interface {
	Overview(ctx context.Context) (studio.Overview, error)
	Occurrences(ctx context.Context, windowDays int) ([]domain.Occurrence, error)
	Snapshot(ctx context.Context) (domain.Snapshot, error)
	Location() *time.Location
	CreateInstructor(ctx context.Context, in studio.CreateInstructorInput) (domain.Instructor, error)
	DeleteInstructor(ctx context.Context, id string) error
	CreateClient(ctx context.Context, in studio.CreateClientInput) (domain.Client, error)
	ReassignClient(ctx context.Context, clientID, instructorID string) (domain.Client, error)
	DeleteClient(ctx context.Context, id string) error
	CreateBooking(ctx context.Context, in studio.CreateBookingInput) (domain.Booking, error)
	UpdateBooking(ctx context.Context, in studio.UpdateBookingInput) (studio.UpdateBookingResult, error)
	DeleteBooking(ctx context.Context, in studio.DeleteBookingInput) error
}

type Options struct {
	// CORSOrigins lists the allowed origins; empty allows any origin.
	CORSOrigins []string
	// RateLimitPerMinute caps requests per client IP. Zero disables the limit.
	RateLimitPerMinute int
	Calendar           calendar.FeedOptions
}

type Handler struct {
	svc      studioService
	calendar calendar.FeedOptions
	now      func() time.Time
	log      *slog.Logger
}

func NewHandler(svc studioService, feed calendar.FeedOptions, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		svc:      svc,
		calendar: feed,
		now:      time.Now,
		log:      log.With(slog.String("component", "rest.studio")),
	}
}

// NewRouter builds the HTTP API. The caller picks the gin mode.
func NewRouter(svc studioService, opts Options, log *slog.Logger) *gin.Engine {
	h := NewHandler(svc, opts.Calendar, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(h.log))
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))
	if opts.RateLimitPerMinute > 0 {
		r.Use(newIPRateLimiter(opts.RateLimitPerMinute, h.log).middleware())
	}

	r.GET("/health", h.health)
	h.Register(r.Group("/api"))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

func (h *Handler) Register(api *gin.RouterGroup) {
	api.GET("/all", h.getAll)
	api.GET("/occurrences", h.listOccurrences)
	api.GET("/calendar.ics", h.calendarFeed)

	api.POST("/instructors", h.createInstructor)
	api.DELETE("/instructors/:id", h.deleteInstructor)

	api.POST("/clients", h.createClient)
	api.PUT("/clients/:id", h.reassignClient)
	api.DELETE("/clients/:id", h.deleteClient)

	api.POST("/bookings", h.createBooking)
	api.PUT("/bookings/:id", h.updateBooking)
	api.DELETE("/bookings/:id", h.deleteBooking)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
