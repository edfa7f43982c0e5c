package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Matanel980/TaxiBot-sub003/internal/auth"
	"github.com/Matanel980/TaxiBot-sub003/internal/config"
	"github.com/Matanel980/TaxiBot-sub003/internal/driver"
	"github.com/Matanel980/TaxiBot-sub003/internal/feed"
	"github.com/Matanel980/TaxiBot-sub003/internal/ingest"
	"github.com/Matanel980/TaxiBot-sub003/internal/marker"
	"github.com/Matanel980/TaxiBot-sub003/internal/presence"
	"github.com/Matanel980/TaxiBot-sub003/internal/stream"
	"github.com/Matanel980/TaxiBot-sub003/internal/trip"
	"github.com/Matanel980/TaxiBot-sub003/internal/zone"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
	Log    *slog.Logger

	drivers  *driver.Store
	trips    *trip.Service
	zones    *zone.Service
	ingest   *ingest.Service
	archiver *ingest.KafkaArchiver

	mu       sync.Mutex
	stations map[string]*station
}

func NewServer(cfg config.Config, pool *pgxpool.Pool, rdb *redis.Client, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       pool,
		Redis:    rdb,
		Stream:   stream.NewHub(rdb, log),
		Log:      log,
		drivers:  driver.NewStore(pool),
		stations: map[string]*station{},
	}

	var tripPub trip.FeedPublisher
	var drvPub driver.FeedPublisher
	var ingPub ingest.FeedPublisher
	if rdb != nil {
		pub := feed.NewPublisher(rdb)
		tripPub, drvPub, ingPub = pub, pub, pub
	}

	var archiver ingest.Archiver
	if cfg.KafkaBroker != "" {
		s.archiver = ingest.NewKafkaArchiver([]string{cfg.KafkaBroker}, cfg.KafkaTopic)
		archiver = s.archiver
	}

	s.trips = trip.NewService(pool, tripPub, log)
	s.zones = zone.NewService(pool)
	s.ingest = ingest.NewService(s.drivers, ingPub, archiver, ingest.Gates{
		MinMoveMeters:    cfg.MinMoveMeters,
		MinWriteInterval: cfg.MinWriteInterval,
		MinHeadingDelta:  cfg.MinHeadingDelta,
	}, log)
	if rdb != nil {
		ttl := cfg.HeartbeatTTL
		s.ingest.Heartbeat = func(ctx context.Context, stationID, driverID string) {
			if err := presence.Heartbeat(ctx, rdb, stationID, driverID, ttl); err != nil {
				log.Warn("driver heartbeat failed", "driver_id", driverID, "error", err)
			}
		}
	}

	registerRoutes(s, drvPub)
	return s
}

func registerRoutes(s *Server, drvPub driver.FeedPublisher) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB), jwtMiddleware)

	driverGroup := s.App.Group("/drivers")
	driver.RegisterRoutes(driverGroup, s.drivers, drvPub, jwtMiddleware)
	ingest.RegisterRoutes(driverGroup, s.ingest, jwtMiddleware)

	trip.RegisterRoutes(s.App.Group("/trips"), s.trips, jwtMiddleware)
	zone.RegisterRoutes(s.App.Group("/zones"), s.zones, jwtMiddleware)

	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, stream.Options{
		Snapshot:      s.snapshot,
		Markers:       s.markers,
		FrameInterval: s.Cfg.FrameInterval,
		MarkerConfig: marker.Config{
			SnapBelowMeters: s.Cfg.SnapBelowMeters,
			SnapAboveMeters: s.Cfg.SnapAboveMeters,
			AnimateDuration: s.Cfg.AnimateDuration,
		},
	})
}

// Close stops the per-station consumers and the sample archiver.
func (s *Server) Close() {
	s.mu.Lock()
	for _, st := range s.stations {
		st.cancel()
	}
	s.stations = map[string]*station{}
	s.mu.Unlock()

	if s.archiver != nil {
		_ = s.archiver.Close()
	}
}
