package router

import (
	actsvc "carbonmarket-backend/internal/application/activity"
	credsvc "carbonmarket-backend/internal/application/credits"
	docsvc "carbonmarket-backend/internal/application/documents"
	healthsvc "carbonmarket-backend/internal/application/health"
	lendsvc "carbonmarket-backend/internal/application/lending"
	mktsvc "carbonmarket-backend/internal/application/marketplace"
	projsvc "carbonmarket-backend/internal/application/projects"
	versvc "carbonmarket-backend/internal/application/verification"
	"carbonmarket-backend/internal/config"
	"carbonmarket-backend/internal/infrastructure/chain"
	acthandler "carbonmarket-backend/internal/interfaces/handlers/activity"
	credhandler "carbonmarket-backend/internal/interfaces/handlers/credits"
	dochandler "carbonmarket-backend/internal/interfaces/handlers/documents"
	healthhandler "carbonmarket-backend/internal/interfaces/handlers/health"
	lendhandler "carbonmarket-backend/internal/interfaces/handlers/lending"
	mkthandler "carbonmarket-backend/internal/interfaces/handlers/marketplace"
	projhandler "carbonmarket-backend/internal/interfaces/handlers/projects"
	verhandler "carbonmarket-backend/internal/interfaces/handlers/verification"
	"carbonmarket-backend/internal/metrics"
	"carbonmarket-backend/internal/middleware"
	"carbonmarket-backend/internal/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
)

// bodyLimit leaves room for multipart overhead around the largest document.
const bodyLimit = int(docsvc.DefaultMaxSize) + 1<<20

// CreateApp builds the Fiber app and its collaborators from cfg. The returned
// store and redis client (nil when not configured) are owned by the caller.
func CreateApp(cfg *config.Config) (*fiber.App, repository.Store, *redis.Client, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	rdb := openRedis(cfg.RedisURL)
	m := metrics.New()

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
		BodyLimit:               bodyLimit,
	})

	app.Use(middleware.Env(cfg.Env))
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowLocalhost: !cfg.IsProduction(),
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Metrics(m))

	locker := newLocker(rdb, cfg.LockTTL)
	ledger := chain.NewLedger(cfg.CreditContractAddress, cfg.ChainID)
	activity := &actsvc.Service{Repo: store}

	var collaborators []healthsvc.Collaborator
	if cfg.BlobStoreURL != "" {
		collaborators = append(collaborators, healthsvc.Collaborator{Name: "blobstore", URL: cfg.BlobStoreURL})
	}
	if cfg.ScorerAPIKey != "" {
		collaborators = append(collaborators, healthsvc.Collaborator{Name: "scorer", URL: cfg.ScorerBaseURL})
	}
	if cfg.ChainRPCURL != "" {
		collaborators = append(collaborators, healthsvc.Collaborator{Name: "chain", URL: cfg.ChainRPCURL})
	}
	hh := &healthhandler.Handlers{
		Service:        healthsvc.NewService(store, rdb, cfg.CollaboratorTimeout, collaborators...),
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/health/reset", hh.Reset)
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	api := app.Group("/api/v1")

	// Projects, documents, verification
	ph := &projhandler.Handlers{Service: &projsvc.Service{Repo: store, Activity: activity}}
	dh := &dochandler.Handlers{Service: &docsvc.Service{
		Projects: store,
		Blobs:    newBlobStore(cfg),
		Activity: activity,
	}}
	vh := &verhandler.Handlers{Service: &versvc.Service{
		Projects:      store,
		Credits:       store,
		Scorer:        newScorer(cfg),
		Ledger:        ledger,
		Activity:      activity,
		Locker:        locker,
		ApprovalScore: cfg.ApprovalScore,
	}}
	pg := api.Group("/projects")
	pg.Get("/", ph.List)
	pg.Post("/", ph.Register)
	pg.Get("/:id", ph.Get)
	pg.Post("/:id/documents", dh.Upload)
	pg.Get("/:id/documents", dh.List)
	pg.Post("/:id/verify", vh.Verify)
	pg.Get("/:id/verifications", vh.History)

	// Credits
	ch := &credhandler.Handlers{Service: &credsvc.Service{Repo: store, Ledger: ledger, Activity: activity, Locker: locker}}
	cg := api.Group("/credits")
	cg.Get("/", ch.List)
	cg.Get("/:id", ch.Get)
	cg.Post("/:id/retire", ch.Retire)

	// Marketplace
	mh := &mkthandler.Handlers{Service: &mktsvc.Service{
		Store:    store,
		Ledger:   ledger,
		Activity: activity,
		Locker:   locker,
		Metrics:  m,
	}}
	mg := api.Group("/marketplace/listings")
	mg.Get("/", mh.ListListings)
	mg.Post("/", mh.CreateListing)
	mg.Get("/:id", mh.GetListing)
	mg.Post("/:id/buy", mh.Buy)
	mg.Post("/:id/cancel", mh.Cancel)
	mg.Get("/:id/trades", mh.Trades)

	// Activity
	ah := &acthandler.Handlers{Service: activity}
	api.Get("/activities", ah.List)

	// Lending
	lh := &lendhandler.Handlers{Service: &lendsvc.Service{
		Positions:            store,
		Credits:              store,
		Verifier:             newVerifier(cfg),
		Activity:             activity,
		Locker:               locker,
		Metrics:              m,
		InterestRate:         cfg.DefaultInterestRate,
		LiquidationThreshold: cfg.DefaultLiquidationThreshold,
	}}
	lg := api.Group("/lending")
	lg.Get("/positions", lh.ListPositions)
	lg.Post("/positions", lh.OpenPosition)
	lg.Get("/positions/:id", lh.GetPosition)
	lg.Post("/positions/:id/collateral", lh.AddCollateral)
	lg.Post("/positions/:id/repay", lh.Repay)
	lg.Post("/positions/:id/liquidate", lh.Liquidate)
	lg.Post("/positions/:id/threshold", lh.UpdateThreshold)
	lg.Get("/stats", lh.Stats)
	lg.Get("/users/:address/positions", lh.UserPositions)

	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Route not found: "+c.Method()+" "+c.Path())
	})

	return app, store, rdb, nil
}
