package app

import (
	"context"
	"time"

	"github.com/aquamarinepk/aqm"
	aqmevents "github.com/aquamarinepk/aqm/events"
	"github.com/aquamarinepk/aqm/middleware"
	"github.com/bblatev/bjs-menu-sub004/internal/events"
	"github.com/bblatev/bjs-menu-sub004/internal/kds"
	"github.com/bblatev/bjs-menu-sub004/internal/mongo"
	"github.com/bblatev/bjs-menu-sub004/pkg"
)

const (
	AppName    = "kds"
	AppVersion = "0.1.0"
)

// App encapsulates the KDS service application
type App struct {
	config      *aqm.Config
	logger      aqm.Logger
	micro       *aqm.Micro
	conn        *mongo.Conn
	ticketRepo  *mongo.TicketRepo
	stationRepo *mongo.StationRepo
	historyRepo *mongo.HistoryRepo
	store       *kds.VenueStore
}

// New creates a new KDS service application
func New(config *aqm.Config, logger aqm.Logger) (*App, error) {
	return &App{
		config: config,
		logger: logger,
	}, nil
}

// Initialize sets up all dependencies and components
func (a *App) Initialize(ctx context.Context) error {
	a.conn = mongo.NewConn(a.config, a.logger)
	a.ticketRepo = mongo.NewTicketRepo(a.conn, a.logger)
	a.stationRepo = mongo.NewStationRepo(a.conn, a.logger)
	a.historyRepo = mongo.NewHistoryRepo(a.conn, a.logger)

	a.store = kds.NewVenueStore(a.logger)

	// Initialize NATS
	natsURL, _ := a.config.GetString("nats.url")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	var ticketStream *pkg.NATSStream
	var orderSubscriber *pkg.NATSSubscriber
	var natsPublisher aqmevents.Publisher

	streamEnabled, _ := a.config.GetString("nats.stream.enabled")
	if streamEnabled == "true" && natsURL != "" {
		// Stream for kds.tickets (persistent)
		streamCfg := pkg.NATSStreamConfig{
			URL:          natsURL,
			StreamName:   "KDS_EVENTS",
			Topic:        "kds.tickets",
			ConsumerName: "kds-publisher",
			MaxAge:       24 * time.Hour,
			MaxMsgs:      0,
		}
		var err error
		ticketStream, err = pkg.NewNATSStream(streamCfg, a.logger)
		if err != nil {
			return err
		}
		a.logger.Info("NATS stream initialized for persistent events")
		natsPublisher = ticketStream

		// Separate subscriber for orders.fired
		orderSubscriber, err = pkg.NewNATSSubscriber(natsURL, a.logger)
		if err != nil {
			return err
		}
	} else {
		// Fallback to NATS Core
		publisher, err := pkg.NewNATSPublisher(natsURL)
		if err != nil {
			return err
		}
		natsPublisher = publisher

		orderSubscriber, err = pkg.NewNATSSubscriber(natsURL, a.logger)
		if err != nil {
			return err
		}
	}

	// Ticket events go to NATS and to connected SSE terminals
	broadcaster := kds.NewBroadcaster(a.logger)
	eventPublisher := pkg.NewFanoutPublisher(natsPublisher, broadcaster)

	registry := kds.NewRegistry(a.store, a.stationRepo, a.logger)
	router := kds.NewRouter(a.store, registry, a.ticketRepo, eventPublisher, a.logger)
	lifecycle := kds.NewLifecycle(a.store, a.ticketRepo, a.historyRepo, eventPublisher, a.logger)
	monitor := kds.NewMonitor(a.store)
	expo := kds.NewExpo(a.store)
	performance := kds.NewPerformance(a.store)

	eventSubscriber := events.NewOrderSubscriber(orderSubscriber, registry, router, lifecycle, a.logger)

	handler := kds.NewHandler(kds.HandlerDeps{
		Store:       a.store,
		Registry:    registry,
		Router:      router,
		Lifecycle:   lifecycle,
		Monitor:     monitor,
		Expo:        expo,
		Performance: performance,
		Stream:      broadcaster,
	}, a.config, a.logger)

	// Setup middleware
	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      a.logger,
		DisableCORS: true,
	})
	stack = append(stack, middleware.InternalOnly())

	// Setup lifecycle hooks. Repos start after the connection; warming runs
	// after the repos so indexes exist before the first read.
	lifecycles := []interface{}{a.conn, a.ticketRepo, a.stationRepo, a.historyRepo}

	warmLifecycle := aqm.LifecycleHooks{
		OnStart: func(ctx context.Context) error {
			if err := kds.ApplyDemoSeeds(ctx, a.config, a.conn.Database(), a.logger); err != nil {
				a.logger.Errorf("Demo seeding failed (non-fatal): %v", err)
			}
			if err := a.warmStore(ctx); err != nil {
				a.logger.Info("failed to warm venue store", "error", err)
			}
			return nil
		},
	}
	lifecycles = append(lifecycles, warmLifecycle, eventSubscriber)

	if ticketStream != nil {
		streamLifecycle := aqm.LifecycleHooks{
			OnStop: func(context.Context) error { return ticketStream.Close() },
		}
		lifecycles = append(lifecycles, streamLifecycle)
	}
	if orderSubscriber != nil {
		subscriberLifecycle := aqm.LifecycleHooks{
			OnStop: func(context.Context) error { return orderSubscriber.Close() },
		}
		lifecycles = append(lifecycles, subscriberLifecycle)
	}

	// Build micro service
	options := []aqm.Option{
		aqm.WithConfig(a.config),
		aqm.WithLogger(a.logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithLifecycle(lifecycles...),
		aqm.WithHealthChecks(AppName),
	}

	a.micro = aqm.NewMicro(options...)
	return nil
}

// warmStore rebuilds the in-memory state from the durable record: stations
// first, then their tickets, then recent bump history. Loads are rederived
// from ticket status rather than trusted from persisted counters.
func (a *App) warmStore(ctx context.Context) error {
	stations, err := a.stationRepo.ListAll(ctx)
	if err != nil {
		return err
	}

	venues := make(map[kds.VenueID]bool)
	for i := range stations {
		s := &stations[i]
		a.store.LoadStation(s.VenueID, s)
		venues[s.VenueID] = true
	}

	tickets, err := a.ticketRepo.List(ctx, kds.TicketFilter{})
	if err != nil {
		return err
	}
	for i := range tickets {
		t := &tickets[i]
		if err := a.store.LoadTicket(t.VenueID, t); err != nil {
			a.logger.Errorf("cannot load ticket %s: %v", t.TicketCode, err)
		}
	}

	since := time.Now().Add(-7 * 24 * time.Hour)
	for venueID := range venues {
		records, err := a.historyRepo.List(ctx, kds.HistoryFilter{VenueID: venueID, Since: since})
		if err != nil {
			a.logger.Errorf("cannot load bump history for venue %s: %v", venueID, err)
			continue
		}
		for _, rec := range records {
			a.store.AppendHistory(venueID, rec)
		}
		a.store.RecomputeLoads(venueID)
	}

	a.logger.Info("venue store warmed", "stations", len(stations), "tickets", len(tickets))
	return nil
}

// Run starts the application
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	if err := a.micro.Run(ctx); err != nil {
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}
