package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	catalogrepository "fulfillment/internal/catalog/repository"
	"fulfillment/internal/config"
	"fulfillment/internal/delivery"
	deliveryrepository "fulfillment/internal/delivery/repository"
	deliveryservice "fulfillment/internal/delivery/service"
	"fulfillment/internal/events"
	"fulfillment/internal/fulfillment"
	"fulfillment/internal/infrastructure/eventbus"
	"fulfillment/internal/infrastructure/logger"
	"fulfillment/internal/infrastructure/memory"
	"fulfillment/internal/infrastructure/mysql"
	"fulfillment/internal/intake"
	"fulfillment/internal/order"
	orderrepository "fulfillment/internal/order/repository"
	orderservice "fulfillment/internal/order/service"
	"fulfillment/internal/procurement"
	procurementrepository "fulfillment/internal/procurement/repository"
	procurementservice "fulfillment/internal/procurement/service"
	"fulfillment/internal/purchasing"
	purchasingrepository "fulfillment/internal/purchasing/repository"
	purchasingservice "fulfillment/internal/purchasing/service"
	"fulfillment/internal/server"
	"fulfillment/internal/sourcing"
	sourcingrepository "fulfillment/internal/sourcing/repository"
	sourcingservice "fulfillment/internal/sourcing/service"
)

type requestStore interface {
	procurementservice.RequestRepository
	sourcingservice.LineRepository
}

type purchaseOrderStore interface {
	purchasingservice.PurchaseOrderRepository
	sourcingservice.PurchaseOrderWriter
}

// repositories is one storage backend, MySQL or in-memory.
type repositories struct {
	tx                  orderservice.TxRunner
	products            procurementservice.ProductCatalog
	orders              orderservice.OrderRepository
	requests            requestStore
	vendors             sourcingservice.VendorRepository
	vendorAssignments   sourcingservice.AssignmentRepository
	purchaseOrders      purchaseOrderStore
	partners            deliveryservice.PartnerRepository
	deliveryAssignments deliveryservice.AssignmentRepository
}

type eventForwarder interface {
	events.Forwarder
	Close() error
}

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}

	err = run(cfg, zapLogger)
	_ = zapLogger.Sync()
	if err != nil {
		log.Fatalf("server stopped with error: %v", err)
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, closeStore, err := openStorage(ctx, cfg, zapLogger)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer closeStore()

	forwarder, err := openEventBus(cfg.EventBus, zapLogger)
	if err != nil {
		return fmt.Errorf("connecting to event bus: %w", err)
	}
	defer forwarder.Close()

	dispatcher := events.NewDispatcher(forwarder, zapLogger.Named("events"))
	pageSize := cfg.Workflow.ListPageSize

	orderModule := order.NewModule(repos.tx, repos.orders, zapLogger)
	sourcingModule := sourcing.NewModule(repos.tx, repos.vendors, repos.requests, repos.vendorAssignments, repos.purchaseOrders, zapLogger)
	procurementModule := procurement.NewModule(repos.tx, repos.requests, repos.products, sourcingModule.Engine, dispatcher, zapLogger, pageSize)
	purchasingModule := purchasing.NewModule(repos.tx, repos.purchaseOrders, dispatcher, zapLogger)
	deliveryModule := delivery.NewModule(delivery.Deps{
		Tx:             repos.tx,
		Partners:       repos.partners,
		Assignments:    repos.deliveryAssignments,
		PurchaseOrders: repos.purchaseOrders,
		Requests:       repos.requests,
		Orders:         repos.orders,
		Publisher:      dispatcher,
		PageSize:       pageSize,
	}, zapLogger)
	intakeController := intake.NewModule(orderModule.Store, procurementModule.Manager, zapLogger)

	bridge := fulfillment.NewBridge(orderModule.Store, procurementModule.Manager, deliveryModule.Engine, dispatcher, zapLogger.Named("bridge"))
	bridge.Register(dispatcher)

	router := server.NewRouter(server.Controllers{
		Orders:         orderModule.Controller,
		Intake:         intakeController,
		Requests:       procurementModule.Controller,
		Assignments:    sourcingModule.Controller,
		PurchaseOrders: purchasingModule.Controller,
		Delivery:       deliveryModule.Controller,
	}, zapLogger)
	srv := server.New(cfg.Server.Port, router, zapLogger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("shutdown requested", zap.NamedError("cause", context.Cause(gctx)))
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	zapLogger.Info("server stopped gracefully")
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories, func(), error) {
	if cfg.Storage.Driver == config.StorageMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return repositories{
			tx:                  store,
			products:            store.Products(),
			orders:              store.Orders(),
			requests:            store.Requests(),
			vendors:             store.Vendors(),
			vendorAssignments:   store.VendorAssignments(),
			purchaseOrders:      store.PurchaseOrders(),
			partners:            store.Partners(),
			deliveryAssignments: store.DeliveryAssignments(),
		}, func() {}, nil
	}

	db, err := mysql.NewConnection(ctx, cfg.Database)
	if err != nil {
		return repositories{}, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing database", zap.Error(err))
		}
	}
	if err := mysql.Migrate(ctx, db); err != nil {
		closeDB()
		return repositories{}, nil, err
	}
	logger.Info("database connected")

	return mysqlRepositories(db, cfg, logger), closeDB, nil
}

func mysqlRepositories(db *sql.DB, cfg *config.Config, logger *zap.Logger) repositories {
	return repositories{
		tx:                  mysql.NewTxManager(db, logger.Named("tx"), cfg.Workflow.TxTimeout, cfg.Workflow.MaxRetryAttempts),
		products:            catalogrepository.NewMySQLRepository(db),
		orders:              orderrepository.NewMySQLOrderRepository(db),
		requests:            procurementrepository.NewMySQLRequestRepository(db),
		vendors:             sourcingrepository.NewMySQLVendorRepository(db),
		vendorAssignments:   sourcingrepository.NewMySQLAssignmentRepository(db),
		purchaseOrders:      purchasingrepository.NewMySQLPurchaseOrderRepository(db),
		partners:            deliveryrepository.NewMySQLPartnerRepository(db),
		deliveryAssignments: deliveryrepository.NewMySQLAssignmentRepository(db),
	}
}

func openEventBus(cfg config.EventBusConfig, logger *zap.Logger) (eventForwarder, error) {
	if !cfg.Enabled {
		return eventbus.NewNopPublisher(logger.Named("eventbus")), nil
	}
	return eventbus.NewRabbitMQPublisher(cfg, logger.Named("eventbus"))
}
