// converge runs the merge-coordination service: an HTTP API (health,
// GitHub webhook ingress, read-only intent/queue/dashboard views) and
// a queue worker, both driven off the same event log and store.
// Mirrors the teacher's cmd/tarsy/main.go bring-up shape: load env,
// load config, connect the database, wire services, start serving.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ghmbegerez/converge/pkg/analytics"
	"github.com/ghmbegerez/converge/pkg/api"
	"github.com/ghmbegerez/converge/pkg/checkrunner"
	"github.com/ghmbegerez/converge/pkg/config"
	"github.com/ghmbegerez/converge/pkg/database"
	"github.com/ghmbegerez/converge/pkg/engine"
	"github.com/ghmbegerez/converge/pkg/eventlog"
	"github.com/ghmbegerez/converge/pkg/events"
	"github.com/ghmbegerez/converge/pkg/intake"
	"github.com/ghmbegerez/converge/pkg/policy"
	"github.com/ghmbegerez/converge/pkg/preintent"
	"github.com/ghmbegerez/converge/pkg/projections"
	"github.com/ghmbegerez/converge/pkg/review"
	"github.com/ghmbegerez/converge/pkg/scm"
	"github.com/ghmbegerez/converge/pkg/semantic"
	"github.com/ghmbegerez/converge/pkg/store"
	"github.com/ghmbegerez/converge/pkg/storefactory"
	"github.com/ghmbegerez/converge/pkg/webhook"
	"github.com/ghmbegerez/converge/pkg/worker"
)

// shutdownGrace bounds how long in-flight HTTP requests get to finish
// once a shutdown signal arrives.
const shutdownGrace = 10 * time.Second

// eventsWriteTimeout bounds a single WebSocket send to a /events/ws
// client before the connection manager logs and moves on, so one slow
// client can't stall delivery to the others.
const eventsWriteTimeout = 5 * time.Second

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
		log.Printf("continuing with existing environment variables")
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}

	backend := store.Backend(getEnv("CONVERGE_STORE_BACKEND", string(store.BackendPostgres)))

	var dbClient *database.Client
	var rawDB *sql.DB
	var dbCfg database.Config
	if backend == store.BackendPostgres {
		var err error
		dbCfg, err = database.LoadConfigFromEnv()
		if err != nil {
			log.Fatalf("failed to load database config: %v", err)
		}
		dbClient, err = database.NewClient(ctx, dbCfg)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				log.Printf("error closing database client: %v", err)
			}
		}()
		rawDB = dbClient.DB()
		log.Println("connected to PostgreSQL database")
	}

	st, err := storefactory.New(backend, rawDB)
	if err != nil {
		log.Fatalf("failed to construct store: %v", err)
	}

	evlog := eventlog.New(st)
	vcs := scm.NewGitSCM()

	connMgr := events.NewConnectionManager(events.NewEventServiceAdapter(st), eventsWriteTimeout)
	if backend == store.BackendPostgres {
		listener := events.NewNotifyListener(dbCfg.DSN(), connMgr)
		if err := listener.Start(ctx); err != nil {
			log.Printf("warning: failed to start NOTIFY listener, live events disabled: %v", err)
		} else {
			connMgr.SetListener(listener)
			evlog.Publisher = events.NewEventPublisher(rawDB)
		}
	} else {
		evlog.Publisher = events.NewLocalPublisher(connMgr)
	}

	var checks checkrunner.Runner
	if addr := os.Getenv("CONVERGE_CHECKRUNNER_GRPC_ADDR"); addr != "" {
		runner, err := checkrunner.NewGRPCRunner(addr)
		if err != nil {
			log.Fatalf("failed to dial check runner at %s: %v", addr, err)
		}
		checks = runner
	} else {
		checks = checkrunner.NewShellRunner()
	}

	policyCfg, err := policy.LoadConfig(os.Getenv("CONVERGE_POLICY_PATH"))
	if err != nil {
		log.Fatalf("failed to load policy config: %v", err)
	}

	proj := projections.New(evlog, st, st)
	analyticsSvc := analytics.New(vcs, evlog, st, proj)
	reviews := review.New(evlog, st, st)
	sem := semantic.New(evlog, st, st)
	preIntent := preintent.New(evlog, sem)

	eng := engine.New(evlog, st, vcs, checks, analyticsSvc, policyCfg)
	eng.Reviews = reviews
	if harnessPath := os.Getenv("CONVERGE_COHERENCE_HARNESS_PATH"); harnessPath != "" {
		eng.CoherenceHarnessPath = harnessPath
	}

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatalf("failed to resolve working directory: %v", err)
	}
	q := worker.New(eng, cfg.Queue, cwd)
	q.Reviews = reviews
	q.Semantic = sem

	signals := projections.NewHealthSignalsAdapter(proj)
	hooks := webhook.New(evlog, st, st, signals, intake.DefaultConfig(), preIntent)

	server := api.NewServer(cfg, dbClient, hooks, st, st, proj)
	server.Events = connMgr

	go func() {
		log.Printf("worker starting (poll interval %s)", cfg.Queue.PollInterval)
		if err := q.Start(ctx); err != nil {
			log.Printf("worker stopped: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("error during HTTP shutdown: %v", err)
		}
	}()

	addr := ":" + cfg.HTTP.Port
	log.Printf("HTTP server listening on %s", addr)
	if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Printf("HTTP server stopped: %v", err)
	}
}
