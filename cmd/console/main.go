// console runs the admin console's session subsystem: it reconciles auth
// provider events into session snapshots and exposes gates and navigation to
// the hosting layer.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"edu-admin-console/internal/auth"
	"edu-admin-console/internal/config"
	"edu-admin-console/internal/db"
	"edu-admin-console/internal/gate"
	"edu-admin-console/internal/nav"
	"edu-admin-console/internal/policy/engine"
	"edu-admin-console/internal/profile/repository"
	"edu-admin-console/internal/session"
	"edu-admin-console/internal/telemetry"
	otelsetup "edu-admin-console/internal/telemetry/otel"
	"edu-admin-console/internal/telemetry/producer"
)

const serviceName = "educonsole"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	var emitter telemetry.EventEmitter
	var kafkaProducer *producer.KafkaProducer
	if brokers := cfg.TelemetryKafkaBrokersList(); len(brokers) > 0 {
		kafkaProducer = producer.NewKafkaProducer(brokers, cfg.TelemetryKafkaTopic)
	}
	if kafkaProducer != nil {
		emitter = kafkaProducer
		log.Printf("telemetry: session events to Kafka topic %s", cfg.TelemetryKafkaTopic)
	} else {
		emitter = otelsetup.NewEventEmitter(providers.LoggerProvider)
	}

	var store repository.Store
	switch cfg.ProfileBackend {
	case "mongo":
		client, err := db.OpenMongo(ctx, cfg.MongoURL)
		if err != nil {
			log.Fatalf("mongo: %v", err)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		store = repository.NewMongoStore(client.Database(cfg.MongoDatabase))
	default:
		sqlDB, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer sqlDB.Close()
		store = repository.NewPostgresStore(sqlDB)
	}
	log.Printf("profiles: %s backend ready", cfg.ProfileBackend)

	publicKey, err := auth.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("auth: public key: %v", err)
	}
	verifier := auth.NewVerifier(publicKey, cfg.JWTIssuer, cfg.JWTAudience)
	hub := auth.NewHub(verifier)

	evaluator, err := engine.NewOPAEvaluator(cfg.AccessPolicy)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}
	if err := evaluator.HealthCheck(ctx); err != nil {
		log.Fatalf("policy: %v", err)
	}

	g := gate.New(cfg.SignInPath)
	catalog := nav.PolicyCatalog(evaluator)

	manager := session.NewManager(hub, store, emitter, cfg.LookupTimeout())
	manager.Watch(func(snap session.Snapshot) {
		visible := nav.Visible(catalog, snap)
		log.Printf("session: %s admin=%v teacher=%v loading=%v dashboard=%s nav=%d",
			snap.State, snap.IsAdmin, snap.IsTeacher, snap.Loading,
			g.Evaluate(snap, gate.Staff), len(visible))
	})
	if err := manager.Start(ctx); err != nil {
		log.Fatalf("session: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	manager.Close()
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Printf("kafka: close: %v", err)
		}
	}
	sdCtx, cancel := context.WithTimeout(context.Background(), telemetry.ShutdownDrainDuration)
	defer cancel()
	if err := providers.Shutdown(sdCtx); err != nil {
		log.Printf("otel: shutdown: %v", err)
	}
	log.Println("stopped")
}
