package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/oms-platform/inventory-service/internal/domain"
	mongoRepo "github.com/oms-platform/inventory-service/internal/infrastructure/mongodb"
	"github.com/oms-platform/inventory-service/pkg/kafka"
	"github.com/oms-platform/inventory-service/pkg/logging"
	"github.com/oms-platform/inventory-service/pkg/metrics"
	"github.com/oms-platform/inventory-service/pkg/mongodb"
	outboxMongo "github.com/oms-platform/inventory-service/pkg/outbox/mongodb"
)

// Bootstrap tool for the inventory service: creates collection indexes,
// provisions Kafka topics and optionally seeds inventory records.

var (
	mongoURI    = flag.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	dbName      = flag.String("db", "oms_inventory", "Database name")
	kafkaBroker = flag.String("kafka-broker", "", "Kafka broker for topic creation (empty skips topics)")
	seedFile    = flag.String("seed", "", "JSON file with inventory records to seed")
	dryRun      = flag.Bool("dry-run", false, "Print what would be done without writing")
)

type seedRecord struct {
	ProductID         string `json:"productId"`
	Quantity          int    `json:"quantity"`
	LowStockThreshold *int   `json:"lowStockThreshold,omitempty"`
}

func main() {
	flag.Parse()

	mode := "apply"
	if *dryRun {
		mode = "dry-run"
	}
	log.Printf("Bootstrapping %s on %s (%s)", *dbName, *mongoURI, mode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger := logging.New(logging.DefaultConfig("inventory-migrate"))
	m := metrics.New(metrics.DefaultConfig("inventory-migrate"))

	client, err := mongodb.NewClient(ctx, &mongodb.Config{
		URI:            *mongoURI,
		Database:       *dbName,
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    10,
		MinPoolSize:    1,
	})
	if err != nil {
		log.Fatalf("MongoDB unavailable: %v", err)
	}
	db := mongodb.NewInstrumentedClient(client, m, logger)
	defer db.Close(context.Background())

	outboxRepo := outboxMongo.NewOutboxRepository(db)
	inventoryRepo := mongoRepo.NewInventoryRepository(db, outboxRepo)
	reservationRepo := mongoRepo.NewReservationRepository(db)
	historyRepo := mongoRepo.NewHistoryRepository(db)

	indexed := ensureAllIndexes(ctx, []indexStep{
		{"inventory_records", inventoryRepo},
		{"stock_reservations", reservationRepo},
		{"inventory_history", historyRepo},
		{"outbox_events", outboxRepo},
	})

	topicsEnsured := ensureTopics()

	seeded, skipped := seedInventory(ctx, inventoryRepo)

	fmt.Println("\n=== Bootstrap Summary ===")
	fmt.Printf("Collections indexed: %d\n", indexed)
	fmt.Printf("Kafka topics ensured: %d\n", topicsEnsured)
	fmt.Printf("Records seeded: %d (skipped %d already tracked)\n", seeded, skipped)

	if *dryRun {
		fmt.Println("\nDry run, nothing was written. Re-run without -dry-run to apply.")
	} else {
		fmt.Println("\n✅ Bootstrap complete")
	}
}

type indexStep struct {
	collection string
	ensurer interface {
		EnsureIndexes(ctx context.Context) error
	}
}

func ensureAllIndexes(ctx context.Context, steps []indexStep) int {
	indexed := 0
	for _, step := range steps {
		if *dryRun {
			log.Printf("[dry-run] Would ensure indexes on %s", step.collection)
			continue
		}
		if err := step.ensurer.EnsureIndexes(ctx); err != nil {
			log.Fatalf("Failed to ensure indexes on %s: %v", step.collection, err)
		}
		log.Printf("Indexes ensured on %s", step.collection)
		indexed++
	}
	return indexed
}

func ensureTopics() int {
	if *kafkaBroker == "" {
		log.Println("No Kafka broker configured, skipping topic creation")
		return 0
	}

	topics := kafka.DefaultTopicConfigs()
	if *dryRun {
		for _, topic := range topics {
			log.Printf("[dry-run] Would ensure topic %s (partitions=%d, replication=%d)",
				topic.Name, topic.Partitions, topic.ReplicationFactor)
		}
		return 0
	}

	if err := kafka.EnsureTopics(*kafkaBroker, topics); err != nil {
		log.Fatalf("Failed to create Kafka topics: %v", err)
	}
	for _, topic := range topics {
		log.Printf("Topic ensured: %s", topic.Name)
	}
	return len(topics)
}

func seedInventory(ctx context.Context, repo *mongoRepo.InventoryRepository) (seeded, skipped int) {
	if *seedFile == "" {
		return 0, 0
	}

	records, err := loadSeedRecords(*seedFile)
	if err != nil {
		log.Fatalf("Failed to load seed file: %v", err)
	}
	log.Printf("Loaded %d seed records from %s", len(records), *seedFile)

	for _, seed := range records {
		threshold := domain.DefaultLowStockThreshold
		if seed.LowStockThreshold != nil {
			threshold = *seed.LowStockThreshold
		}

		record, err := domain.NewInventoryRecord(seed.ProductID, seed.Quantity, threshold, "migration")
		if err != nil {
			log.Fatalf("Invalid seed record %q: %v", seed.ProductID, err)
		}

		if *dryRun {
			log.Printf("[dry-run] Would seed %s with quantity %d (threshold %d)",
				seed.ProductID, seed.Quantity, threshold)
			seeded++
			continue
		}

		var history *domain.InventoryHistoryRecord
		if seed.Quantity > 0 {
			history = domain.NewHistoryRecord(seed.ProductID, domain.ActionInitialize,
				0, seed.Quantity, 0, 0, "Initial stock", domain.SourceManual, "", "migration")
		}

		// Seeding is provisioning, not a business mutation, so no outbox events
		if err := repo.Create(ctx, record, history, nil); err != nil {
			if errors.Is(err, domain.ErrRecordAlreadyExists) {
				log.Printf("Skipping %s: already tracked", seed.ProductID)
				skipped++
				continue
			}
			log.Fatalf("Failed to seed %s: %v", seed.ProductID, err)
		}

		log.Printf("Seeded %s with quantity %d", seed.ProductID, seed.Quantity)
		seeded++
	}

	return seeded, skipped
}

func loadSeedRecords(path string) ([]seedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []seedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	return records, nil
}
