package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oms-platform/inventory-service/internal/domain"
	"github.com/oms-platform/inventory-service/internal/infrastructure/catalog"
	"github.com/oms-platform/inventory-service/pkg/logging"
	"github.com/oms-platform/inventory-service/pkg/resilience"
)

// Consistency audit for the inventory ledger. Recomputes every record's
// derived fields, cross-checks reserved stock against active reservations
// and reports drift. Exits non-zero when an invariant does not hold.

var (
	mongoURI   = flag.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	dbName     = flag.String("db", "oms_inventory", "Database name")
	display    = flag.Int("display", 25, "Maximum number of drifted records to display")
	catalogURL = flag.String("catalog-url", "", "Catalog base URL for the orphan check (empty skips)")
)

type reservationRollup struct {
	ProductID string `bson:"_id"`
	Total     int    `bson:"total"`
	Count     int    `bson:"count"`
}

type driftReport struct {
	productID string
	problems  []string
}

type auditResult struct {
	records            int
	drifted            []driftReport
	negativeQuantity   []string
	activeReservations int64
	expiredActive      int64
	catalogChecked     bool
	catalogErr         error
	catalogOrphans     []string
}

func main() {
	flag.Parse()

	connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, disconnect, err := connect(connectCtx, *mongoURI, *dbName)
	if err != nil {
		log.Fatalf("MongoDB unavailable: %v", err)
	}
	defer disconnect()
	log.Printf("Auditing %s on %s", *dbName, *mongoURI)

	var catalogClient domain.CatalogClient
	if *catalogURL != "" {
		logger := logging.New(logging.DefaultConfig("inventory-monitor"))
		breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("catalog"), logger.Logger, nil)
		catalogClient = catalog.NewClient(*catalogURL, 10*time.Second, breaker, logger)
		log.Printf("Catalog orphan check enabled against %s", *catalogURL)
	}

	// The scan itself is unbounded, a large ledger can outlive the dial timeout.
	audit, err := runAudit(context.Background(), db, catalogClient)
	if err != nil {
		log.Fatalf("Audit failed: %v", err)
	}

	printReport(audit)

	if len(audit.drifted) > 0 {
		os.Exit(1)
	}
}

func connect(ctx context.Context, uri, name string) (*mongo.Database, func(), error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	disconnect := func() { _ = client.Disconnect(context.Background()) }
	if err := client.Ping(ctx, nil); err != nil {
		disconnect()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return client.Database(name), disconnect, nil
}

func runAudit(ctx context.Context, db *mongo.Database, catalogClient domain.CatalogClient) (*auditResult, error) {
	records := db.Collection("inventory_records")
	reservations := db.Collection("stock_reservations")

	result := &auditResult{catalogChecked: catalogClient != nil}

	// Sum active reservations per product
	pipeline := []bson.M{
		{"$match": bson.M{"status": string(domain.ReservationStatusActive)}},
		{"$group": bson.M{
			"_id":   "$productId",
			"total": bson.M{"$sum": "$quantity"},
			"count": bson.M{"$sum": 1},
		}},
	}
	cursor, err := reservations.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate reservations: %w", err)
	}

	var rollups []reservationRollup
	if err := cursor.All(ctx, &rollups); err != nil {
		return nil, fmt.Errorf("failed to decode reservation rollup: %w", err)
	}

	activeByProduct := make(map[string]reservationRollup, len(rollups))
	for _, rollup := range rollups {
		activeByProduct[rollup.ProductID] = rollup
		result.activeReservations += int64(rollup.Count)
	}

	// Active holds past their expiration are waiting on the sweeper
	expired, err := reservations.CountDocuments(ctx, bson.M{
		"status":    string(domain.ReservationStatusActive),
		"expiresAt": bson.M{"$lt": time.Now().UTC()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count expired holds: %w", err)
	}
	result.expiredActive = expired

	// Scan every record and recompute the derived fields
	recCursor, err := records.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to scan inventory records: %w", err)
	}
	defer recCursor.Close(ctx)

	for recCursor.Next(ctx) {
		var record domain.InventoryRecord
		if err := recCursor.Decode(&record); err != nil {
			return nil, fmt.Errorf("failed to decode inventory record: %w", err)
		}
		result.records++

		if problems := checkRecord(&record, activeByProduct); len(problems) > 0 {
			result.drifted = append(result.drifted, driftReport{
				productID: record.ProductID,
				problems:  problems,
			})
		}
		// Legal under the negative override, but worth eyeballs until reconciled
		if record.Quantity < 0 && record.Reserved == 0 {
			result.negativeQuantity = append(result.negativeQuantity, record.ProductID)
		}
		delete(activeByProduct, record.ProductID)

		if catalogClient != nil && result.catalogErr == nil {
			exists, err := catalogClient.ProductExists(ctx, record.ProductID)
			if err != nil {
				result.catalogErr = err
			} else if !exists {
				result.catalogOrphans = append(result.catalogOrphans, record.ProductID)
			}
		}
	}
	if err := recCursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	// Whatever is left in the map reserves stock for untracked products
	for productID, rollup := range activeByProduct {
		result.drifted = append(result.drifted, driftReport{
			productID: productID,
			problems: []string{
				fmt.Sprintf("%d active reservations holding %d units but no inventory record", rollup.Count, rollup.Total),
			},
		})
	}

	return result, nil
}

func checkRecord(record *domain.InventoryRecord, active map[string]reservationRollup) []string {
	var problems []string

	if record.Reserved < 0 {
		problems = append(problems, fmt.Sprintf("reserved is negative (%d)", record.Reserved))
	}
	// Negative quantity is legal only while nothing is reserved
	if record.Reserved > 0 && record.Reserved > record.Quantity {
		problems = append(problems, fmt.Sprintf("reserved %d exceeds quantity %d", record.Reserved, record.Quantity))
	}

	expectedAvailable := record.Quantity - record.Reserved
	if expectedAvailable < 0 {
		expectedAvailable = 0
	}
	if record.Available != expectedAvailable {
		problems = append(problems, fmt.Sprintf("available is %d, recomputed %d", record.Available, expectedAvailable))
	}

	expectedLow := record.Quantity > 0 && record.Quantity <= record.LowStockThreshold
	if record.IsLowStock != expectedLow {
		problems = append(problems, fmt.Sprintf("isLowStock is %v, recomputed %v", record.IsLowStock, expectedLow))
	}

	rollup := active[record.ProductID]
	if record.Reserved != rollup.Total {
		problems = append(problems, fmt.Sprintf("reserved %d does not match %d units across %d active reservations",
			record.Reserved, rollup.Total, rollup.Count))
	}

	return problems
}

func printReport(audit *auditResult) {
	fmt.Println("\n=== Inventory Consistency Report ===")
	fmt.Printf("Records scanned: %d\n", audit.records)
	fmt.Printf("Active reservations: %d\n", audit.activeReservations)

	if audit.expiredActive > 0 {
		fmt.Printf("⚠️  Active holds past expiration (awaiting sweep): %d\n", audit.expiredActive)
	} else {
		fmt.Println("Active holds past expiration: 0")
	}

	if len(audit.negativeQuantity) > 0 {
		fmt.Printf("⚠️  Products carrying negative quantity (override, pending reconciliation): %d\n", len(audit.negativeQuantity))
		for i, productID := range audit.negativeQuantity {
			if i >= *display {
				fmt.Printf("   ... and %d more\n", len(audit.negativeQuantity)-i)
				break
			}
			fmt.Printf("   - %s\n", productID)
		}
	}

	if audit.catalogChecked {
		switch {
		case audit.catalogErr != nil:
			fmt.Printf("⚠️  Catalog check aborted: %v\n", audit.catalogErr)
		case len(audit.catalogOrphans) > 0:
			fmt.Printf("⚠️  Products unknown to the catalog: %d\n", len(audit.catalogOrphans))
			for i, productID := range audit.catalogOrphans {
				if i >= *display {
					fmt.Printf("   ... and %d more\n", len(audit.catalogOrphans)-i)
					break
				}
				fmt.Printf("   - %s\n", productID)
			}
		default:
			fmt.Println("Catalog check: all products known")
		}
	}

	if len(audit.drifted) == 0 {
		fmt.Println("\n✅ No drift detected, the ledger is consistent")
		return
	}

	fmt.Printf("\n🚨 Drift detected on %d products:\n\n", len(audit.drifted))
	for i, drift := range audit.drifted {
		if i >= *display {
			fmt.Printf("... and %d more\n", len(audit.drifted)-i)
			break
		}
		fmt.Println(drift.productID)
		for _, problem := range drift.problems {
			fmt.Printf("   - %s\n", problem)
		}
	}
}
