package domain

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InventoryHistoryRecord is one entry in the append-only audit trail. Entries
// are immutable once written, corrections land as new entries.
type InventoryHistoryRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	HistoryID string             `bson:"historyId"`
	ProductID string             `bson:"productId"`

	Action HistoryAction `bson:"action"`

	QuantityBefore  int `bson:"quantityBefore"`
	QuantityAfter   int `bson:"quantityAfter"`
	QuantityChanged int `bson:"quantityChanged"`
	ReservedBefore  int `bson:"reservedBefore"`
	ReservedAfter   int `bson:"reservedAfter"`

	Reason string      `bson:"reason"`
	Source StockSource `bson:"source"`

	OrderID   string `bson:"orderId,omitempty"`
	ChangedBy string `bson:"changedBy,omitempty"`

	Timestamp time.Time `bson:"timestamp"`
}

// NewHistoryRecord captures a completed state transition for the audit trail
func NewHistoryRecord(
	productID string,
	action HistoryAction,
	quantityBefore, quantityAfter int,
	reservedBefore, reservedAfter int,
	reason string,
	source StockSource,
	orderID string,
	changedBy string,
) *InventoryHistoryRecord {
	return &InventoryHistoryRecord{
		HistoryID:       uuid.NewString(),
		ProductID:       productID,
		Action:          action,
		QuantityBefore:  quantityBefore,
		QuantityAfter:   quantityAfter,
		QuantityChanged: quantityAfter - quantityBefore,
		ReservedBefore:  reservedBefore,
		ReservedAfter:   reservedAfter,
		Reason:          reason,
		Source:          source,
		OrderID:         orderID,
		ChangedBy:       changedBy,
		Timestamp:       time.Now(),
	}
}
