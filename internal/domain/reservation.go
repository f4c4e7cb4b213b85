package domain

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultExpirationMinutes is applied when a reservation is created without an explicit expiration
const DefaultExpirationMinutes = 30

// ExpirationReleaseReason is recorded when the sweeper releases an expired reservation
const ExpirationReleaseReason = "Automatic expiration"

// ReservationStatus represents the lifecycle state of a reservation
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusExpired   ReservationStatus = "expired"
)

// ParseReservationStatus converts a raw string into a ReservationStatus, rejecting unknown values
func ParseReservationStatus(s string) (ReservationStatus, error) {
	switch ReservationStatus(s) {
	case ReservationStatusActive, ReservationStatusCompleted, ReservationStatusExpired:
		return ReservationStatus(s), nil
	default:
		return "", ErrInvalidStatus
	}
}

// IsTerminal returns true once a reservation can no longer change state
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationStatusCompleted || s == ReservationStatusExpired
}

func (s ReservationStatus) String() string {
	return string(s)
}

// StockReservation is a time-boxed promise of stock to an order. It lives as a
// separate aggregate so reservations never grow inside the inventory record.
type StockReservation struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	ReservationID string             `bson:"reservationId"`
	ProductID     string             `bson:"productId"`

	OrderID    string `bson:"orderId"`
	CustomerID string `bson:"customerId,omitempty"`
	Quantity   int    `bson:"quantity"`

	Status ReservationStatus `bson:"status"`

	CreatedAt time.Time `bson:"createdAt"`
	ExpiresAt time.Time `bson:"expiresAt"`

	ReleasedAt    *time.Time `bson:"releasedAt,omitempty"`
	ReleaseReason string     `bson:"releaseReason,omitempty"`

	DomainEvents []DomainEvent `bson:"-"`
}

// NewStockReservation creates an active reservation expiring after the given minutes
func NewStockReservation(productID, orderID, customerID string, quantity, expirationMinutes int) (*StockReservation, error) {
	if productID == "" {
		return nil, ErrInvalidProductID
	}
	if orderID == "" {
		return nil, ErrMissingOrderID
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if expirationMinutes <= 0 {
		return nil, ErrInvalidExpiration
	}

	now := time.Now()
	reservation := &StockReservation{
		ReservationID: uuid.NewString(),
		ProductID:     productID,
		OrderID:       orderID,
		CustomerID:    customerID,
		Quantity:      quantity,
		Status:        ReservationStatusActive,
		CreatedAt:     now,
		ExpiresAt:     now.Add(time.Duration(expirationMinutes) * time.Minute),
		DomainEvents:  make([]DomainEvent, 0),
	}

	reservation.AddDomainEvent(&StockReservedEvent{
		ReservationID: reservation.ReservationID,
		ProductID:     productID,
		OrderID:       orderID,
		CustomerID:    customerID,
		Quantity:      quantity,
		ExpiresAt:     reservation.ExpiresAt,
		ReservedAt:    now,
	})

	return reservation, nil
}

// MarkReleased releases the promised stock back to the pool. The reservation
// ends in the completed state, expired is reserved for the sweeper.
func (r *StockReservation) MarkReleased(reason string) error {
	if r.Status != ReservationStatusActive {
		return ErrReservationNotActive
	}
	if reason == "" {
		reason = "Manual release"
	}

	now := time.Now()
	r.Status = ReservationStatusCompleted
	r.ReleasedAt = &now
	r.ReleaseReason = reason

	r.AddDomainEvent(&ReservationReleasedEvent{
		ReservationID: r.ReservationID,
		ProductID:     r.ProductID,
		OrderID:       r.OrderID,
		Quantity:      r.Quantity,
		Reason:        reason,
		ReleasedAt:    now,
	})

	return nil
}

// MarkCompleted records order fulfillment, the reserved stock leaves inventory
func (r *StockReservation) MarkCompleted() error {
	if r.Status != ReservationStatusActive {
		return ErrReservationNotActive
	}

	now := time.Now()
	r.Status = ReservationStatusCompleted
	r.ReleasedAt = &now
	r.ReleaseReason = "Reservation completed"

	r.AddDomainEvent(&ReservationCompletedEvent{
		ReservationID: r.ReservationID,
		ProductID:     r.ProductID,
		OrderID:       r.OrderID,
		Quantity:      r.Quantity,
		Reason:        r.ReleaseReason,
		CompletedAt:   now,
	})

	return nil
}

// MarkExpired transitions an overdue reservation to the expired state. The
// sweeper injects its sweep time so a whole batch shares one timestamp.
func (r *StockReservation) MarkExpired(expiredAt time.Time) error {
	if r.Status != ReservationStatusActive {
		return ErrReservationNotActive
	}

	r.Status = ReservationStatusExpired
	r.ReleasedAt = &expiredAt
	r.ReleaseReason = ExpirationReleaseReason

	r.AddDomainEvent(&ReservationExpiredEvent{
		ReservationID: r.ReservationID,
		ProductID:     r.ProductID,
		OrderID:       r.OrderID,
		Quantity:      r.Quantity,
		ExpiredAt:     expiredAt,
	})

	return nil
}

// ExtendExpiration pushes the expiration forward from its current value
func (r *StockReservation) ExtendExpiration(additionalMinutes int) error {
	if additionalMinutes <= 0 {
		return ErrInvalidExpiration
	}
	if r.Status != ReservationStatusActive {
		return ErrReservationNotActive
	}

	r.ExpiresAt = r.ExpiresAt.Add(time.Duration(additionalMinutes) * time.Minute)

	return nil
}

// IsExpired returns true if the reservation is past its expiration at the given time
func (r *StockReservation) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// AddDomainEvent adds a domain event
func (r *StockReservation) AddDomainEvent(event DomainEvent) {
	r.DomainEvents = append(r.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (r *StockReservation) ClearDomainEvents() {
	r.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (r *StockReservation) GetDomainEvents() []DomainEvent {
	return r.DomainEvents
}
