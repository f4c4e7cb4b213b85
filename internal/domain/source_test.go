package domain

import (
	"errors"
	"testing"
)

func TestParseStockSource(t *testing.T) {
	tests := []struct {
		input       string
		expected    StockSource
		expectError bool
	}{
		{input: "manual", expected: SourceManual},
		{input: "order", expected: SourceOrder},
		{input: "return", expected: SourceReturn},
		{input: "adjustment", expected: SourceAdjustment},
		{input: "system", expected: SourceSystem},
		{input: "", expectError: true},
		{input: "MANUAL", expectError: true},
		{input: "bogus", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			source, err := ParseStockSource(tt.input)

			if tt.expectError {
				if !errors.Is(err, ErrInvalidSource) {
					t.Errorf("expected ErrInvalidSource, got %v", err)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if source != tt.expected {
					t.Errorf("expected %s, got %s", tt.expected, source)
				}
			}
		})
	}
}

func TestParseHistoryAction(t *testing.T) {
	tests := []struct {
		input       string
		expected    HistoryAction
		expectError bool
	}{
		{input: "initialize", expected: ActionInitialize},
		{input: "increase", expected: ActionIncrease},
		{input: "decrease", expected: ActionDecrease},
		{input: "reserve", expected: ActionReserve},
		{input: "release", expected: ActionRelease},
		{input: "adjust", expected: ActionAdjust},
		{input: "", expectError: true},
		{input: "Increase", expectError: true},
		{input: "delete", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			action, err := ParseHistoryAction(tt.input)

			if tt.expectError {
				if !errors.Is(err, ErrInvalidAction) {
					t.Errorf("expected ErrInvalidAction, got %v", err)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if action != tt.expected {
					t.Errorf("expected %s, got %s", tt.expected, action)
				}
			}
		})
	}
}

func TestParseReservationStatus(t *testing.T) {
	tests := []struct {
		input       string
		expected    ReservationStatus
		expectError bool
	}{
		{input: "active", expected: ReservationStatusActive},
		{input: "completed", expected: ReservationStatusCompleted},
		{input: "expired", expected: ReservationStatusExpired},
		{input: "", expectError: true},
		{input: "cancelled", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			status, err := ParseReservationStatus(tt.input)

			if tt.expectError {
				if !errors.Is(err, ErrInvalidStatus) {
					t.Errorf("expected ErrInvalidStatus, got %v", err)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if status != tt.expected {
					t.Errorf("expected %s, got %s", tt.expected, status)
				}
			}
		})
	}
}
