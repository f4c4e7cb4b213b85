package domain

import (
	"testing"
)

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		currency string
		wantErr  error
	}{
		{name: "valid amount", amount: 1999, currency: "USD"},
		{name: "zero amount", amount: 0, currency: "EUR"},
		{name: "negative amount", amount: -1, currency: "USD", wantErr: ErrNegativeMoney},
		{name: "currency too short", amount: 100, currency: "US", wantErr: ErrInvalidCurrency},
		{name: "currency too long", amount: 100, currency: "USDT", wantErr: ErrInvalidCurrency},
		{name: "empty currency", amount: 100, currency: "", wantErr: ErrInvalidCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMoney(tt.amount, tt.currency)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Fatalf("NewMoney(%d, %q) error = %v, want %v", tt.amount, tt.currency, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewMoney(%d, %q) unexpected error: %v", tt.amount, tt.currency, err)
			}
			if m.Amount() != tt.amount {
				t.Errorf("Amount() = %d, want %d", m.Amount(), tt.amount)
			}
			if m.Currency() != tt.currency {
				t.Errorf("Currency() = %q, want %q", m.Currency(), tt.currency)
			}
		})
	}
}

func TestMoney_Add(t *testing.T) {
	usd100, _ := NewMoney(100, "USD")
	usd250, _ := NewMoney(250, "USD")
	eur100, _ := NewMoney(100, "EUR")

	sum, err := usd100.Add(usd250)
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if sum.Amount() != 350 || sum.Currency() != "USD" {
		t.Errorf("Add = %v, want 350 USD", sum)
	}

	if _, err := usd100.Add(eur100); err != ErrCurrencyMismatch {
		t.Errorf("Add across currencies error = %v, want ErrCurrencyMismatch", err)
	}
}

func TestMoney_Multiply(t *testing.T) {
	unit, _ := NewMoney(499, "USD")

	tests := []struct {
		name    string
		qty     int
		want    int64
		wantErr error
	}{
		{name: "by quantity", qty: 12, want: 5988},
		{name: "by one", qty: 1, want: 499},
		{name: "by zero", qty: 0, want: 0},
		{name: "negative quantity", qty: -3, wantErr: ErrInvalidMultiplier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unit.Multiply(tt.qty)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Fatalf("Multiply(%d) error = %v, want %v", tt.qty, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Multiply(%d) unexpected error: %v", tt.qty, err)
			}
			if got.Amount() != tt.want {
				t.Errorf("Multiply(%d) = %d, want %d", tt.qty, got.Amount(), tt.want)
			}
			if got.Currency() != "USD" {
				t.Errorf("Multiply(%d) currency = %q, want USD", tt.qty, got.Currency())
			}
		})
	}
}

func TestMoney_Equals(t *testing.T) {
	a, _ := NewMoney(100, "USD")
	b, _ := NewMoney(100, "USD")
	c, _ := NewMoney(101, "USD")
	d, _ := NewMoney(100, "EUR")

	if !a.Equals(b) {
		t.Error("identical values should be equal")
	}
	if a.Equals(c) {
		t.Error("different amounts should not be equal")
	}
	if a.Equals(d) {
		t.Error("different currencies should not be equal")
	}
}

func TestMoney_String(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{amount: 1999, want: "19.99 USD"},
		{amount: 100, want: "1.00 USD"},
		{amount: 5, want: "0.05 USD"},
		{amount: 0, want: "0.00 USD"},
	}

	for _, tt := range tests {
		m, _ := NewMoney(tt.amount, "USD")
		if got := m.String(); got != tt.want {
			t.Errorf("String() for %d = %q, want %q", tt.amount, got, tt.want)
		}
	}
}
