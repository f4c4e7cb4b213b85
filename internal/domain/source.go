package domain

// StockSource identifies what triggered a stock movement
type StockSource string

const (
	SourceManual     StockSource = "manual"
	SourceOrder      StockSource = "order"
	SourceReturn     StockSource = "return"
	SourceAdjustment StockSource = "adjustment"
	SourceSystem     StockSource = "system"
)

// ParseStockSource converts a raw string into a StockSource, rejecting unknown values
func ParseStockSource(s string) (StockSource, error) {
	switch StockSource(s) {
	case SourceManual, SourceOrder, SourceReturn, SourceAdjustment, SourceSystem:
		return StockSource(s), nil
	default:
		return "", ErrInvalidSource
	}
}

// IsValid returns true if the source is one of the known values
func (s StockSource) IsValid() bool {
	_, err := ParseStockSource(string(s))
	return err == nil
}

func (s StockSource) String() string {
	return string(s)
}

// HistoryAction identifies the kind of change recorded in the audit trail
type HistoryAction string

const (
	ActionInitialize HistoryAction = "initialize"
	ActionIncrease   HistoryAction = "increase"
	ActionDecrease   HistoryAction = "decrease"
	ActionReserve    HistoryAction = "reserve"
	ActionRelease    HistoryAction = "release"
	ActionAdjust     HistoryAction = "adjust"
)

// ParseHistoryAction converts a raw string into a HistoryAction, rejecting unknown values
func ParseHistoryAction(s string) (HistoryAction, error) {
	switch HistoryAction(s) {
	case ActionInitialize, ActionIncrease, ActionDecrease, ActionReserve, ActionRelease, ActionAdjust:
		return HistoryAction(s), nil
	default:
		return "", ErrInvalidAction
	}
}

// IsValid returns true if the action is one of the known values
func (a HistoryAction) IsValid() bool {
	_, err := ParseHistoryAction(string(a))
	return err == nil
}

func (a HistoryAction) String() string {
	return string(a)
}
