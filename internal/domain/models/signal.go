package models

import (
	"fmt"
	"strconv"
	"strings"
)

// SignalSide is the direction a signal points at.
type SignalSide string

const (
	SideBuy  SignalSide = "BUY"
	SideSell SignalSide = "SELL"
)

// Opposite returns the opposing side.
func (s SignalSide) Opposite() SignalSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// SignalLevel grades how firm a detection is. Unknown levels are carried
// as-is and rank behind every known level.
type SignalLevel string

const (
	LevelCritical  SignalLevel = "CRITICAL"
	LevelConfirmed SignalLevel = "CONFIRMED"
	LevelWarning   SignalLevel = "WARNING"
	LevelActivity  SignalLevel = "ACTIVITY"
)

// SignalType identifies the detector family that produced a signal.
type SignalType string

const (
	TypeLiquidation SignalType = "liq"
	TypeWhale       SignalType = "whale"
	TypeIceberg     SignalType = "iceberg"
	TypeKGod        SignalType = "kgod"
)

// BucketMarket marks a symbol-wide key with no price/time discriminator.
const BucketMarket = "market"

// ConfidenceMin and ConfidenceMax bound every confidence value in the system.
const (
	ConfidenceMin = 0.0
	ConfidenceMax = 100.0
)

// KeySegments is the minimum number of colon-separated parts in a signal key.
const KeySegments = 5

// ValidationError describes why a signal was rejected at ingestion.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid signal: field %s: %s", e.Field, e.Reason)
}

// ModifierEntry is one confidence adjustment applied during fusion,
// kept so the final confidence is always explainable as base + log.
type ModifierEntry struct {
	Source string  `json:"source"`
	Delta  float64 `json:"delta"`
}

// SignalEvent is the canonical unit flowing through the pipeline,
// independent of which detector produced it.
type SignalEvent struct {
	TS             float64                `json:"ts"`
	Symbol         string                 `json:"symbol"`
	Side           SignalSide             `json:"side"`
	Level          SignalLevel            `json:"level"`
	Confidence     float64                `json:"confidence"`
	Price          float64                `json:"price"`
	Type           SignalType             `json:"type"`
	Key            string                 `json:"key"`
	Data           map[string]interface{} `json:"data,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Modifiers      []ModifierEntry        `json:"confidence_modifier,omitempty"`
	RelatedSignals []string               `json:"related_signals,omitempty"`

	// BaseConfidence is the detector-assigned confidence before any fusion
	// adjustment. Adjustment stages recompute from it instead of
	// accumulating onto the already-adjusted value.
	BaseConfidence float64 `json:"base_confidence,omitempty"`
}

// NewSignalEvent builds an event with its base confidence recorded and the
// key derived from the given bucket discriminator.
func NewSignalEvent(ts float64, symbol string, side SignalSide, level SignalLevel, typ SignalType, confidence, price float64, bucket string) *SignalEvent {
	confidence = ClampConfidence(confidence)
	return &SignalEvent{
		TS:             ts,
		Symbol:         symbol,
		Side:           side,
		Level:          level,
		Type:           typ,
		Confidence:     confidence,
		BaseConfidence: confidence,
		Price:          price,
		Key:            GenerateKey(typ, symbol, side, level, bucket),
	}
}

// GenerateKey builds the stable identity string
// {type}:{symbol}:{side}:{level}:{bucket}.
func GenerateKey(typ SignalType, symbol string, side SignalSide, level SignalLevel, bucket string) string {
	return strings.Join([]string{string(typ), symbol, string(side), string(level), bucket}, ":")
}

// PriceBucket renders a price into a key bucket segment, e.g. "price_0.15068".
func PriceBucket(price float64) string {
	return "price_" + strconv.FormatFloat(price, 'f', -1, 64)
}

// TimeBucket renders a timestamp into a key bucket segment aligned to the
// given interval in seconds, e.g. "time_1704758400".
func TimeBucket(ts float64, interval int64) string {
	if interval <= 0 {
		interval = 300
	}
	aligned := (int64(ts) / interval) * interval
	return "time_" + strconv.FormatInt(aligned, 10)
}

// ClampConfidence forces v into the legal [0,100] range.
func ClampConfidence(v float64) float64 {
	if v < ConfidenceMin {
		return ConfidenceMin
	}
	if v > ConfidenceMax {
		return ConfidenceMax
	}
	return v
}

// Validate checks the event against the ingestion contract. The key must
// carry at least five segments and its type/symbol/side segments must match
// the event fields. The level segment is deliberately not cross-checked:
// detectors keep a signal's original key when they upgrade its level, so the
// segment may lag behind the field.
func (e *SignalEvent) Validate() error {
	if e.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if e.Key == "" {
		return &ValidationError{Field: "key", Reason: "must not be empty"}
	}
	if e.Side != SideBuy && e.Side != SideSell {
		return &ValidationError{Field: "side", Reason: fmt.Sprintf("must be BUY or SELL, got %q", e.Side)}
	}
	if e.Level == "" {
		return &ValidationError{Field: "level", Reason: "must not be empty"}
	}
	if e.Type == "" {
		return &ValidationError{Field: "type", Reason: "must not be empty"}
	}
	if e.Confidence < ConfidenceMin || e.Confidence > ConfidenceMax {
		return &ValidationError{Field: "confidence", Reason: fmt.Sprintf("must be in [0,100], got %v", e.Confidence)}
	}
	parts := strings.SplitN(e.Key, ":", KeySegments)
	if len(parts) < KeySegments {
		return &ValidationError{Field: "key", Reason: fmt.Sprintf("expected at least %d colon-separated segments, got %q", KeySegments, e.Key)}
	}
	if parts[0] != string(e.Type) {
		return &ValidationError{Field: "key", Reason: fmt.Sprintf("type segment %q does not match type %q", parts[0], e.Type)}
	}
	if parts[1] != e.Symbol {
		return &ValidationError{Field: "key", Reason: fmt.Sprintf("symbol segment %q does not match symbol %q", parts[1], e.Symbol)}
	}
	if parts[2] != string(e.Side) {
		return &ValidationError{Field: "key", Reason: fmt.Sprintf("side segment %q does not match side %q", parts[2], e.Side)}
	}
	return nil
}

// AddModifier appends one adjustment to the audit log and applies it to the
// confidence, clamping the result.
func (e *SignalEvent) AddModifier(source string, delta float64) {
	e.Modifiers = append(e.Modifiers, ModifierEntry{Source: source, Delta: delta})
	e.Confidence = ClampConfidence(e.Confidence + delta)
}

// LogModifier appends an adjustment to the audit log without touching the
// confidence. Callers that batch several adjustments clamp once afterwards.
func (e *SignalEvent) LogModifier(source string, delta float64) {
	e.Modifiers = append(e.Modifiers, ModifierEntry{Source: source, Delta: delta})
}

// AddRelated records a correlated signal's key, skipping duplicates.
func (e *SignalEvent) AddRelated(key string) {
	for _, k := range e.RelatedSignals {
		if k == key {
			return
		}
	}
	e.RelatedSignals = append(e.RelatedSignals, key)
}

// Clone returns a deep copy. The manager stores copies so producers cannot
// mutate stored state after submission.
func (e *SignalEvent) Clone() *SignalEvent {
	cp := *e
	if e.Data != nil {
		cp.Data = make(map[string]interface{}, len(e.Data))
		for k, v := range e.Data {
			cp.Data[k] = v
		}
	}
	if e.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	if e.Modifiers != nil {
		cp.Modifiers = append([]ModifierEntry(nil), e.Modifiers...)
	}
	if e.RelatedSignals != nil {
		cp.RelatedSignals = append([]string(nil), e.RelatedSignals...)
	}
	return &cp
}
