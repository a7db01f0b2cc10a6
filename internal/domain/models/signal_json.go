package models

import (
	"encoding/json"
	"fmt"
)

// knownSignalFields are the top-level JSON names the schema understands.
// Anything else is preserved under metadata.extras so forward-compatible
// producer fields survive a full pipeline pass.
var knownSignalFields = map[string]struct{}{
	"ts": {}, "symbol": {}, "side": {}, "level": {}, "confidence": {},
	"price": {}, "type": {}, "signal_type": {}, "key": {}, "data": {},
	"metadata": {}, "confidence_modifier": {}, "related_signals": {},
	"base_confidence": {},
}

// UnmarshalJSON decodes a detector payload. "signal_type" is accepted as an
// alias for "type", and unrecognized top-level fields are kept under
// metadata.extras instead of being dropped.
func (e *SignalEvent) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode signal event: %w", err)
	}

	assign := func(name string, dst interface{}) error {
		v, ok := raw[name]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("decode signal field %s: %w", name, err)
		}
		return nil
	}

	type fields struct {
		name string
		dst  interface{}
	}
	for _, f := range []fields{
		{"ts", &e.TS},
		{"symbol", &e.Symbol},
		{"side", &e.Side},
		{"level", &e.Level},
		{"confidence", &e.Confidence},
		{"price", &e.Price},
		{"key", &e.Key},
		{"data", &e.Data},
		{"metadata", &e.Metadata},
		{"confidence_modifier", &e.Modifiers},
		{"related_signals", &e.RelatedSignals},
	} {
		if err := assign(f.name, f.dst); err != nil {
			return err
		}
	}

	if err := assign("type", &e.Type); err != nil {
		return err
	}
	if e.Type == "" {
		if err := assign("signal_type", &e.Type); err != nil {
			return err
		}
	}

	if _, ok := raw["base_confidence"]; ok {
		if err := assign("base_confidence", &e.BaseConfidence); err != nil {
			return err
		}
	} else {
		e.BaseConfidence = e.Confidence
	}

	extras := make(map[string]interface{})
	for name, v := range raw {
		if _, known := knownSignalFields[name]; known {
			continue
		}
		var val interface{}
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("decode signal field %s: %w", name, err)
		}
		extras[name] = val
	}
	if len(extras) > 0 {
		if e.Metadata == nil {
			e.Metadata = make(map[string]interface{}, len(extras))
		}
		e.Metadata["extras"] = extras
	}
	return nil
}
