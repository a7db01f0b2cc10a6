package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"FlowRadar/internal/domain/models"
	"FlowRadar/internal/domain/repository"
)

// ClickHouseAudit implements AuditSink on ClickHouse. Rows are append-only;
// the pipeline never reads them back.
type ClickHouseAudit struct {
	db          *sql.DB
	signalTable string
	adviceTable string
}

// NewClickHouseAudit creates a ClickHouse audit sink.
func NewClickHouseAudit(db *sql.DB, signalTable, adviceTable string) repository.AuditSink {
	return &ClickHouseAudit{db: db, signalTable: signalTable, adviceTable: adviceTable}
}

func (s *ClickHouseAudit) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			ts DateTime64(3),
			symbol LowCardinality(String),
			side LowCardinality(String),
			level LowCardinality(String),
			type LowCardinality(String),
			confidence Float64,
			price Float64,
			key String,
			payload String
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMMDD(ts)
		ORDER BY (symbol, ts)
		TTL toDateTime(ts) + INTERVAL 30 DAY`, s.signalTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			ts DateTime64(3),
			symbol LowCardinality(String),
			advice LowCardinality(String),
			confidence Float64,
			buy_score Float64,
			sell_score Float64,
			ratio Float64,
			rationale String,
			payload String
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMMDD(ts)
		ORDER BY (symbol, ts)
		TTL toDateTime(ts) + INTERVAL 90 DAY`, s.adviceTable),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("audit schema: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseAudit) RecordSignal(ctx context.Context, ev *models.SignalEvent) error {
	if ev == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	q := fmt.Sprintf("INSERT INTO %s (ts, symbol, side, level, type, confidence, price, key, payload) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", s.signalTable)
	_, err = s.db.ExecContext(ctx, q,
		floatToTime(ev.TS),
		ev.Symbol,
		string(ev.Side),
		string(ev.Level),
		string(ev.Type),
		ev.Confidence,
		ev.Price,
		ev.Key,
		string(payload),
	)
	return err
}

func (s *ClickHouseAudit) RecordRecommendation(ctx context.Context, rec *models.Recommendation) error {
	if rec == nil {
		return nil
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	q := fmt.Sprintf("INSERT INTO %s (ts, symbol, advice, confidence, buy_score, sell_score, ratio, rationale, payload) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", s.adviceTable)
	_, err = s.db.ExecContext(ctx, q,
		rec.Generated,
		rec.Symbol,
		string(rec.Advice),
		rec.Confidence,
		rec.BuyScore,
		rec.SellScore,
		rec.Ratio,
		rec.Rationale,
		string(payload),
	)
	return err
}

func (s *ClickHouseAudit) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseAudit) Close() error {
	return nil // connection owned by pkg/clickhouse client
}

// floatToTime converts an epoch-seconds float to time with ms precision.
func floatToTime(ts float64) time.Time {
	return time.UnixMilli(int64(ts * 1000))
}
