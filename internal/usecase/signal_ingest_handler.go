package usecase

import (
	"context"
	"encoding/json"
	"time"

	"FlowRadar/internal/domain/models"
	domrepo "FlowRadar/internal/domain/repository"
	"FlowRadar/internal/service/store"
	pkgkafka "FlowRadar/pkg/kafka"
)

// SignalIngestHandler consumes detector events from Kafka and feeds the
// signal store. Malformed payloads and validation rejects return an error so
// the consumer's retry/DLQ policy takes over.
type SignalIngestHandler struct {
	topic   string
	manager *store.Manager
	audit   domrepo.AuditSink
	metrics domrepo.Metrics
}

func NewSignalIngestHandler(topic string, manager *store.Manager, audit domrepo.AuditSink, metrics domrepo.Metrics) *SignalIngestHandler {
	return &SignalIngestHandler{topic: topic, manager: manager, audit: audit, metrics: metrics}
}

func (h *SignalIngestHandler) Topic() string { return h.topic }

func (h *SignalIngestHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.SignalEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("ingest_unmarshal")
		return err
	}
	if ev.TS > 1e11 { // ms timestamps from older detectors
		ev.TS = ev.TS / 1000
	}
	h.metrics.RecordPipelineLatency("ingest_e2e", time.Since(time.Unix(int64(ev.TS), 0)).Seconds())

	if err := h.manager.Add(&ev); err != nil {
		// validation rejects are counted by the manager; retries will fail
		// the same way and land the payload in the DLQ
		return err
	}

	if h.audit != nil {
		if err := h.audit.RecordSignal(ctx, &ev); err != nil {
			// audit is best-effort; the signal is already stored
			h.metrics.RecordError("audit_signal")
		}
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*SignalIngestHandler)(nil)
