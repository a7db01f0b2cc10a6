package models

// Requests for the operational HTTP endpoints. Defined in domain for
// consistency and reuse.

type TopSignalsRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	N      int    `query:"n" json:"n" default:"10" validate:"gte=1,lte=1000"`
}

type RecommendationRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type RunPipelineRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Window int    `query:"window" json:"window" default:"300" validate:"gte=1,lte=86400"`
}

type IngestSignalRequest struct {
	Signal SignalEvent `json:"signal"`
}
