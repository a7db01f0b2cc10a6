package repository

import (
	"context"
	"fmt"

	"FlowRadar/internal/domain/models"
	"FlowRadar/internal/domain/repository"
	xhttp "FlowRadar/pkg/http"
)

// WebhookResultPublisher POSTs pipeline results to a notifier endpoint.
// Delivery is best-effort; the caller decides whether failures matter.
type WebhookResultPublisher struct {
	client *xhttp.Client
	url    string
}

// NewWebhookResultPublisher creates a webhook result publisher.
func NewWebhookResultPublisher(client *xhttp.Client, url string) repository.ResultPublisher {
	return &WebhookResultPublisher{client: client, url: url}
}

func (p *WebhookResultPublisher) Publish(ctx context.Context, result *models.PipelineResult) error {
	if result == nil {
		return nil
	}
	resp, err := p.client.SendRequest(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    p.url,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: result,
	})
	if err != nil {
		return fmt.Errorf("webhook publish: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook publish: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (p *WebhookResultPublisher) Close() error { return nil }
