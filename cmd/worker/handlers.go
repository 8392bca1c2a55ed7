package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/solophp/taskqueue/internal/worker"
)

// dispatcher routes claimed tasks to the built-in handlers by name.
// Unknown names fail the task; the queue core never interprets them.
func dispatcher() worker.TaskHandler {
	return worker.TaskHandlerFunc(func(ctx context.Context, name string, payload map[string]any) error {
		switch name {
		case "send_email", "email":
			return sendEmail(ctx, payload)
		case "send_webhook", "webhook":
			return sendWebhook(ctx, payload)
		default:
			return fmt.Errorf("unknown task name: %s", name)
		}
	})
}

// sendEmail simulates sending an email
func sendEmail(ctx context.Context, payload map[string]any) error {
	to, _ := payload["to"].(string)
	subject, _ := payload["subject"].(string)
	if to == "" {
		return fmt.Errorf("email payload missing recipient")
	}

	// Simulate email sending delay
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}

	log.Printf("📧 Sent email to %s: %s", to, subject)
	return nil
}

// sendWebhook simulates delivering an HTTP webhook
func sendWebhook(ctx context.Context, payload map[string]any) error {
	url, _ := payload["url"].(string)
	if url == "" {
		return fmt.Errorf("webhook payload missing url")
	}

	select {
	case <-time.After(200 * time.Millisecond):
	case <-ctx.Done():
		return fmt.Errorf("webhook cancelled or timeout: %w", ctx.Err())
	}

	log.Printf("🔔 Delivered webhook to %s", url)
	return nil
}
