/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package notify fans execution-completed and execution-failed events out
// to subscriber URLs registered per tenant, HMAC-signing each delivery.
// Grounded on internal/controlplane/webhook/notifier.go's Notifier.
package notify

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultDeliveryHistoryLimit = 200

// DeliveryObserver records delivery outcomes for monitoring integration.
type DeliveryObserver interface {
	RecordDelivery(eventType string, statusCode int, duration time.Duration, err error)
}

// Subscription is one registered outbound delivery target.
type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenant_id"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
	Enabled  bool     `json:"enabled"`
}

// Payload is the JSON body POSTed to subscriber URLs.
type Payload struct {
	ID          string    `json:"id"`
	Event       string    `json:"event"`
	Timestamp   time.Time `json:"timestamp"`
	EndpointID  string    `json:"endpoint_id,omitempty"`
	ExecutionID string    `json:"execution_id,omitempty"`
	Status      string    `json:"status,omitempty"`
	Detail      any       `json:"detail,omitempty"`
}

// DeliveryRecord captures one delivery attempt, with the target URL masked.
type DeliveryRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	EventType  string    `json:"event_type"`
	TargetURL  string    `json:"target_url"`
	StatusCode int       `json:"status_code"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// Notifier manages webhook execution-event subscriptions and dispatch.
type Notifier struct {
	mu         sync.RWMutex
	items      map[string]Subscription
	httpClient *http.Client
	observer   DeliveryObserver

	deliveryMu sync.RWMutex
	deliveries []DeliveryRecord
}

// NewNotifier creates a notifier with a 5s delivery timeout.
func NewNotifier() *Notifier {
	return &Notifier{
		items:      make(map[string]Subscription),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		deliveries: make([]DeliveryRecord, 0, defaultDeliveryHistoryLimit),
	}
}

// SetDeliveryObserver registers an optional delivery observer.
func (n *Notifier) SetDeliveryObserver(observer DeliveryObserver) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observer = observer
}

// Subscribe adds or updates a subscription.
func (n *Notifier) Subscribe(sub Subscription) Subscription {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription.
func (n *Notifier) Unsubscribe(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.items, id)
}

// List returns every registered subscription for tenantID.
func (n *Notifier) List(tenantID string) []Subscription {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Subscription, 0, len(n.items))
	for _, sub := range n.items {
		if tenantID != "" && sub.TenantID != tenantID {
			continue
		}
		out = append(out, sub)
	}
	return out
}

// Deliveries returns the most recent delivery attempts, newest first.
func (n *Notifier) Deliveries(limit int) []DeliveryRecord {
	n.deliveryMu.RLock()
	defer n.deliveryMu.RUnlock()
	if limit <= 0 || limit > len(n.deliveries) {
		limit = len(n.deliveries)
	}
	out := make([]DeliveryRecord, 0, limit)
	for i := len(n.deliveries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, n.deliveries[i])
	}
	return out
}

// NotifyExecutionCompleted fans an "execution.completed" event out to every
// enabled subscription for tenantID.
func (n *Notifier) NotifyExecutionCompleted(tenantID, endpointID, executionID string, output any) {
	n.dispatch(tenantID, "execution.completed", Payload{
		ID: uuid.NewString(), Event: "execution.completed", Timestamp: time.Now().UTC(),
		EndpointID: endpointID, ExecutionID: executionID, Status: "completed", Detail: output,
	})
}

// NotifyExecutionFailed fans an "execution.failed" event out to every
// enabled subscription for tenantID.
func (n *Notifier) NotifyExecutionFailed(tenantID, endpointID, executionID string, errDetail map[string]any) {
	n.dispatch(tenantID, "execution.failed", Payload{
		ID: uuid.NewString(), Event: "execution.failed", Timestamp: time.Now().UTC(),
		EndpointID: endpointID, ExecutionID: executionID, Status: "failed", Detail: errDetail,
	})
}

func (n *Notifier) dispatch(tenantID, event string, payload Payload) {
	n.mu.RLock()
	var targets []Subscription
	for _, sub := range n.items {
		if !sub.Enabled || sub.TenantID != tenantID {
			continue
		}
		if !containsEvent(sub.Events, event) {
			continue
		}
		targets = append(targets, sub)
	}
	n.mu.RUnlock()

	for _, sub := range targets {
		target := sub
		go func() {
			started := time.Now()
			statusCode, err := n.sendWithRetry(target, payload)
			n.recordDelivery(event, target.URL, statusCode, time.Since(started), err)
		}()
	}
}

// sendWithRetry POSTs payload to sub.URL, retrying once on failure.
func (n *Notifier) sendWithRetry(sub Subscription, payload Payload) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal notification payload: %w", err)
	}

	var lastErr error
	var statusCode int
	for attempt := 1; attempt <= 2; attempt++ {
		req, err := http.NewRequest(http.MethodPost, sub.URL, bytes.NewReader(body))
		if err != nil {
			return 0, fmt.Errorf("build notification request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if sub.Secret != "" {
			req.Header.Set("X-Webhook-Signature", signature(sub.Secret, body))
		}

		resp, err := n.client().Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		statusCode = resp.StatusCode
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if statusCode >= 200 && statusCode < 300 {
			return statusCode, nil
		}
		lastErr = fmt.Errorf("subscriber returned status %d", statusCode)
	}
	return statusCode, lastErr
}

func (n *Notifier) recordDelivery(eventType, targetURL string, statusCode int, duration time.Duration, err error) {
	record := DeliveryRecord{
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		TargetURL:  maskTargetURL(targetURL),
		StatusCode: statusCode,
		DurationMS: duration.Milliseconds(),
	}
	if err != nil {
		record.Error = err.Error()
	}

	n.deliveryMu.Lock()
	n.deliveries = append(n.deliveries, record)
	if len(n.deliveries) > defaultDeliveryHistoryLimit {
		offset := len(n.deliveries) - defaultDeliveryHistoryLimit
		copy(n.deliveries, n.deliveries[offset:])
		n.deliveries = n.deliveries[:defaultDeliveryHistoryLimit]
	}
	n.deliveryMu.Unlock()

	n.mu.RLock()
	observer := n.observer
	n.mu.RUnlock()
	if observer != nil {
		observer.RecordDelivery(eventType, statusCode, duration, err)
	}
}

func (n *Notifier) client() *http.Client {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.httpClient != nil {
		return n.httpClient
	}
	return &http.Client{Timeout: 5 * time.Second}
}

func containsEvent(events []string, target string) bool {
	for _, e := range events {
		if e == target {
			return true
		}
	}
	return false
}

func maskTargetURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/***", scheme, u.Host)
}

func signature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
