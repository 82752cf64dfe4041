/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// MaintenanceResult reports the outcome of one Lifecycle Manager sweep for
// one (agent, tenant) scope.
type MaintenanceResult struct {
	AgentID       string
	TenantID      string
	Archived      int
	Deleted       int
	Duration      time.Duration
	Err           error
}

// LedgerHook reports a structured maintenance event to an external ledger.
// The ledger itself is an out-of-scope collaborator, referenced only here.
type LedgerHook func(result MaintenanceResult)

// LifecycleManager runs periodic archive-excess and delete-expired
// maintenance per (agent, tenant), scheduled by a cron expression via
// robfig/cron.
type LifecycleManager struct {
	store         Store
	maxEntries    int
	retentionDays int
	logger        *zap.Logger
	ledger        LedgerHook
	cron          *cron.Cron
	scopes        func() []scopeKey
}

// NewLifecycleManager constructs a LifecycleManager. The (agent, tenant)
// pairs to sweep each tick are supplied later, through Start's scopesFn.
func NewLifecycleManager(store Store, maxEntries, retentionDays int, logger *zap.Logger, ledger LedgerHook) *LifecycleManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleManager{
		store:         store,
		maxEntries:    maxEntries,
		retentionDays: retentionDays,
		logger:        logger,
		ledger:        ledger,
	}
}

// Scope names one (agent, tenant) pair the Lifecycle Manager should sweep.
type Scope struct {
	AgentID  string
	TenantID string
}

// Start schedules the maintenance sweep on the given cron expression (e.g.
// "0 * * * *" for hourly) over the scopes returned by scopesFn.
func (m *LifecycleManager) Start(spec string, scopesFn func() []Scope) error {
	m.scopes = func() []scopeKey {
		scopes := scopesFn()
		keys := make([]scopeKey, len(scopes))
		for i, sc := range scopes {
			keys[i] = scopeKey{sc.AgentID, sc.TenantID}
		}
		return keys
	}
	m.cron = cron.New()
	_, err := m.cron.AddFunc(spec, func() {
		for _, sc := range m.scopes() {
			res := m.RunOnce(context.Background(), sc.agentID, sc.tenantID)
			if res.Err != nil {
				m.logger.Warn("lifecycle sweep failed", zap.String("agent_id", sc.agentID), zap.String("tenant_id", sc.tenantID), zap.Error(res.Err))
			}
		}
	})
	if err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

// Stop halts the scheduled sweep.
func (m *LifecycleManager) Stop() {
	if m.cron != nil {
		m.cron.Stop()
	}
}

// RunOnce performs one maintenance pass for (agentID, tenantID). Blank ids
// fail fast; all other errors are caught and reported on the result instead
// of propagating, so one scope's failure never stops the scheduler.
func (m *LifecycleManager) RunOnce(ctx context.Context, agentID, tenantID string) MaintenanceResult {
	start := time.Now()
	result := MaintenanceResult{AgentID: agentID, TenantID: tenantID}
	if agentID == "" || tenantID == "" {
		result.Err = errors.New("memory: lifecycle sweep requires non-blank agent and tenant ids")
		return result
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				result.Err = fmt.Errorf("memory: lifecycle sweep panic: %v", r)
			}
		}()

		count, err := m.store.Count(ctx, agentID, tenantID, false)
		if err != nil {
			result.Err = err
			return
		}
		if m.maxEntries > 0 && count > m.maxEntries {
			excess := count - m.maxEntries
			oldest, err := m.store.ListEntries(ctx, agentID, tenantID, OrderAccessAsc, excess, false)
			if err != nil {
				result.Err = err
				return
			}
			ids := make([]string, len(oldest))
			for i, e := range oldest {
				ids[i] = e.ID
			}
			if err := m.store.Archive(ctx, agentID, tenantID, ids); err != nil {
				result.Err = err
				return
			}
			result.Archived = len(ids)
		}

		if m.retentionDays > 0 {
			cutoff := time.Now().UTC().AddDate(0, 0, -m.retentionDays)
			expired, err := m.store.GetExpiredEntryIDs(ctx, agentID, tenantID, cutoff, 0)
			if err != nil {
				result.Err = err
				return
			}
			if len(expired) > 0 {
				if err := m.store.Delete(ctx, agentID, tenantID, expired); err != nil {
					result.Err = err
					return
				}
				result.Deleted = len(expired)
			}
		}
	}()

	result.Duration = time.Since(start)
	if m.ledger != nil {
		m.ledger(result)
	}
	return result
}
