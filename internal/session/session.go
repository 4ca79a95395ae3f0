// Package session provides a high-level facade over flow.Store for common
// invalidation scenarios: logout, security events, and administrative
// cleanup. Grounded in the original implementation's FlowSessionManager.
package session

import (
	"context"
	"log/slog"
	"strings"

	"github.com/flowsentinel/flowsentinel/pkg/flow"
)

// Manager wraps a flow.Store with logout/security-event/bulk-cleanup
// operations, logging every invalidation through slog the way the rest of
// this module reports lifecycle events.
type Manager struct {
	store  flow.Store
	logger *slog.Logger
}

// NewManager constructs a Manager over store, defaulting to slog.Default()
// when logger is nil.
func NewManager(store flow.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// InvalidateUserSession invalidates every flow partitioned under userId,
// ensuring no stale flow survives a logout.
func (m *Manager) InvalidateUserSession(ctx context.Context, userID string) (int, error) {
	if isBlank(userID) {
		return 0, flow.NewArgumentError("userID", "cannot be blank")
	}

	n, err := flow.InvalidateByOwner(ctx, m.store, userID)
	if err != nil {
		return 0, err
	}
	m.logger.Info("user logout invalidated flows", "user_id", userID, "count", n)
	return n, nil
}

// InvalidateOnSecurityEvent invalidates every flow for partitionKey in
// response to a security event (token revocation, suspicious activity),
// logging the pre-invalidation flow count for audit purposes before acting.
func (m *Manager) InvalidateOnSecurityEvent(ctx context.Context, partitionKey, reason string) (int, error) {
	if isBlank(partitionKey) {
		return 0, flow.NewArgumentError("partitionKey", "cannot be blank")
	}
	if isBlank(reason) {
		return 0, flow.NewArgumentError("reason", "cannot be blank")
	}

	active, err := m.store.ListActiveFlows(ctx, partitionKey)
	if err != nil {
		return 0, err
	}
	m.logger.Warn("security event found active flows", "reason", reason, "partition_key", partitionKey, "count", len(active))

	n, err := m.store.InvalidateByPartition(ctx, partitionKey)
	if err != nil {
		return 0, err
	}
	m.logger.Warn("security event invalidated flows", "reason", reason, "partition_key", partitionKey, "count", n)
	return n, nil
}

// InvalidateFlows bulk-invalidates the given keys, used for targeted
// cleanup of specific flow instances.
func (m *Manager) InvalidateFlows(ctx context.Context, keys []flow.FlowKey, reason string) (int, error) {
	if len(keys) == 0 {
		m.logger.Debug("no flows to invalidate")
		return 0, nil
	}

	n, err := m.store.BulkDelete(ctx, keys)
	if err != nil {
		return 0, err
	}
	if isBlank(reason) {
		reason = "manual operation"
	}
	m.logger.Info("bulk invalidation", "reason", reason, "count", n)
	return n, nil
}

// ListActiveFlows returns the keys of every live flow for partitionKey,
// useful for monitoring and debugging.
func (m *Manager) ListActiveFlows(ctx context.Context, partitionKey string) ([]flow.FlowKey, error) {
	if isBlank(partitionKey) {
		return nil, flow.NewArgumentError("partitionKey", "cannot be blank")
	}

	keys, err := m.store.ListActiveFlows(ctx, partitionKey)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("active flows for partition", "partition_key", partitionKey, "count", len(keys))
	return keys, nil
}

// InvalidateMultiplePartitions invalidates every flow across all of
// partitionKeys, skipping blank entries, and returns the total count
// removed across all partitions.
func (m *Manager) InvalidateMultiplePartitions(ctx context.Context, partitionKeys []string, reason string) (int, error) {
	if len(partitionKeys) == 0 {
		m.logger.Debug("no partitions to invalidate")
		return 0, nil
	}

	total := 0
	for _, partitionKey := range partitionKeys {
		if isBlank(partitionKey) {
			continue
		}
		n, err := m.store.InvalidateByPartition(ctx, partitionKey)
		if err != nil {
			return total, err
		}
		total += n
		m.logger.Debug("invalidated flows for partition", "partition_key", partitionKey, "count", n)
	}

	if isBlank(reason) {
		reason = "bulk partition cleanup"
	}
	m.logger.Info("multi-partition invalidation", "reason", reason, "total", total, "partitions", len(partitionKeys))
	return total, nil
}
