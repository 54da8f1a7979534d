package usecase

import (
	"context"

	"go.uber.org/zap"

	"netbinder.io/netbinder/internal/domain"
	"netbinder.io/netbinder/internal/metrics"
	apperrors "netbinder.io/netbinder/internal/pkg/errors"
	"netbinder.io/netbinder/internal/pkg/logger"
	"netbinder.io/netbinder/internal/provider"
)

// compensation is the inverse of one forward action.
type compensation struct {
	// action is metrics.ActionDetach for a touched port and
	// metrics.ActionDelete for a created one.
	action    string
	portID    string
	networkID string
}

// compensationLog holds the inverses of the forward actions that succeeded,
// in the order they succeeded.
type compensationLog struct {
	entries []compensation
}

func (l *compensationLog) record(c compensation) {
	l.entries = append(l.entries, c)
}

func (l *compensationLog) len() int {
	return len(l.entries)
}

func (l *compensationLog) touched() []string {
	return l.portsFor(metrics.ActionDetach)
}

func (l *compensationLog) created() []string {
	return l.portsFor(metrics.ActionDelete)
}

func (l *compensationLog) portsFor(action string) []string {
	var out []string
	for _, c := range l.entries {
		if c.action == action {
			out = append(out, c.portID)
		}
	}
	return out
}

// unwind runs every entry once, newest first. Failures are logged and
// swallowed, except a touched port that no longer exists: the first such
// port is reported as COMPENSATION_INCONSISTENCY after all entries ran.
func (l *compensationLog) unwind(ctx context.Context, client provider.NetworkClient, collector *metrics.Collector, instance domain.Instance) error {
	var inconsistency error
	for i := len(l.entries) - 1; i >= 0; i-- {
		c := l.entries[i]
		fields := []zap.Field{
			zap.String("instance_uuid", instance.UUID),
			zap.String("port_id", c.portID),
			zap.String("network_id", c.networkID),
			zap.String("action", c.action),
		}

		var err error
		switch c.action {
		case metrics.ActionDetach:
			err = detach(ctx, client, c.portID)
			if apperrors.HasCode(err, apperrors.CodeCompensationInconsistency) {
				logger.Error("Touched port vanished during compensation", append(fields, zap.Error(err))...)
				if inconsistency == nil {
					inconsistency = err
				}
				collector.CompensationRan(c.action, err)
				continue
			}
		case metrics.ActionDelete:
			err = client.DeletePort(ctx, c.portID)
		}

		collector.CompensationRan(c.action, err)
		if err != nil {
			logger.Warn("Compensation action failed", append(fields, zap.Error(err))...)
			continue
		}
		logger.Debug("Compensation action done", fields...)
	}
	return inconsistency
}

// detach re-fetches the port and clears its device id.
func detach(ctx context.Context, client provider.NetworkClient, portID string) error {
	if _, err := client.ShowPort(ctx, portID); err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.ErrCompensationInconsistencyf(portID, err)
		}
		return err
	}
	empty := ""
	_, err := client.UpdatePort(ctx, portID, domain.PortUpdateRequest{DeviceID: &empty})
	return err
}
