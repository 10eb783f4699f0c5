package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"cometguard/internal/model"
)

// Watch assesses markets immediately and then every interval until ctx is
// done. A cycle that fails to acquire or assess is logged and skipped. A
// storage failure is only logged; onCycle, when set, still receives that
// cycle's assessments.
func (s *Service) Watch(ctx context.Context, market common.Address, interval time.Duration, onCycle func([]model.RiskAssessment)) error {
	if interval <= 0 {
		return fmt.Errorf("watch interval must be positive")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for cycle := 1; ; cycle++ {
		assessments, err := s.Assess(ctx, market)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrStore):
			s.logger.Warn("watch cycle not stored", zap.Int("cycle", cycle), zap.Error(err))
		case err != nil:
			s.logger.Warn("watch cycle failed", zap.Int("cycle", cycle), zap.Error(err))
			assessments = nil
		}
		if onCycle != nil && len(assessments) > 0 {
			onCycle(assessments)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
