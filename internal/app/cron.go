package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mx-space/identity/internal/modules/auth/recovery"
	"github.com/mx-space/identity/internal/modules/auth/session"
	pkgcron "github.com/mx-space/identity/internal/pkg/cron"
)

// registerCronJobs registers the background sweeps. Cache entries expire on
// their own; these jobs keep the durable tables from growing unbounded.
func registerCronJobs(sched *pkgcron.Scheduler, sessions *session.Manager, rec *recovery.Service, logger *zap.Logger) {
	cronLogger := logger.Named("CronService")

	sched.Register(pkgcron.Job{
		Name:        "sweep_expired_sessions",
		Description: "清理过期的用户会话",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			n, err := sessions.SweepExpired(ctx)
			if err != nil {
				cronLogger.Warn("清理会话失败", zap.Error(err))
				return err
			}
			cronLogger.Info(fmt.Sprintf("清理会话成功，共删除 %d 条", n))
			return nil
		},
	})

	sched.Register(pkgcron.Job{
		Name:        "sweep_expired_recovery_tokens",
		Description: "清理过期的验证和重置令牌",
		Interval:    time.Hour,
		Fn: func(ctx context.Context) error {
			n, err := rec.SweepExpired(ctx)
			if err != nil {
				cronLogger.Warn("清理令牌失败", zap.Error(err))
				return err
			}
			if n > 0 {
				cronLogger.Info(fmt.Sprintf("清理令牌成功，共删除 %d 条", n))
			}
			return nil
		},
	})
}
