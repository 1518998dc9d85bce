// Package scheduler は確認期限切れ予約の定期掃除を行います
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/robfig/cron/v3"
	"github.com/uma-arai/sbcntr-bungalow/internal/common/utils"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
)

// Sweeper は期限切れの確認待ち予約を取り消します
type Sweeper interface {
	SweepExpired(ctx context.Context) ([]model.Reservation, error)
}

// Scheduler はcronで掃除処理を起動します
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	schedule string
	timeout  time.Duration
}

// NewScheduler は新しいSchedulerを作成します
func NewScheduler(sweeper Sweeper, schedule string, timeout time.Duration) *Scheduler {
	logger := cron.PrintfLogger(log.Default())
	return &Scheduler{
		// 前回の実行が終わっていなければ次の実行はスキップする
		cron:     cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		sweeper:  sweeper,
		schedule: schedule,
		timeout:  timeout,
	}
}

// Start はジョブを登録してスケジューラを開始します
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runJob); err != nil {
		return fmt.Errorf("failed to schedule sweep job (%s): %w", s.schedule, err)
	}
	log.Printf("Scheduled expired reservation sweep: %s", s.schedule)
	s.cron.Start()
	return nil
}

// Stop はスケジューラを停止します。返されるcontextは実行中のジョブの終了で完了します
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runJob() {
	ctx, seg := xray.BeginSegment(context.Background(), "sbcntr-bungalow-sweep")
	defer seg.Close(nil)

	if _, err := s.RunSweep(ctx); err != nil {
		seg.Close(err)
		log.Printf("Failed to sweep expired reservations: %v", err)
	}
}

// RunSweep は掃除処理を1回実行し、取り消した件数を返します
func (s *Scheduler) RunSweep(ctx context.Context) (int, error) {
	var expired []model.Reservation
	err := utils.RunWithTimeout(ctx, s.timeout, func(ctx context.Context) error {
		var err error
		expired, err = s.sweeper.SweepExpired(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}

	if len(expired) > 0 {
		log.Printf("Expired %d pending reservations", len(expired))
	}
	return len(expired), nil
}
