package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-bungalow/internal/common/utils"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
)

// MockSweeper はSweeperのモック実装です
type MockSweeper struct {
	expired []model.Reservation
	err     error
	delay   time.Duration
	calls   int
}

func (m *MockSweeper) SweepExpired(ctx context.Context) ([]model.Reservation, error) {
	m.calls++
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.expired, m.err
}

func TestScheduler_RunSweep(t *testing.T) {
	ctx, seg := xray.BeginSegment(context.Background(), "TestScheduler_RunSweep")
	defer seg.Close(nil)

	tests := []struct {
		name      string
		sweeper   *MockSweeper
		wantCount int
		wantErr   error
	}{
		{
			name:      "期限切れの予約を取り消す",
			sweeper:   &MockSweeper{expired: []model.Reservation{{ID: "r1"}, {ID: "r2"}}},
			wantCount: 2,
		},
		{
			name:      "対象がない",
			sweeper:   &MockSweeper{},
			wantCount: 0,
		},
		{
			name:    "掃除処理がエラー",
			sweeper: &MockSweeper{err: errors.New("database down")},
			wantErr: errors.New("database down"),
		},
		{
			name:    "タイムアウト",
			sweeper: &MockSweeper{delay: time.Second},
			wantErr: utils.ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(tt.sweeper, "@every 1m", 50*time.Millisecond)
			count, err := s.RunSweep(ctx)

			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("RunSweep() error = nil, want %v", tt.wantErr)
				}
				if errors.Is(tt.wantErr, utils.ErrTimeout) && !errors.Is(err, utils.ErrTimeout) {
					t.Errorf("RunSweep() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("RunSweep() error = %v", err)
			}
			if count != tt.wantCount {
				t.Errorf("RunSweep() = %d, want %d", count, tt.wantCount)
			}
			if tt.sweeper.calls != 1 {
				t.Errorf("SweepExpired calls = %d, want 1", tt.sweeper.calls)
			}
		})
	}
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{name: "間隔指定", schedule: "@every 1m"},
		{name: "cron形式", schedule: "*/5 * * * *"},
		{name: "不正なスケジュール", schedule: "every minute", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(&MockSweeper{}, tt.schedule, time.Second)
			err := s.Start()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Start() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				<-s.Stop().Done()
			}
		})
	}
}
