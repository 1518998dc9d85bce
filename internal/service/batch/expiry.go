package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-bungalow/internal/app"
	"github.com/uma-arai/sbcntr-bungalow/internal/common/config"
	"github.com/uma-arai/sbcntr-bungalow/internal/common/rabbitmq"
	"github.com/uma-arai/sbcntr-bungalow/internal/common/utils"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
	"github.com/uma-arai/sbcntr-bungalow/internal/settings"
)

// ExpiredReservationSweeper は確認期限切れの予約を取り消します
type ExpiredReservationSweeper interface {
	SweepExpired(ctx context.Context) ([]model.Reservation, error)
}

// TaskNotifier はStep Functionsへタスクの成功を通知します
type TaskNotifier interface {
	SendTaskSuccess(ctx context.Context, params *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error)
}

// ExpiryBatchService は確認期限切れ予約の取り消しバッチを担当します
type ExpiryBatchService struct {
	sweeper   ExpiredReservationSweeper
	notifier  TaskNotifier
	stores    *app.Stores
	publisher rabbitmq.Publisher
	cfg       *config.Config
	now       func() time.Time
}

// NewExpiryBatchService は新しいExpiryBatchServiceを作成します
func NewExpiryBatchService(cfg *config.Config, sfnClient *sfn.Client) (*ExpiryBatchService, error) {
	stores, err := app.NewStores(cfg)
	if err != nil {
		return nil, err
	}

	provider, err := settings.NewFileProvider(cfg.SettingsPath)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.RabbitMQ.URL)
	events := rabbitmq.NewReservationEventPublisher(publisher, cfg.RabbitMQ.Exchange)

	s := &ExpiryBatchService{
		sweeper:   app.NewReservationService(cfg, stores, provider, events),
		stores:    stores,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
	// nilの*sfn.ClientをTaskNotifierに入れるとnil判定できなくなる
	if sfnClient != nil {
		s.notifier = sfnClient
	}
	return s, nil
}

// Close は終了処理を行います
func (s *ExpiryBatchService) Close() error {
	if s.publisher != nil {
		s.publisher.Close()
	}
	if s.stores != nil {
		return s.stores.Close()
	}
	return nil
}

// Run は期限切れ予約の取り消しバッチを実行します
func (s *ExpiryBatchService) Run(ctx context.Context) error {
	// X-Rayセグメントの作成
	ctx, seg := xray.BeginSubsegment(ctx, "ExpiryBatchService.Run")
	defer seg.Close(nil)

	startTime := time.Now()

	expired, err := s.sweeper.SweepExpired(ctx)
	if err != nil {
		seg.Close(err)
		return utils.GetStackWithError(fmt.Errorf("failed to sweep expired reservations: %w", err))
	}

	// 取り消した予約ごとに通知を作成
	now := s.now()
	var notifications []model.Notification
	for _, r := range expired {
		for _, event := range model.CancellationEvents(r, now) {
			notifications = append(notifications, model.NewReservationNotification(event))
		}
	}

	if err := s.sendTaskSuccess(ctx, notifications); err != nil {
		seg.Close(err)
		return utils.GetStackWithError(fmt.Errorf("failed to send task success: %w", err))
	}

	duration := time.Since(startTime)

	// セグメントにメタデータを追加
	if err := seg.AddMetadata("expired_count", len(expired)); err != nil {
		log.Printf("Failed to add expired_count metadata: %v", err)
	}
	if err := seg.AddMetadata("duration", duration.String()); err != nil {
		log.Printf("Failed to add duration metadata: %v", err)
	}

	log.Printf("Expiry batch process completed successfully. Expired: %d, Duration: %v", len(expired), duration)
	return nil
}

// sendTaskSuccess は、Step Functionsのタスク成功を通知し、通知を後続のステートに渡します
func (s *ExpiryBatchService) sendTaskSuccess(ctx context.Context, notifications []model.Notification) error {
	// ローカルの場合はStep Functionsの処理をスキップ
	if os.Getenv("ENV") == "LOCAL" || s.notifier == nil {
		log.Printf("Local environment detected. Skipping Step Functions task success notification")
		return nil
	}

	if notifications == nil {
		notifications = []model.Notification{}
	}
	output, err := json.Marshal(map[string]any{
		"notifications": notifications,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notifications: %w", err)
	}

	taskToken := s.cfg.SFN.TaskToken
	if taskToken == "" {
		return fmt.Errorf("SFN_TASK_TOKEN is not set in config")
	}

	_, err = s.notifier.SendTaskSuccess(ctx, &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(taskToken),
		Output:    aws.String(string(output)),
	})
	if err != nil {
		return fmt.Errorf("failed to send task success: %w", err)
	}

	log.Printf("Successfully sent task success with %d notifications", len(notifications))
	return nil
}
