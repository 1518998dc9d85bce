package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-bungalow/internal/app"
	"github.com/uma-arai/sbcntr-bungalow/internal/common/config"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
	"github.com/uma-arai/sbcntr-bungalow/internal/repository"
)

// NotificationBatchService は通知バッチ処理を担当します
type NotificationBatchService struct {
	args             []model.Notification
	stores           *app.Stores
	notificationRepo repository.NotificationRepository
	unitRepo         repository.UnitRepository
	cfg              *config.Config
}

// NewNotificationBatchService は新しいNotificationBatchServiceを作成します
func NewNotificationBatchService(cfg *config.Config) (*NotificationBatchService, error) {
	stores, err := app.NewStores(cfg)
	if err != nil {
		return nil, err
	}

	return &NotificationBatchService{
		stores:           stores,
		notificationRepo: stores.Notifications,
		unitRepo:         stores.Units,
		cfg:              cfg,
	}, nil
}

// Close は終了処理を行います
func (s *NotificationBatchService) Close() error {
	if s.stores != nil {
		return s.stores.Close()
	}
	return nil
}

// SetArgs は通知バッチ処理の引数を設定します
func (s *NotificationBatchService) SetArgs(args []model.Notification) {
	s.args = args
}

// Run は通知バッチ処理を実行します
func (s *NotificationBatchService) Run(ctx context.Context) error {
	// X-Rayセグメントの作成
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationBatchService.Run")
	defer seg.Close(nil)

	notifications := s.args
	log.Printf("Starting notification batch process for %d notifications...", len(notifications))

	// セグメントにメタデータを追加
	if err := seg.AddMetadata("notification_count", len(notifications)); err != nil {
		log.Printf("Failed to add notification_count metadata: %v", err)
	}

	// 処理開始時刻を記録
	startTime := time.Now()

	// バンガロー名を取得
	unitNameMap, err := s.getUnitNameMap(ctx, notifications)
	if err != nil {
		seg.Close(err)
		return err
	}

	// 通知をレコードに変換
	records := make([]model.NotificationRecord, len(notifications))
	for i, notification := range notifications {
		record, err := notification.ToNotificationRecord(unitNameMap)
		if err != nil {
			seg.Close(err)
			return err
		}
		records[i] = *record
	}

	// 通知レコードを作成
	if err := s.notificationRepo.CreateNotifications(ctx, records); err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to create notifications: %w", err)
	}

	duration := time.Since(startTime)

	// セグメントにメタデータを追加
	if err := seg.AddMetadata("duration", duration.String()); err != nil {
		log.Printf("Failed to add duration metadata: %v", err)
	}
	if err := seg.AddMetadata("unit_count", len(unitNameMap)); err != nil {
		log.Printf("Failed to add unit_count metadata: %v", err)
	}

	log.Printf("Notification batch process completed successfully. Duration: %v", duration)
	return nil
}

// 通知データに含まれる情報からバンガロー名を取得する
// N+1とならないように先に重複がないユニットIDを取得をしておく
func (s *NotificationBatchService) getUnitNameMap(ctx context.Context, notifications []model.Notification) (map[string]string, error) {
	// X-Rayセグメントの作成
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationBatchService.getUnitNameMap")
	defer seg.Close(nil)

	unitIDs := make([]string, 0)
	unitNameMap := make(map[string]string)
	for _, notification := range notifications {
		unitID := notification.Data.UnitID
		if unitID == "" {
			err := fmt.Errorf("unit_id is required in notification data")
			seg.Close(err)
			return nil, err
		}

		// unitIDが重複している場合はスキップ
		if slices.Contains(unitIDs, unitID) {
			continue
		}

		unitIDs = append(unitIDs, unitID)
	}

	// セグメントにメタデータを追加
	if err := seg.AddMetadata("unique_unit_count", len(unitIDs)); err != nil {
		log.Printf("Failed to add unique_unit_count metadata: %v", err)
	}

	for _, unitID := range unitIDs {
		unitName, err := s.unitRepo.GetNameByID(ctx, unitID)
		if err != nil {
			seg.Close(err)
			return nil, err
		}
		unitNameMap[unitID] = unitName
	}

	return unitNameMap, nil
}

// ParseNotifications は前段のステートから渡された {"notifications": [...]} 形式の入力を解析します
func ParseNotifications(payload string) ([]model.Notification, error) {
	var input struct {
		Notifications []model.Notification `json:"notifications"`
	}
	if err := json.Unmarshal([]byte(payload), &input); err != nil {
		return nil, fmt.Errorf("failed to parse notifications input: %w", err)
	}
	return input.Notifications, nil
}
