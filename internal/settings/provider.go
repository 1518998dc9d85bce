// Package settings は料金規定・予約規定の設定スナップショットを提供します
package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
)

// Provider は読み取り専用の設定スナップショットを返します
type Provider interface {
	Snapshot(ctx context.Context) (model.Settings, error)
}

// Static は固定の設定を返すProviderです
type Static struct {
	Settings model.Settings
}

// Snapshot は保持している設定を返します
func (s Static) Snapshot(ctx context.Context) (model.Settings, error) {
	return s.Settings, nil
}

// FileProvider はYAML/JSONの設定ファイルと環境変数から設定を読み込むProviderです
// 環境変数は BUNGALOW_ を接頭辞とし、階層は _ で区切ります(例: BUNGALOW_DEPOSIT_RULE_AMOUNT)
type FileProvider struct {
	v *viper.Viper

	mu       sync.RWMutex
	settings model.Settings
}

// NewFileProvider は設定ファイルを読み込んでFileProviderを作成します
// ファイルが存在しない場合は初期設定と環境変数のみで動作します
func NewFileProvider(path string) (*FileProvider, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("BUNGALOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	p := &FileProvider{v: v}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Snapshot は最後に読み込んだ設定を返します
func (p *FileProvider) Snapshot(ctx context.Context) (model.Settings, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings, nil
}

// Reload は設定ファイルを読み直します
// 読み込みまたは検証に失敗した場合は直前の設定を保持します
func (p *FileProvider) Reload() error {
	if err := p.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read settings file: %w", err)
		}
		log.Printf("Settings file %s is not found, using defaults", p.v.ConfigFileUsed())
	}

	settings := model.DefaultSettings()
	if err := p.v.Unmarshal(&settings, viper.DecodeHook(decodeHook())); err != nil {
		return fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	p.mu.Lock()
	p.settings = settings
	p.mu.Unlock()
	return nil
}

// Watch は設定ファイルの変更を監視し、変更時に読み直します
func (p *FileProvider) Watch() {
	p.v.OnConfigChange(func(e fsnotify.Event) {
		if err := p.Reload(); err != nil {
			log.Printf("Failed to reload settings after %s: %v", e.Op, err)
			return
		}
		log.Printf("Settings reloaded from %s", e.Name)
	})
	p.v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	d := model.DefaultSettings()
	v.SetDefault("discount_precedence", string(d.DiscountPrecedence))
	v.SetDefault("default_check_in_time", d.DefaultCheckInTime)
	v.SetDefault("default_check_out_time", d.DefaultCheckOutTime)
	// 環境変数で上書きできるようにスカラー項目のキーを登録しておく
	for _, key := range []string{
		"deposit_rule.enabled", "deposit_rule.amount",
		"cancellation_rule.enabled", "cancellation_rule.days_before_check_in",
		"minimum_stay_rule.enabled", "minimum_stay_rule.days",
		"weekend_pricing.enabled",
		"seasonal_pricing.enabled",
		"monthly_pricing.enabled",
		"early_bird_discount.enabled", "early_bird_discount.days_before",
		"last_minute_discount.enabled", "last_minute_discount.days_before",
	} {
		_ = v.BindEnv(key)
	}
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeHookFunc(time.DateOnly),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToWeekdayHook,
		stringToMonthHook,
	)
}

// stringToWeekdayHook は "saturday" のような曜日名を time.Weekday に変換します
func stringToWeekdayHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Weekday(0)) {
		return data, nil
	}
	name := strings.ToLower(strings.TrimSpace(data.(string)))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name || strings.ToLower(d.String()[:3]) == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("invalid weekday %q", data)
}

// stringToMonthHook は "july" のような月名を time.Month に変換します
func stringToMonthHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Month(0)) {
		return data, nil
	}
	name := strings.ToLower(strings.TrimSpace(data.(string)))
	for m := time.January; m <= time.December; m++ {
		if strings.ToLower(m.String()) == name || strings.ToLower(m.String()[:3]) == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("invalid month %q", data)
}
