package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout はRunWithTimeoutで処理が制限時間内に終わらなかった場合のエラーです
var ErrTimeout = errors.New("process timed out")

// 指定されたタイムアウト時間内で処理を実行する
// タイムアウトを超えた場合は、コンテキストをキャンセルしてErrTimeoutを返す
// 呼び出し元のコンテキストがキャンセルされた場合はそのエラーを返す
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	// タイムアウト付きのコンテキストを作成
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// エラーチャネルを作成
	errChan := make(chan error, 1)

	go func() {
		errChan <- fn(runCtx)
	}()

	// 処理の完了またはタイムアウトを待機
	select {
	case err := <-errChan:
		return err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("process cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
}
