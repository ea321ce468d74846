package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Pipeline level messages (info)
		"Pipeline ready: %dx%d @ %.0f fps": "パイプライン準備完了: %dx%d @ %.0f fps",
		"Streaming started":                "ストリーミングを開始しました",
		"Streaming stopped":                "ストリーミングを停止しました",
		"Recording to %s":                  "%s に録画中",
		"Recording saved to %s (%d frames, %d dropped)": "録画を %s に保存しました (%d フレーム, %d 欠落)",
		"Interrupted, shutting down...":                 "中断されました。シャットダウン中...",

		// Warnings
		"Recording active while streaming stops, finalizing it": "ストリーミング停止時に録画中のため、録画を確定します",

		// Errors
		"Failed to finalize recording: %s":      "録画の確定に失敗しました: %s",
		"Failed to save recording summary: %s":  "録画サマリーの保存に失敗しました: %s",
		"Failed to reload configuration: %s":    "設定の再読み込みに失敗しました: %s",
		"Preview server failed: %s":             "プレビューサーバーでエラーが発生しました: %s",

		// Console
		" (%d similar lines suppressed)": " (同様の出力 %d 件を省略)",
	})
}
