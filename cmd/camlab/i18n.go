// Package main provides localization for the camlab CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Root command
		"Capture, render and record camera frames.": "カメラフレームをキャプチャ・描画・録画します。",

		// Run command
		"Stream a test camera through the pipeline and record it.": "テストカメラをパイプラインに流して録画",
		"YAML configuration file, reloaded when it changes.":        "YAML設定ファイル（変更時に再読み込み）",

		// Timeline flags
		"How long to stream (0 = until interrupted).":           "ストリーミング時間（0 = 中断されるまで）",
		"Delay between streaming start and recording start.":    "ストリーミング開始から録画開始までの遅延",
		"Recording length (0 = until streaming stops).":         "録画時間（0 = ストリーミング停止まで）",

		// Override flags
		"Render effect (none, vhs).":                            "描画エフェクト（none, vhs）",
		"Directory for the recorded movie.":                     "録画ファイルの保存先ディレクトリ",
		"JPEG quality of recorded frames (1-100).":              "録画フレームのJPEG品質（1-100）",
		"Serve the live preview on this address (e.g., :8080).": "ライブプレビューを配信するアドレス（例: :8080）",

		// Debug flags
		"Enable debug output.":        "デバッグ出力を有効化",
		"Directory for debug output.": "デバッグ出力のディレクトリ",

		// Logging flags
		"Log level (debug, info, warn, error).": "ログレベル（debug, info, warn, error）",
		"Suppress all log output.":              "全てのログ出力を抑制",

		// Probe command
		"Inspect a recorded movie file.": "録画ファイルを検査",
		"Movie file to inspect.":         "検査する動画ファイル",
		"Print the summary as JSON.":     "サマリーをJSONで出力",

		// Version command
		"Show version information.": "バージョン情報を表示",
		"camlab version %s":         "camlab バージョン %s",

		// Runtime messages
		"Output saved to %s":                          "出力を %s に保存しました",
		"Could not inspect %s: %s":                    "%s を検査できませんでした: %s",
		"Preview available at http://%s/snapshot.jpg": "プレビュー: http://%s/snapshot.jpg",

		// Probe output
		"Codec: %s":                  "コーデック: %s",
		"Size: %dx%d":                "サイズ: %dx%d",
		"Fragments: %d":              "フラグメント数: %d",
		"Frames: %d, Duration: %dms": "フレーム数: %d, 再生時間: %dms",
		"File size: %d bytes":        "ファイルサイズ: %d バイト",
	})
}
