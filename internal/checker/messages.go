package checker

import (
	"strings"
	"time"
)

// Toast visibility, matching what users of the mobile client are used to.
const (
	DevSkipToastDuration     = 2 * time.Second
	UpToDateToastDuration    = 2 * time.Second
	DownloadingToastDuration = 3 * time.Second
)

// Messages is the user-visible copy of the workflow.
type Messages struct {
	DevModeSkipped string
	UpToDate       string
	Downloading    string
	RestartTitle   string
	RestartMessage string
	RestartAction  string
	LaterAction    string
	FailedTitle    string
	// FailedMessage takes the error text as its only %s verb.
	FailedMessage string
	DismissAction string
}

// English returns the default catalog.
func English() Messages {
	return Messages{
		DevModeSkipped: "Development mode, update check skipped",
		UpToDate:       "You are already on the latest version",
		Downloading:    "New version found, downloading in the background...",
		RestartTitle:   "Update ready",
		RestartMessage: "A new version has been downloaded. Restart now to apply it?",
		RestartAction:  "Restart",
		LaterAction:    "Later",
		FailedTitle:    "Update failed",
		FailedMessage:  "Error while checking for updates: %s",
		DismissAction:  "OK",
	}
}

// Chinese returns the zh-CN catalog.
func Chinese() Messages {
	return Messages{
		DevModeSkipped: "开发模式，跳过更新检查",
		UpToDate:       "当前已是最新版本",
		Downloading:    "发现新版本，正在后台下载...",
		RestartTitle:   "更新提示",
		RestartMessage: "新版本已下载，是否立即重启应用？",
		RestartAction:  "重启",
		LaterAction:    "稍后",
		FailedTitle:    "更新失败",
		FailedMessage:  "检查更新时出错: %s",
		DismissAction:  "确定",
	}
}

// ForLocale picks a catalog by language prefix, defaulting to English.
func ForLocale(locale string) Messages {
	l := strings.ToLower(strings.TrimSpace(locale))
	if l == "zh" || strings.HasPrefix(l, "zh-") || strings.HasPrefix(l, "zh_") {
		return Chinese()
	}
	return English()
}

// withDefaults fills empty fields from English so a partial catalog still
// renders every transition.
func (m Messages) withDefaults() Messages {
	d := English()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&m.DevModeSkipped, d.DevModeSkipped)
	fill(&m.UpToDate, d.UpToDate)
	fill(&m.Downloading, d.Downloading)
	fill(&m.RestartTitle, d.RestartTitle)
	fill(&m.RestartMessage, d.RestartMessage)
	fill(&m.RestartAction, d.RestartAction)
	fill(&m.LaterAction, d.LaterAction)
	fill(&m.FailedTitle, d.FailedTitle)
	fill(&m.FailedMessage, d.FailedMessage)
	fill(&m.DismissAction, d.DismissAction)
	return m
}
