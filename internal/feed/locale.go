package feed

import (
	"fmt"

	"golang.org/x/text/language"
)

// Messages 是兜底文档中用到的占位文案。
type Messages struct {
	// LatestNotes 用于 latest 结果缺少 body 时。
	LatestNotes string
	// StaticName 是静态文档的版本名称，%s 为项目名。
	StaticName string
	StaticNotes string
	// ReleasesPageAsset 指向公开的 Releases 页面。
	ReleasesPageAsset string
	// LatestAsset 指向 releases/latest 跳转地址。
	LatestAsset string
}

var catalog = map[language.Tag]Messages{
	language.Chinese: {
		LatestNotes:       "最新版本",
		StaticName:        "%s 最新版本",
		StaticNotes:       "如果无法自动获取发布信息，请直接访问 GitHub Releases 页面下载最新版本。",
		ReleasesPageAsset: "前往 GitHub Releases 下载",
		LatestAsset:       "直接下载最新版本",
	},
	language.English: {
		LatestNotes:       "Latest version",
		StaticName:        "%s latest version",
		StaticNotes:       "Release information could not be fetched automatically. Please download the latest version from the GitHub Releases page.",
		ReleasesPageAsset: "Download from GitHub Releases",
		LatestAsset:       "Download the latest version",
	},
}

// 第一个条目是匹配失败时的默认语言。
var matcher = language.NewMatcher([]language.Tag{
	language.Chinese,
	language.English,
})

// MessagesFor 按 locale（可以是 "zh-CN"、"en-US" 或 Accept-Language 形式）选择文案，
// 无法识别时回退中文。
func MessagesFor(locale string) Messages {
	_, index := language.MatchStrings(matcher, locale)
	switch index {
	case 1:
		return catalog[language.English]
	default:
		return catalog[language.Chinese]
	}
}

// StaticDisplayName 返回静态文档的版本名称。
func (m Messages) StaticDisplayName(project string) string {
	return fmt.Sprintf(m.StaticName, project)
}
