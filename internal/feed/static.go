package feed

import "time"

// StaticOptions 描述静态兜底文档所需的全部输入。
type StaticOptions struct {
	Tag              string
	Project          string
	ReleasesPageURL  string
	LatestReleaseURL string
	Messages         Messages
}

// StaticFeed 构造不依赖网络与缓存的单条发布，两个附件分别指向 Releases 页面与 latest 跳转。
func StaticFeed(opts StaticOptions, now time.Time) Feed {
	return Feed{{
		Tag:         opts.Tag,
		DisplayName: opts.Messages.StaticDisplayName(opts.Project),
		Notes:       opts.Messages.StaticNotes,
		PublishedAt: formatTimestamp(now),
		Assets: []Asset{
			{
				Name:        opts.Messages.ReleasesPageAsset,
				Size:        0,
				DownloadURL: opts.ReleasesPageURL,
				ContentType: "text/html",
			},
			{
				Name:        opts.Messages.LatestAsset,
				Size:        0,
				DownloadURL: opts.LatestReleaseURL,
				ContentType: DefaultContentType,
			},
		},
	}}
}
