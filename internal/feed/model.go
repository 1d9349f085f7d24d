package feed

// DefaultContentType 在上游缺失 content_type 时使用。
const DefaultContentType = "application/octet-stream"

// Asset 是发布附带的单个下载文件。
type Asset struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"browser_download_url"`
	ContentType string `json:"content_type"`
}

// Release 是一次已发布（非草稿）的版本。字段名沿用下载页读取的 GitHub 字段。
type Release struct {
	Tag         string  `json:"tag_name"`
	DisplayName string  `json:"name"`
	Notes       string  `json:"body"`
	PublishedAt string  `json:"published_at"`
	Assets      []Asset `json:"assets"`
}

// Feed 按上游顺序（新到旧）排列，不做额外排序。
type Feed []Release
