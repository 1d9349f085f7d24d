package feed

import (
	"bytes"
	"encoding/json"
)

// Encode 输出规范化的 JSON：4 空格缩进、不转义中文与斜杠、不做 HTML 转义、无结尾换行。
func Encode(feed Feed) ([]byte, error) {
	normalized := make(Feed, len(feed))
	for i, release := range feed {
		if release.Assets == nil {
			release.Assets = []Asset{}
		}
		normalized[i] = release
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
