// Package mime 提供上传文件的 MIME 检测功能
package mime

import (
	"io"

	"github.com/gabriel-vasile/mimetype"
	log "github.com/sirupsen/logrus"
)

const fallback = "application/octet-stream"

// SkipScan 是否跳过检测, 跳过时总是返回 application/octet-stream
var SkipScan bool

// Detect 检测给定流的 MIME 类型
// 检测后会自动将 Stream Seek 至 0
func Detect(r io.ReadSeeker) string {
	if SkipScan || r == nil {
		return fallback
	}
	_, _ = r.Seek(0, io.SeekStart)
	defer r.Seek(0, io.SeekStart)
	t, err := mimetype.DetectReader(r)
	if err != nil {
		log.Debugf("扫描 Mime 时出现问题: %v", err)
		return fallback
	}
	return t.String()
}

// DetectBytes 检测给定数据的 MIME 类型
func DetectBytes(data []byte) string {
	if SkipScan {
		return fallback
	}
	return mimetype.Detect(data).String()
}

// Resolve 在声明的类型为空或为 application/octet-stream 时使用检测结果
func Resolve(declared string, data []byte) string {
	if declared != "" && declared != fallback {
		return declared
	}
	return DetectBytes(data)
}
