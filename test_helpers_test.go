package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

var repoRoot string

func init() {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return
	}
	dir := filepath.Dir(file)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			repoRoot = dir
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func projectRoot(t *testing.T) string {
	t.Helper()
	if repoRoot == "" {
		t.Fatal("无法定位项目根目录")
	}
	return repoRoot
}

// configFixture 返回 internal/config/testdata 下的配置样例路径。
func configFixture(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(projectRoot(t), "internal", "config", "testdata", name)
}

// useBufferWriters 在测试期间把 stdOut/stdErr 换成内存 buffer，结束后还原。
func useBufferWriters(t *testing.T) {
	t.Helper()

	prevOut, prevErr := stdOut, stdErr
	stdOut, stdErr = &bytes.Buffer{}, &bytes.Buffer{}
	t.Cleanup(func() {
		stdOut, stdErr = prevOut, prevErr
	})
}

func stdOutBuffer() *bytes.Buffer {
	buf, _ := stdOut.(*bytes.Buffer)
	return buf
}

func stdErrBuffer() *bytes.Buffer {
	buf, _ := stdErr.(*bytes.Buffer)
	return buf
}
