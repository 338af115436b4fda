package util

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// PathExists 判断路径是否存在
func PathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// FileStem 返回文件名去掉扩展名后的部分，没有可用的主干时返回空串
func FileStem(filePath string) string {
	base := filepath.Base(filePath)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return stem
}

// FileSize 返回文件当前长度
func FileSize(filePath string) (int64, error) {
	fd, err := os.Stat(filePath)
	if err != nil {
		return 0, errors.Wrapf(err, "stat file %s", filePath)
	}
	return fd.Size(), nil
}
