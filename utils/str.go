package utils

import (
	"strconv"
	"strings"
)

// 按行拆分文本，去除首尾空白并丢弃空行
func NonEmptyLines(s string) (lines []string) {
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return
}

func JoinLines(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

// 浮点数转GDAL命令行参数
func FloatArg(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func IntArg(i int) string {
	return strconv.Itoa(i)
}
