package service

import (
	"regexp"
	"strings"
	"unicode"
)

// 选项前缀，例如 "B)"、"c."、"D:"、"a 选项"
var optionPrefix = regexp.MustCompile(`^[A-Za-z][\)\.\:\s]`)

// NormalizeAnswer 把选择题作答归一化为单个小写选项字母
//
// 单字母直接转小写；带 ")"/"."/":" 或空白的前缀取首字母；
// 其余以字母开头的答案取首字母；不以字母开头时返回整体小写。
// 函数幂等：NormalizeAnswer(NormalizeAnswer(x)) == NormalizeAnswer(x)。
func NormalizeAnswer(ans string) string {
	s := strings.TrimSpace(ans)
	if s == "" {
		return ""
	}

	first := []rune(s)[0]
	if optionPrefix.MatchString(s) || unicode.IsLetter(first) {
		return string(unicode.ToLower(first))
	}
	return strings.ToLower(s)
}
