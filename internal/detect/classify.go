package detect

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"vigil/internal/pkg/text"
)

// 中文说明：
// 回答判定规则：只看首个词元。"yes" -> 检出，"no" -> 未检出，
// 其余一律视为无法判定（显式错误，绝不静默折算为布尔值）。

// ErrAmbiguous 模型回答无法确定地映射为 yes/no
var ErrAmbiguous = errors.New("回答无法判定为 yes/no")

// Classify 对模型文本回答做确定性判定
func Classify(answer string) (bool, error) {
	token := leadingToken(answer)
	switch token {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrAmbiguous, text.Truncate(strings.TrimSpace(answer), 80))
	}
}

// leadingToken 提取首个字母词元并转小写；前导空白与标点忽略
func leadingToken(s string) string {
	s = strings.TrimSpace(s)
	start := -1
	for i, r := range s {
		if unicode.IsLetter(r) {
			start = i
			break
		}
		// 跳过引号、星号等前导修饰；遇到数字直接判为无词元
		if unicode.IsDigit(r) {
			return ""
		}
	}
	if start == -1 {
		return ""
	}
	end := len(s)
	for i, r := range s[start:] {
		if !unicode.IsLetter(r) {
			end = start + i
			break
		}
	}
	return strings.ToLower(s[start:end])
}
