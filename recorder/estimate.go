package recorder

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// EstimateUnits 估算文本的计费单位数。
// 优先使用 tiktoken 编码器；编码器不可用时退化为每 4 字符一个单位。
func EstimateUnits(text string) int {
	if text == "" {
		return 0
	}
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
