package tutor

import "fmt"

// DefaultSystemPrompt is sent ahead of every judge request.
const DefaultSystemPrompt = "你是一个资深的Python编程助手"

func evaluatePrompt(tok VerdictTokens, reference, learner, output string) string {
	return fmt.Sprintf(`请评估用户代码是否正确实现了预期功能：
- 示例代码：%s
- 用户代码：%s
- 用户代码输出：%s

请分析两段代码的功能是否等价，不要只关注代码的相似性和返回结果的一致性，而是关注功能的一致性。
当返回结果相同时，请检查用户代码是否实现了与示例代码相同的功能以及输出的内容是否和上下文产生联系。
如果用户代码实现了与示例代码相同的功能，请回复：'%s'
如果用户代码没有实现预期功能，请回复：'不%s，%s<简要说明原因>'`,
		reference, learner, orNone(output), tok.Pass, tok.Pass, tok.ReasonDelimiter)
}

func hintPrompt(code, expected, actual string) string {
	return fmt.Sprintf(`根据以下信息提供简短的代码提示（1-2句话）：
- 用户代码：%s
- 预期输出：%s
- 实际输出：%s
请指出问题关键，忽略用户代码中注释的部分，不要提供完整代码`, code, expected, orNone(actual))
}

func solutionPrompt(code, expected, actual string) string {
	return fmt.Sprintf(`根据以下信息提供详细解决方案：
- 用户代码：%s
- 预期输出：%s
- 实际输出：%s
只需要包含正确代码, 不需要解释`, orNone(code), expected, orNone(actual))
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
