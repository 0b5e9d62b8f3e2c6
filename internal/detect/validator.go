package detect

import (
	"context"
	"fmt"
	"time"

	"vigil/internal/gateway/provider"
	"vigil/internal/logger"
	"vigil/internal/scenario"
)

// 中文说明：
// 真阳性复核（否决阶段）：第一阶段的开放式提示词容易在画面模糊时过度触发，
// 复核把模型锚定在它自己的第一阶段文本上做二元判断，用于压低误报。
// 复核回答无法判定时向上抛错误，绝不静默当作 false。

// Validator 第二阶段复核器
type Validator struct {
	Client      provider.VisionClient
	CallTimeout time.Duration
	// WithImage 复核时是否附带原图；关闭则仅做文本复核
	WithImage bool
}

func NewValidator(client provider.VisionClient, callTimeout time.Duration, withImage bool) *Validator {
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &Validator{Client: client, CallTimeout: callTimeout, WithImage: withImage}
}

// Validate 仅对 Detected 事件有定义
func (v *Validator) Validate(ctx context.Context, frame Frame, event DetectionEvent) (VetoResult, error) {
	if !event.Detected {
		return VetoResult{}, fmt.Errorf("场景 %s 未检出，无需复核", event.Scenario)
	}
	entry, err := scenario.Lookup(event.Scenario)
	if err != nil {
		return VetoResult{}, err
	}
	prompt := entry.ConfirmPrompt(event.RawResponse)

	callCtx, cancel := context.WithTimeout(ctx, v.CallTimeout)
	defer cancel()

	image := frame.Image
	if !v.WithImage {
		image = nil
	}
	raw, err := v.Client.Infer(callCtx, image, prompt)
	if err != nil {
		return VetoResult{}, err
	}
	confirmed, err := Classify(raw)
	if err != nil {
		return VetoResult{}, err
	}
	logger.Debugf("场景 %s 复核: confirmed=%v", event.Scenario, confirmed)
	return VetoResult{
		Scenario:             event.Scenario,
		ConfirmationResponse: raw,
		Confirmed:            confirmed,
	}, nil
}
