package valueobject

// ModelConfig 生成模型配置值对象（不可变）
type ModelConfig struct {
	model        string
	maxTokens    int
	temperature  float64
	historyLimit int
}

// NewModelConfig 创建模型配置
func NewModelConfig(model string, maxTokens int, temperature float64, historyLimit int) ModelConfig {
	return ModelConfig{
		model:        model,
		maxTokens:    maxTokens,
		temperature:  temperature,
		historyLimit: historyLimit,
	}
}

// DefaultModelConfig 默认模型配置
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		model:        "gpt-4o-mini",
		maxTokens:    300,
		temperature:  0.7,
		historyLimit: 6,
	}
}

// Model 返回模型名称
func (mc ModelConfig) Model() string {
	return mc.model
}

// MaxTokens 返回最大输出令牌数
func (mc ModelConfig) MaxTokens() int {
	return mc.maxTokens
}

// Temperature 返回温度参数
func (mc ModelConfig) Temperature() float64 {
	return mc.temperature
}

// HistoryLimit 返回传入模型的历史消息条数
func (mc ModelConfig) HistoryLimit() int {
	return mc.historyLimit
}
