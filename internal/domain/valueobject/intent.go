package valueobject

// Intent 用户意图（封闭枚举）
type Intent string

const (
	IntentGreeting  Intent = "greeting"
	IntentServices  Intent = "services"
	IntentPricing   Intent = "pricing"
	IntentContact   Intent = "contact"
	IntentTechnical Intent = "technical"
	IntentGeneral   Intent = "general"
)

// AllIntents 返回全部意图
func AllIntents() []Intent {
	return []Intent{
		IntentGreeting,
		IntentServices,
		IntentPricing,
		IntentContact,
		IntentTechnical,
		IntentGeneral,
	}
}

// IsValid 判断意图是否合法
func (i Intent) IsValid() bool {
	for _, known := range AllIntents() {
		if i == known {
			return true
		}
	}
	return false
}

// String 实现 fmt.Stringer
func (i Intent) String() string {
	return string(i)
}
