package domain

import "time"

// AutoResponse 自动回复配置
type AutoResponse struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Subject string `json:"subject" yaml:"subject"`
	Body    string `json:"body" yaml:"body"`
}

// RelayActions 规则命中后触发的动作
type RelayActions struct {
	ForwardTo    []string     `json:"forwardTo" yaml:"forwardTo"`       // 转发目标（有序、去重）
	CC           []string     `json:"cc" yaml:"cc"`                     // 抄送地址（有序、去重）
	AutoResponse AutoResponse `json:"autoResponse" yaml:"autoResponse"` // 自动回复
	WebhookURL   string       `json:"webhookUrl,omitempty" yaml:"webhookUrl"`
}

// RelayConditions 规则命中条件
type RelayConditions struct {
	SubjectKeywords  []string `json:"subjectKeywords" yaml:"subjectKeywords"`   // 主题关键字
	AllowedSenders   []string `json:"allowedSenders" yaml:"allowedSenders"`     // 完整地址或 @domain 通配
	MatchAllKeywords bool     `json:"matchAllKeywords" yaml:"matchAllKeywords"` // true: 全部命中; false: 任一命中
}

// Relay 表示一条中继策略。
// 一条中继监听一个入站别名，满足条件后执行转发、抄送、自动回复和 Webhook 通知。
type Relay struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	InboundAddress string          `json:"inboundAddress"` // 监听的入站别名
	TargetInbox    string          `json:"targetInbox"`    // 主收件箱
	Actions        RelayActions    `json:"actions"`
	Conditions     RelayConditions `json:"conditions"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Clone 返回深拷贝，存储层对外只暴露副本。
func (r *Relay) Clone() *Relay {
	out := *r
	out.Actions.ForwardTo = cloneStrings(r.Actions.ForwardTo)
	out.Actions.CC = cloneStrings(r.Actions.CC)
	out.Conditions.SubjectKeywords = cloneStrings(r.Conditions.SubjectKeywords)
	out.Conditions.AllowedSenders = cloneStrings(r.Conditions.AllowedSenders)
	return &out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// CreateRelayInput 创建中继的输入
type CreateRelayInput struct {
	Name           string             `json:"name" yaml:"name" validate:"required"`
	Description    string             `json:"description" yaml:"description"`
	InboundAddress string             `json:"inboundAddress" yaml:"inboundAddress" validate:"required"`
	TargetInbox    string             `json:"targetInbox" yaml:"targetInbox" validate:"required"`
	Actions        CreateRelayActions `json:"actions" yaml:"actions"`
	Conditions     RelayConditions    `json:"conditions" yaml:"conditions"`
	Active         *bool              `json:"active" yaml:"active"` // 未指定时默认启用
}

// CreateRelayActions 创建时的动作配置，ForwardTo 为 nil 表示未指定
type CreateRelayActions struct {
	ForwardTo    []string     `json:"forwardTo" yaml:"forwardTo"`
	CC           []string     `json:"cc" yaml:"cc"`
	AutoResponse AutoResponse `json:"autoResponse" yaml:"autoResponse"`
	WebhookURL   string       `json:"webhookUrl" yaml:"webhookUrl" validate:"omitempty,url"`
}

// UpdateRelayInput 局部更新，nil 字段保持原值
type UpdateRelayInput struct {
	Name           *string                `json:"name"`
	Description    *string                `json:"description"`
	InboundAddress *string                `json:"inboundAddress"`
	TargetInbox    *string                `json:"targetInbox"`
	Actions        *UpdateRelayActions    `json:"actions"`
	Conditions     *UpdateRelayConditions `json:"conditions"`
	Active         *bool                  `json:"active"`
}

// UpdateRelayActions 动作的局部更新
type UpdateRelayActions struct {
	ForwardTo    *[]string           `json:"forwardTo"`
	CC           *[]string           `json:"cc"`
	AutoResponse *UpdateAutoResponse `json:"autoResponse"`
	WebhookURL   *string             `json:"webhookUrl"`
}

// UpdateAutoResponse 自动回复的局部更新
type UpdateAutoResponse struct {
	Enabled *bool   `json:"enabled"`
	Subject *string `json:"subject"`
	Body    *string `json:"body"`
}

// UpdateRelayConditions 条件的局部更新
type UpdateRelayConditions struct {
	SubjectKeywords  *[]string `json:"subjectKeywords"`
	AllowedSenders   *[]string `json:"allowedSenders"`
	MatchAllKeywords *bool     `json:"matchAllKeywords"`
}

// RelayRepository 中继存储接口。
// UpdateRelay 在存储内部以原子方式执行 读取-修改-写入，mutate 返回错误时不做任何修改。
type RelayRepository interface {
	CreateRelay(relay *Relay) error
	GetRelay(id string) (*Relay, error)
	ListRelays() ([]Relay, error)
	UpdateRelay(id string, mutate func(relay *Relay) error) (*Relay, error)
	DeleteRelay(id string) (bool, error)
}
