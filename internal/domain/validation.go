package domain

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator 创建校验器，错误字段使用 JSON 名称
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateStruct 校验结构体，返回第一个失败字段对应的 ValidationError
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewValidationError("", err.Error())
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return NewValidationError(fe.Field(), "is required")
	case "url":
		return NewValidationError(fe.Field(), "must be a valid URL")
	default:
		return NewValidationError(fe.Field(), "is invalid")
	}
}

// NormalizeList 规范化列表字段：去除首尾空白、丢弃空串、按首次出现顺序去重（忽略大小写）。
// 创建和更新共用此函数。
func NormalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// NewRelay 根据创建输入构建中继，完成校验和列表规范化
func NewRelay(id string, input CreateRelayInput, now time.Time) (*Relay, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.InboundAddress = strings.TrimSpace(input.InboundAddress)
	input.TargetInbox = strings.TrimSpace(input.TargetInbox)
	input.Actions.WebhookURL = strings.TrimSpace(input.Actions.WebhookURL)

	if err := ValidateStruct(input); err != nil {
		return nil, err
	}

	forwardTo := input.Actions.ForwardTo
	if forwardTo == nil {
		forwardTo = []string{input.TargetInbox}
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}

	return &Relay{
		ID:             id,
		Name:           input.Name,
		Description:    input.Description,
		InboundAddress: input.InboundAddress,
		TargetInbox:    input.TargetInbox,
		Actions: RelayActions{
			ForwardTo:    NormalizeList(forwardTo),
			CC:           NormalizeList(input.Actions.CC),
			AutoResponse: input.Actions.AutoResponse,
			WebhookURL:   input.Actions.WebhookURL,
		},
		Conditions: RelayConditions{
			SubjectKeywords:  NormalizeList(input.Conditions.SubjectKeywords),
			AllowedSenders:   NormalizeList(input.Conditions.AllowedSenders),
			MatchAllKeywords: input.Conditions.MatchAllKeywords,
		},
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ApplyTo 把局部更新合并到 relay 上。
// 先完成全部校验再修改，校验失败时 relay 保持不变。
func (in *UpdateRelayInput) ApplyTo(relay *Relay, now time.Time) error {
	name, err := requiredPatch("name", in.Name)
	if err != nil {
		return err
	}
	inbound, err := requiredPatch("inboundAddress", in.InboundAddress)
	if err != nil {
		return err
	}
	target, err := requiredPatch("targetInbox", in.TargetInbox)
	if err != nil {
		return err
	}

	var webhookURL *string
	if in.Actions != nil && in.Actions.WebhookURL != nil {
		u := strings.TrimSpace(*in.Actions.WebhookURL)
		if u != "" {
			if err := validate.Var(u, "url"); err != nil {
				return NewValidationError("webhookUrl", "must be a valid URL")
			}
		}
		webhookURL = &u
	}

	if name != nil {
		relay.Name = *name
	}
	if in.Description != nil {
		relay.Description = *in.Description
	}
	if inbound != nil {
		relay.InboundAddress = *inbound
	}
	if target != nil {
		relay.TargetInbox = *target
	}
	if in.Active != nil {
		relay.Active = *in.Active
	}

	if a := in.Actions; a != nil {
		if a.ForwardTo != nil {
			relay.Actions.ForwardTo = NormalizeList(*a.ForwardTo)
		}
		if a.CC != nil {
			relay.Actions.CC = NormalizeList(*a.CC)
		}
		if ar := a.AutoResponse; ar != nil {
			if ar.Enabled != nil {
				relay.Actions.AutoResponse.Enabled = *ar.Enabled
			}
			if ar.Subject != nil {
				relay.Actions.AutoResponse.Subject = *ar.Subject
			}
			if ar.Body != nil {
				relay.Actions.AutoResponse.Body = *ar.Body
			}
		}
		if webhookURL != nil {
			relay.Actions.WebhookURL = *webhookURL
		}
	}

	if c := in.Conditions; c != nil {
		if c.SubjectKeywords != nil {
			relay.Conditions.SubjectKeywords = NormalizeList(*c.SubjectKeywords)
		}
		if c.AllowedSenders != nil {
			relay.Conditions.AllowedSenders = NormalizeList(*c.AllowedSenders)
		}
		if c.MatchAllKeywords != nil {
			relay.Conditions.MatchAllKeywords = *c.MatchAllKeywords
		}
	}

	relay.UpdatedAt = now
	return nil
}

// requiredPatch 必填字段的局部更新：未提供返回 nil，提供但为空白返回校验错误
func requiredPatch(field string, value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, NewValidationError(field, "must not be blank")
	}
	return &trimmed, nil
}
