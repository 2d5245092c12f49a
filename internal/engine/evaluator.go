// Package engine 实现中继策略评估。
//
// Evaluate 是纯函数：不读时钟、不做 I/O、不修改输入，可并发调用。
// 每条中继独立评估，结果顺序与输入一致，未命中和已暂停的中继也会出现在结果中。
package engine

import (
	"fmt"
	"strings"

	"mailrelay/backend/internal/domain"
)

const (
	ReasonPaused               = "relay is paused"
	ReasonNoSenderRestriction  = "no sender restriction"
	ReasonNoKeywordRestriction = "no keyword restriction"
)

// Evaluate 对每条中继评估入站邮件
func Evaluate(msg domain.InboundMessage, relays []domain.Relay) []domain.EvaluationResult {
	results := make([]domain.EvaluationResult, 0, len(relays))
	for i := range relays {
		results = append(results, evaluateRelay(msg, &relays[i]))
	}
	return results
}

func evaluateRelay(msg domain.InboundMessage, relay *domain.Relay) domain.EvaluationResult {
	result := domain.EvaluationResult{
		RelayID:   relay.ID,
		RelayName: relay.Name,
		Reasons:   []string{},
		Actions:   []string{},
	}

	if !relay.Active {
		result.Reasons = append(result.Reasons, ReasonPaused)
		return result
	}

	senderOK, senderReason := checkSender(msg.From, relay.Conditions.AllowedSenders)
	keywordOK, keywordReason := checkKeywords(msg.Subject, relay.Conditions.SubjectKeywords, relay.Conditions.MatchAllKeywords)
	result.Reasons = append(result.Reasons, senderReason, keywordReason)

	result.Matched = senderOK && keywordOK
	if result.Matched {
		result.Actions = projectActions(&relay.Actions)
	}
	return result
}

// checkSender 发件人检查：完整地址忽略大小写相等，或 @domain 通配与发件人最后一个 @ 之后的域名相等
func checkSender(from string, allowed []string) (bool, string) {
	if len(allowed) == 0 {
		return true, ReasonNoSenderRestriction
	}

	from = strings.TrimSpace(from)
	domainPart := ""
	if at := strings.LastIndex(from, "@"); at >= 0 {
		domainPart = from[at+1:]
	}

	for _, entry := range allowed {
		if strings.HasPrefix(entry, "@") {
			suffix := entry[1:]
			if suffix != "" && domainPart != "" && strings.EqualFold(domainPart, suffix) {
				return true, fmt.Sprintf("sender %s matches allowed domain %s", from, entry)
			}
			continue
		}
		if strings.EqualFold(from, entry) {
			return true, fmt.Sprintf("sender %s matches allowed sender %s", from, entry)
		}
	}

	return false, fmt.Sprintf("sender %s is not in allowed senders", from)
}

// checkKeywords 主题关键字检查：忽略大小写的子串匹配，matchAll 决定是合取还是析取
func checkKeywords(subject string, keywords []string, matchAll bool) (bool, string) {
	if len(keywords) == 0 {
		return true, ReasonNoKeywordRestriction
	}

	lowerSubject := strings.ToLower(subject)
	matched := make([]string, 0, len(keywords))
	missing := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if strings.Contains(lowerSubject, strings.ToLower(kw)) {
			matched = append(matched, kw)
		} else {
			missing = append(missing, kw)
		}
	}

	mode := "any"
	ok := len(matched) > 0
	if matchAll {
		mode = "all"
		ok = len(missing) == 0
	}

	verdict := "satisfied"
	if !ok {
		verdict = "not satisfied"
	}
	return ok, fmt.Sprintf("subject keywords %s (%s): matched [%s], missing [%s]",
		verdict, mode, quoteJoin(matched), quoteJoin(missing))
}

// projectActions 按固定顺序生成动作描述：转发、抄送、自动回复、Webhook
func projectActions(actions *domain.RelayActions) []string {
	out := make([]string, 0, len(actions.ForwardTo)+3)
	for _, addr := range actions.ForwardTo {
		out = append(out, "forward to "+addr)
	}
	if len(actions.CC) > 0 {
		out = append(out, "cc "+strings.Join(actions.CC, ", "))
	}
	if actions.AutoResponse.Enabled {
		out = append(out, fmt.Sprintf("auto-reply %q", actions.AutoResponse.Subject))
	}
	if actions.WebhookURL != "" {
		out = append(out, "notify webhook "+actions.WebhookURL)
	}
	return out
}

func quoteJoin(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}
