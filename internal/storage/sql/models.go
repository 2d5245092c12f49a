package sql

import (
	"time"

	"mailrelay/backend/internal/domain"
)

// relayRecord relays 表。Seq 自增主键保证列表按创建顺序返回。
type relayRecord struct {
	Seq              uint64    `gorm:"primaryKey;autoIncrement"`
	RelayID          string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	Name             string    `gorm:"type:varchar(255);not null"`
	Description      string    `gorm:"type:text"`
	InboundAddress   string    `gorm:"type:varchar(320);index;not null"`
	TargetInbox      string    `gorm:"type:varchar(320);not null"`
	ForwardTo        []string  `gorm:"serializer:json;type:text"`
	CC               []string  `gorm:"column:cc;serializer:json;type:text"`
	AutoReplyEnabled bool      `gorm:"not null"`
	AutoReplySubject string    `gorm:"type:text"`
	AutoReplyBody    string    `gorm:"type:text"`
	WebhookURL       string    `gorm:"column:webhook_url;type:text"`
	SubjectKeywords  []string  `gorm:"serializer:json;type:text"`
	AllowedSenders   []string  `gorm:"serializer:json;type:text"`
	MatchAllKeywords bool      `gorm:"not null"`
	Active           bool      `gorm:"not null"`
	CreatedAt        time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime:false"`
}

func (relayRecord) TableName() string { return "relays" }

func newRelayRecord(r *domain.Relay) relayRecord {
	return relayRecord{
		RelayID:          r.ID,
		Name:             r.Name,
		Description:      r.Description,
		InboundAddress:   r.InboundAddress,
		TargetInbox:      r.TargetInbox,
		ForwardTo:        r.Actions.ForwardTo,
		CC:               r.Actions.CC,
		AutoReplyEnabled: r.Actions.AutoResponse.Enabled,
		AutoReplySubject: r.Actions.AutoResponse.Subject,
		AutoReplyBody:    r.Actions.AutoResponse.Body,
		WebhookURL:       r.Actions.WebhookURL,
		SubjectKeywords:  r.Conditions.SubjectKeywords,
		AllowedSenders:   r.Conditions.AllowedSenders,
		MatchAllKeywords: r.Conditions.MatchAllKeywords,
		Active:           r.Active,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func (rec *relayRecord) toDomain() *domain.Relay {
	return &domain.Relay{
		ID:             rec.RelayID,
		Name:           rec.Name,
		Description:    rec.Description,
		InboundAddress: rec.InboundAddress,
		TargetInbox:    rec.TargetInbox,
		Actions: domain.RelayActions{
			ForwardTo: nonNil(rec.ForwardTo),
			CC:        nonNil(rec.CC),
			AutoResponse: domain.AutoResponse{
				Enabled: rec.AutoReplyEnabled,
				Subject: rec.AutoReplySubject,
				Body:    rec.AutoReplyBody,
			},
			WebhookURL: rec.WebhookURL,
		},
		Conditions: domain.RelayConditions{
			SubjectKeywords:  nonNil(rec.SubjectKeywords),
			AllowedSenders:   nonNil(rec.AllowedSenders),
			MatchAllKeywords: rec.MatchAllKeywords,
		},
		Active:    rec.Active,
		CreatedAt: rec.CreatedAt.UTC(),
		UpdatedAt: rec.UpdatedAt.UTC(),
	}
}

// logEntryRecord evaluation_logs 表，只插入不更新
type logEntryRecord struct {
	Seq           uint64    `gorm:"primaryKey;autoIncrement"`
	EntryID       string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	Timestamp     time.Time `gorm:"index;not null"`
	RelayID       string    `gorm:"type:varchar(64);index;not null"`
	RelayName     string    `gorm:"type:varchar(255)"`
	Subject       string    `gorm:"type:text"`
	From          string    `gorm:"column:sender;type:varchar(320)"`
	Status        string    `gorm:"type:varchar(32);not null"`
	ActionSummary string    `gorm:"type:text"`
}

func (logEntryRecord) TableName() string { return "evaluation_logs" }

func newLogEntryRecord(e domain.LogEntry) logEntryRecord {
	return logEntryRecord{
		EntryID:       e.ID,
		Timestamp:     e.Timestamp.UTC(),
		RelayID:       e.RelayID,
		RelayName:     e.RelayName,
		Subject:       e.Subject,
		From:          e.From,
		Status:        string(e.Status),
		ActionSummary: e.ActionSummary,
	}
}

func (rec *logEntryRecord) toDomain() domain.LogEntry {
	return domain.LogEntry{
		ID:            rec.EntryID,
		Timestamp:     rec.Timestamp.UTC(),
		RelayID:       rec.RelayID,
		RelayName:     rec.RelayName,
		Subject:       rec.Subject,
		From:          rec.From,
		Status:        domain.LogStatus(rec.Status),
		ActionSummary: rec.ActionSummary,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
