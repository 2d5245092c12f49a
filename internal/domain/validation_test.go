package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeList(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"Nil input", nil, []string{}},
		{"Trims whitespace", []string{"  a@x.com ", "b@x.com"}, []string{"a@x.com", "b@x.com"}},
		{"Drops blanks", []string{"", "   ", "urgent"}, []string{"urgent"}},
		{"Dedupes preserving first-seen order", []string{"b", "a", "b", "c", "a"}, []string{"b", "a", "c"}},
		{"Dedupes ignoring case", []string{"Invoice", "invoice", " INVOICE "}, []string{"Invoice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeList(tt.input))
		})
	}
}

func TestNewRelay(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Defaults forwardTo to target inbox and active to true", func(t *testing.T) {
		relay, err := NewRelay("r1", CreateRelayInput{
			Name:           "Billing",
			InboundAddress: "billing@relay.dev",
			TargetInbox:    "finance@corp.com",
		}, now)
		require.NoError(t, err)

		assert.Equal(t, "r1", relay.ID)
		assert.Equal(t, []string{"finance@corp.com"}, relay.Actions.ForwardTo)
		assert.True(t, relay.Active)
		assert.Equal(t, now, relay.CreatedAt)
		assert.Equal(t, now, relay.UpdatedAt)
		assert.Equal(t, []string{}, relay.Actions.CC)
		assert.Equal(t, []string{}, relay.Conditions.SubjectKeywords)
	})

	t.Run("Explicit empty forwardTo is kept", func(t *testing.T) {
		relay, err := NewRelay("r1", CreateRelayInput{
			Name:           "Hooks only",
			InboundAddress: "hooks@relay.dev",
			TargetInbox:    "ops@corp.com",
			Actions:        CreateRelayActions{ForwardTo: []string{}},
		}, now)
		require.NoError(t, err)
		assert.Empty(t, relay.Actions.ForwardTo)
	})

	t.Run("Normalizes list fields and honours active override", func(t *testing.T) {
		inactive := false
		relay, err := NewRelay("r2", CreateRelayInput{
			Name:           "  Support ",
			InboundAddress: "support@relay.dev",
			TargetInbox:    "help@corp.com",
			Actions: CreateRelayActions{
				ForwardTo: []string{"a@corp.com", " a@corp.com", ""},
				CC:        []string{"lead@corp.com", "lead@corp.com"},
			},
			Conditions: RelayConditions{
				SubjectKeywords: []string{"help", " ", "HELP", "issue"},
				AllowedSenders:  []string{"@customer.com", "@customer.com"},
			},
			Active: &inactive,
		}, now)
		require.NoError(t, err)

		assert.Equal(t, "Support", relay.Name)
		assert.Equal(t, []string{"a@corp.com"}, relay.Actions.ForwardTo)
		assert.Equal(t, []string{"lead@corp.com"}, relay.Actions.CC)
		assert.Equal(t, []string{"help", "issue"}, relay.Conditions.SubjectKeywords)
		assert.Equal(t, []string{"@customer.com"}, relay.Conditions.AllowedSenders)
		assert.False(t, relay.Active)
	})

	t.Run("Rejects blank required fields", func(t *testing.T) {
		cases := map[string]CreateRelayInput{
			"name":           {Name: "  ", InboundAddress: "a@relay.dev", TargetInbox: "b@corp.com"},
			"inboundAddress": {Name: "n", InboundAddress: "", TargetInbox: "b@corp.com"},
			"targetInbox":    {Name: "n", InboundAddress: "a@relay.dev", TargetInbox: "\t"},
		}
		for field, input := range cases {
			_, err := NewRelay("r", input, now)
			require.Error(t, err, field)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve), field)
			assert.Equal(t, field, ve.Field)
		}
	})

	t.Run("Rejects malformed webhook URL", func(t *testing.T) {
		_, err := NewRelay("r", CreateRelayInput{
			Name:           "n",
			InboundAddress: "a@relay.dev",
			TargetInbox:    "b@corp.com",
			Actions:        CreateRelayActions{WebhookURL: "not a url"},
		}, now)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})
}

func TestUpdateRelayInput_ApplyTo(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	base := func() *Relay {
		relay, err := NewRelay("r1", CreateRelayInput{
			Name:           "Billing",
			Description:    "invoices",
			InboundAddress: "billing@relay.dev",
			TargetInbox:    "finance@corp.com",
			Actions: CreateRelayActions{
				CC:         []string{"cfo@corp.com"},
				WebhookURL: "https://hooks.corp.com/billing",
			},
			Conditions: RelayConditions{
				SubjectKeywords: []string{"invoice"},
				AllowedSenders:  []string{"@billing.com"},
			},
		}, created)
		require.NoError(t, err)
		return relay
	}

	t.Run("Merges only supplied fields", func(t *testing.T) {
		relay := base()
		active := false
		keywords := []string{"receipt", " receipt", "invoice"}
		input := UpdateRelayInput{
			Active:     &active,
			Conditions: &UpdateRelayConditions{SubjectKeywords: &keywords},
		}

		require.NoError(t, input.ApplyTo(relay, updated))

		assert.False(t, relay.Active)
		assert.Equal(t, []string{"receipt", "invoice"}, relay.Conditions.SubjectKeywords)
		assert.Equal(t, []string{"@billing.com"}, relay.Conditions.AllowedSenders)
		assert.Equal(t, "Billing", relay.Name)
		assert.Equal(t, "invoices", relay.Description)
		assert.Equal(t, []string{"finance@corp.com"}, relay.Actions.ForwardTo)
		assert.Equal(t, []string{"cfo@corp.com"}, relay.Actions.CC)
		assert.Equal(t, "https://hooks.corp.com/billing", relay.Actions.WebhookURL)
		assert.Equal(t, created, relay.CreatedAt)
		assert.Equal(t, updated, relay.UpdatedAt)
	})

	t.Run("Partial auto response update keeps other fields", func(t *testing.T) {
		relay := base()
		relay.Actions.AutoResponse = AutoResponse{Enabled: false, Subject: "Thanks", Body: "We got it"}
		enabled := true
		input := UpdateRelayInput{
			Actions: &UpdateRelayActions{AutoResponse: &UpdateAutoResponse{Enabled: &enabled}},
		}

		require.NoError(t, input.ApplyTo(relay, updated))
		assert.Equal(t, AutoResponse{Enabled: true, Subject: "Thanks", Body: "We got it"}, relay.Actions.AutoResponse)
	})

	t.Run("Clearing webhook URL", func(t *testing.T) {
		relay := base()
		empty := ""
		input := UpdateRelayInput{Actions: &UpdateRelayActions{WebhookURL: &empty}}

		require.NoError(t, input.ApplyTo(relay, updated))
		assert.Empty(t, relay.Actions.WebhookURL)
	})

	t.Run("Blank required field leaves relay untouched", func(t *testing.T) {
		relay := base()
		before := *relay.Clone()
		blank := "   "
		active := false
		input := UpdateRelayInput{Name: &blank, Active: &active}

		err := input.ApplyTo(relay, updated)
		require.Error(t, err)

		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "name", ve.Field)
		assert.Equal(t, before, *relay)
	})

	t.Run("Malformed webhook URL is rejected", func(t *testing.T) {
		relay := base()
		bad := "::::"
		input := UpdateRelayInput{Actions: &UpdateRelayActions{WebhookURL: &bad}}

		err := input.ApplyTo(relay, updated)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
		assert.Equal(t, "https://hooks.corp.com/billing", relay.Actions.WebhookURL)
	})
}

func TestInboundMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		message InboundMessage
		field   string
	}{
		{"Valid message", InboundMessage{Subject: "hi", From: "a@x.com", To: "b@y.com"}, ""},
		{"Missing subject", InboundMessage{From: "a@x.com", To: "b@y.com"}, "subject"},
		{"Blank from", InboundMessage{Subject: "hi", From: "  ", To: "b@y.com"}, "from"},
		{"Missing to", InboundMessage{Subject: "hi", From: "a@x.com"}, "to"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.message.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}
