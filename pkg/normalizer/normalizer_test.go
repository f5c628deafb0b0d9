package normalizer_test

import (
	"encoding/json"
	"testing"

	"github.com/effective-security/toolrouter/pkg/normalizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_TicketFromString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		reply string
		exp   string
	}{
		{"string_fields", `{"Ticket No.": "E-102", "Classification": "Hardware Damage"}`, "Ticket No.: E-102, Classification: Hardware Damage"},
		{"number_field", `{"Ticket No.": 12345, "Classification": "Refund"}`, "Ticket No.: 12345, Classification: Refund"},
		{"large_number", `{"Ticket No.": 123456789012345678901, "Classification": "Refund"}`, "Ticket No.: 123456789012345678901, Classification: Refund"},
		{"extra_fields", `{"Ticket No.": "S-1", "Classification": "Shoes", "Priority": "high"}`, "Ticket No.: S-1, Classification: Shoes"},
		{"double_encoded", `"{\"Ticket No.\": \"T-8\", \"Classification\": \"Bag\"}"`, "Ticket No.: T-8, Classification: Bag"},
		{"null_field", `{"Ticket No.": null, "Classification": "Unknown"}`, "Ticket No.: , Classification: Unknown"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := normalizer.Normalize(tc.reply)
			assert.Equal(t, normalizer.KindTicket, res.Kind)
			require.NotNil(t, res.Ticket)
			assert.NoError(t, res.Err)
			assert.Equal(t, tc.exp, res.Text)
			assert.Equal(t, tc.exp, res.String())
		})
	}
}

func TestNormalize_ObjectMatchesString(t *testing.T) {
	t.Parallel()
	encoded := `{"Ticket No.": "E-102", "Classification": "Hardware Damage"}`

	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(encoded), &obj))

	fromString := normalizer.Normalize(encoded)
	fromObject := normalizer.Normalize(obj)
	fromStrMap := normalizer.Normalize(map[string]string{"Ticket No.": "E-102", "Classification": "Hardware Damage"})
	fromRecord := normalizer.Normalize(normalizer.TicketRecord{TicketNo: "E-102", Classification: "Hardware Damage"})

	assert.Equal(t, fromString, fromObject)
	assert.Equal(t, fromString, fromStrMap)
	assert.Equal(t, fromString, fromRecord)
	assert.Equal(t, &normalizer.TicketRecord{TicketNo: "E-102", Classification: "Hardware Damage"}, fromObject.Ticket)
}

func TestNormalize_FallbackIdentity(t *testing.T) {
	t.Parallel()
	for _, text := range []string{
		"Thanks for reaching out, your order ships tomorrow.",
		"",
		"{not json",
		"Ticket No.: 5, Classification: X",
		"  leading and trailing spaces  ",
		"```\nnot json in a fence\n```",
		"```json\n{\"note\": \"see attached\"}\n```",
		"```\n42\n```",
		"```json\n{\"Ticket No.\": \"T-7\", \"Classification\": \"Luggage\"}\n```",
	} {
		res := normalizer.Normalize(text)
		assert.Equal(t, normalizer.KindFallback, res.Kind, text)
		assert.Equal(t, text, res.Text)
		assert.Nil(t, res.Ticket)
		assert.NoError(t, res.Err)
	}
}

func TestNormalize_ShapeError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		reply any
		exp   string
	}{
		{"missing_field", `{"Ticket No.": "E-1"}`, `The provider answer could not be structured: {"Ticket No.":"E-1"}`},
		{"array", `[1,2,3]`, `The provider answer could not be structured: [1,2,3]`},
		{"number", `42`, `The provider answer could not be structured: 42`},
		{"object_no_fields", map[string]any{"answer": "x"}, `The provider answer could not be structured: {"answer":"x"}`},
		{"nil", nil, `The provider answer could not be structured: null`},
		{"bool", true, `The provider answer could not be structured: true`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := normalizer.Normalize(tc.reply)
			assert.Equal(t, normalizer.KindShapeError, res.Kind)
			assert.ErrorIs(t, res.Err, normalizer.ErrUnexpectedReplyShape)
			assert.Equal(t, tc.exp, res.Text)
		})
	}
}

func TestNormalizeBytes(t *testing.T) {
	t.Parallel()
	res := normalizer.NormalizeBytes([]byte(`{"Ticket No.": "B-3", "Classification": "Ball"}`))
	assert.Equal(t, normalizer.KindTicket, res.Kind)
	assert.Equal(t, "Ticket No.: B-3, Classification: Ball", res.Text)

	res = normalizer.NormalizeBytes([]byte(`"{\"Ticket No.\": \"B-4\", \"Classification\": \"Racket\"}"`))
	assert.Equal(t, "Ticket No.: B-4, Classification: Racket", res.Text)

	res = normalizer.NormalizeBytes([]byte("plain answer"))
	assert.Equal(t, normalizer.KindFallback, res.Kind)
	assert.Equal(t, "plain answer", res.Text)
}
