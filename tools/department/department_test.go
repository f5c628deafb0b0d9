package department_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/pkg/llmutils"
	"github.com/effective-security/toolrouter/pkg/normalizer"
	"github.com/effective-security/toolrouter/pkg/provider"
	"github.com/effective-security/toolrouter/tools"
	"github.com/effective-security/toolrouter/tools/department"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newClient(t *testing.T, reply string, status int) (*provider.Client, *[]string) {
	var got []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, gjson.GetBytes(body, "messages.0.content").String())
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)

	client := provider.New(
		provider.WithProvider(provider.Config{ID: "sports", BaseURL: server.URL, Token: "s"}),
		provider.WithProvider(provider.Config{ID: "electronics", BaseURL: server.URL, Token: "e"}),
		provider.WithProvider(provider.Config{ID: "travel", BaseURL: server.URL}),
		provider.WithHTTPClient(server.Client()),
	)
	return client, &got
}

func TestParameters(t *testing.T) {
	sports, err := department.New(department.Sports, nil)
	require.NoError(t, err)
	travel, err := department.New(department.Travel, nil)
	require.NoError(t, err)

	assert.Equal(t, "call_sports_dept", sports.Name())
	assert.Equal(t, "sports", sports.ProviderID())
	assert.Equal(t, "Call this function for queries related to sports gear and clothes", sports.Description())

	exp := `{
	"properties": {
		"customerQuery": {
			"type": "string",
			"title": "Customer Query",
			"description": "The customer query related to sports gear"
		}
	},
	"type": "object",
	"required": [
		"customerQuery"
	]
}`
	assert.Equal(t, exp, llmutils.ToJSONIndent(sports.Parameters()))
	// descriptions are per department
	assert.Contains(t, llmutils.ToJSON(travel.Parameters()), "The customer query related to travel bags and suitcases")
	assert.NotContains(t, llmutils.ToJSON(sports.Parameters()), "travel")

	def, err := tools.Definition(sports)
	require.NoError(t, err)
	assert.Equal(t, "call_sports_dept", def.Function.Name)

	_, err = department.New(department.Spec{Name: "x"}, nil)
	assert.EqualError(t, err, "department tool requires name and provider")
}

func TestCall(t *testing.T) {
	ctx := context.Background()
	client, got := newClient(t, `{"completion":"{\"Ticket No.\": 4521, \"Classification\": \"Laptop repair\"}"}`, http.StatusOK)

	tool, err := department.New(department.Electronics, client)
	require.NoError(t, err)

	out, err := tool.Call(ctx, `{"customerQuery":"My laptop screen is broken"}`)
	require.NoError(t, err)
	assert.Equal(t, "Ticket No.: 4521, Classification: Laptop repair", out)
	assert.Equal(t, []string{"My laptop screen is broken"}, *got)

	res, err := tool.Run(ctx, &department.Request{CustomerQuery: "again"})
	require.NoError(t, err)
	assert.Equal(t, normalizer.KindTicket, res.Kind)
	require.NotNil(t, res.Ticket)
	assert.Equal(t, "4521", res.Ticket.TicketNo)
}

func TestCall_Fallback(t *testing.T) {
	client, _ := newClient(t, `{"completion":"Our team will call you back today."}`, http.StatusOK)
	tool, err := department.New(department.Sports, client)
	require.NoError(t, err)

	out, err := tool.Call(context.Background(), `{"customerQuery":"running shoes"}`)
	require.NoError(t, err)
	assert.Equal(t, "Our team will call you back today.", out)
}

func TestCall_Errors(t *testing.T) {
	ctx := context.Background()
	client, got := newClient(t, `{"error":"boom"}`, http.StatusInternalServerError)

	tool, err := department.New(department.Sports, client)
	require.NoError(t, err)

	_, err = tool.Call(ctx, `not json`)
	assert.True(t, errors.Is(err, tools.ErrInvalidToolArguments))
	_, err = tool.Call(ctx, `{"customerQuery":""}`)
	assert.True(t, errors.Is(err, tools.ErrInvalidToolArguments))
	_, err = tool.Call(ctx, `{"query":"wrong name"}`)
	assert.True(t, errors.Is(err, tools.ErrInvalidToolArguments))
	assert.Empty(t, *got)

	_, err = tool.Run(ctx, &department.Request{})
	assert.True(t, errors.Is(err, tools.ErrInvalidToolArguments))

	_, err = tool.Call(ctx, `{"customerQuery":"bike"}`)
	require.Error(t, err)
	var herr *provider.ProviderHTTPError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, http.StatusInternalServerError, herr.Status)
	assert.Equal(t, "call_sports_dept failed: sports returned unexpected status code: 500", err.Error())

	travel, err := department.New(department.Travel, client)
	require.NoError(t, err)
	_, err = travel.Call(ctx, `{"customerQuery":"suitcase"}`)
	assert.True(t, errors.Is(err, provider.ErrMissingCredential))
	assert.Len(t, *got, 1)
}
