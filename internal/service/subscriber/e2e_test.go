package subscriber

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/subscriber-gateway/internal/config"
	"github.com/ignite/subscriber-gateway/internal/pkg/logger"
	"github.com/ignite/subscriber-gateway/internal/propeller"
)

const defaultSubscribers = `{"subscribers":[{"id":1,"emailAddress":"a@x.com","marketingConsent":true}]}`

// crmServer fakes the CRM over HTTP so the workflow runs through the real
// propeller client. An empty subscribers body makes the listing fail with 500.
func crmServer(t *testing.T, subscribers string, createStatus int) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var created []map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/api/subscribers", func(w http.ResponseWriter, r *http.Request) {
		if subscribers == "" {
			http.Error(w, "unavailable", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(subscribers))
	})
	mux.HandleFunc("/api/subscriber/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/subscriber/" {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		created = append(created, body)
		if createStatus != http.StatusOK {
			w.WriteHeader(createStatus)
			return
		}
		w.Write([]byte(`{"id":2,"emailAddress":"` + body["emailAddress"].(string) + `"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &created
}

func newE2EService(t *testing.T, server *httptest.Server) (*Service, *MemoryIndex) {
	t.Helper()
	restore := logger.SetOutput(io.Discard)
	t.Cleanup(restore)
	client := propeller.NewClient(config.PropellerConfig{BaseURL: server.URL, APIToken: "t", TimeoutSeconds: 5})
	idx := NewMemoryIndex()
	return NewService(client, idx, WithClock(func() time.Time { return fixedNow })), idx
}

func TestE2E_CreateSuccess(t *testing.T) {
	server, created := crmServer(t, defaultSubscribers, http.StatusOK)
	svc, idx := newE2EService(t, server)

	out := svc.Create(context.Background(), validInput())

	require.True(t, out.OK(), out.Message)
	assert.Equal(t, "Subscriber created Successfully", out.Message)
	require.Len(t, *created, 1)
	assert.Equal(t, true, (*created)[0]["marketingConsent"])
	assertIndexSize(t, idx, 1)
}

func TestE2E_CreateDuplicate(t *testing.T) {
	server, created := crmServer(t, defaultSubscribers, http.StatusOK)
	svc, _ := newE2EService(t, server)

	in := validInput()
	in.EmailAddress = "a@x.com"
	out := svc.Create(context.Background(), in)

	assert.Equal(t, KindValidationFailed, out.Kind)
	assert.Empty(t, *created)
}

func TestE2E_CreateActionFailed(t *testing.T) {
	server, created := crmServer(t, defaultSubscribers, http.StatusInternalServerError)
	svc, idx := newE2EService(t, server)

	out := svc.Create(context.Background(), validInput())

	assert.Equal(t, KindActionFailed, out.Kind)
	assert.Equal(t, "Could not create the subscriber", out.Message)
	assert.Len(t, *created, 1)
	assertIndexSize(t, idx, 0)
}

func TestE2E_SubscriberListingDownCreatesNothing(t *testing.T) {
	server, created := crmServer(t, "", http.StatusOK)
	svc, idx := newE2EService(t, server)

	out := svc.Create(context.Background(), validInput())

	assert.Equal(t, KindActionFailed, out.Kind)
	assert.ErrorIs(t, out.Err, ErrUpstreamUnavailable)
	assert.Empty(t, *created)
	assertIndexSize(t, idx, 0)
}

func TestE2E_DuplicateFoundDespiteMalformedRecord(t *testing.T) {
	server, created := crmServer(t, `{"subscribers":[
		{"id":1,"emailAddress":"a@x.com","marketingConsent":true},
		{"id":2,"emailAddress":"z@x.com","marketingConsent":1},
		{"id":{"nested":true},"emailAddress":"broken@x.com"}
	]}`, http.StatusOK)
	svc, _ := newE2EService(t, server)

	for _, email := range []string{"a@x.com", "z@x.com"} {
		in := validInput()
		in.EmailAddress = email
		out := svc.Create(context.Background(), in)

		require.Equal(t, KindValidationFailed, out.Kind, email)
		assert.True(t, out.Errors.Has("emailAddress"), email)
	}
	assert.Empty(t, *created)
}

func TestE2E_MalformedEnvelopeCreatesNothing(t *testing.T) {
	server, created := crmServer(t, `{"subscribers":{"id":1}}`, http.StatusOK)
	svc, _ := newE2EService(t, server)

	out := svc.Create(context.Background(), validInput())

	assert.Equal(t, KindActionFailed, out.Kind)
	assert.Empty(t, *created)
}
