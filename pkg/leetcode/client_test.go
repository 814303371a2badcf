package leetcode_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/saralaufeyson/leetcode-team-dashboard/pkg/leetcode"
)

const aliceBody = `{"data":{"matchedUser":{
	"username":"alice",
	"profile":{"realName":"Alice A","userAvatar":"https://a/x.png","ranking":42},
	"submitStatsGlobal":{"acSubmissionNum":[
		{"difficulty":"All","count":8,"submissions":20},
		{"difficulty":"Easy","count":5,"submissions":10},
		{"difficulty":"Medium","count":3,"submissions":10}
	]},
	"userCalendar":{"submissionCalendar":"{\"1700000000\": 4}"}
}}}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...leetcode.Option) *leetcode.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]leetcode.Option{leetcode.WithLogger(discardLogger())}, opts...)
	cli, err := leetcode.New(srv.URL, opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return cli
}

func TestFetchSendsQueryAndNormalizes(t *testing.T) {
	var gotUsername string
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		var body struct {
			Query     string            `json:"query"`
			Variables map[string]string `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotUsername = body.Variables["username"]
		_, _ = io.WriteString(w, aliceBody)
	})

	snap, err := cli.Fetch(context.Background(), "alice")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotUsername != "alice" {
		t.Fatalf("expected username variable alice, got %q", gotUsername)
	}
	if snap.Username != "alice" || snap.RealName != "Alice A" || snap.Ranking != 42 {
		t.Fatalf("unexpected identity fields: %+v", snap)
	}
	// the aggregate row is summed along with the tiers
	if snap.TotalSolved != 16 {
		t.Fatalf("expected total solved 16, got %d", snap.TotalSolved)
	}
	if snap.Easy != 5 || snap.Medium != 3 || snap.Hard != 0 {
		t.Fatalf("unexpected tier counts: %d/%d/%d", snap.Easy, snap.Medium, snap.Hard)
	}
	if snap.TotalAttempted == nil || *snap.TotalAttempted != 40 {
		t.Fatalf("expected attempted 40, got %v", snap.TotalAttempted)
	}
	if snap.Calendar["2023-11-14"] != 4 {
		t.Fatalf("unexpected calendar %v", snap.Calendar)
	}
}

func TestFetchToleratesNonStringCalendar(t *testing.T) {
	calendars := map[string]string{
		"object": `{"1700000000":4}`,
		"number": `17`,
		"array":  `[1,2]`,
	}
	for name, calendar := range calendars {
		t.Run(name, func(t *testing.T) {
			cli := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"data":{"matchedUser":{
					"username":"bob",
					"submitStatsGlobal":{"acSubmissionNum":[{"difficulty":"Easy","count":3}]},
					"userCalendar":{"submissionCalendar":`+calendar+`}
				}}}`)
			})

			snap, err := cli.Fetch(context.Background(), "bob")
			if err != nil {
				t.Fatalf("calendar shape must not fail the fetch: %v", err)
			}
			if snap.TotalSolved != 3 || snap.Easy != 3 {
				t.Fatalf("unexpected counts %+v", snap)
			}
			if len(snap.Calendar) != 0 {
				t.Fatalf("expected empty calendar, got %v", snap.Calendar)
			}
		})
	}
}

func TestFetchNotFound(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"non-success status": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
		"server error status": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"null matched user": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"data":{"matchedUser":null},"errors":[{"message":"That user does not exist."}]}`)
		},
		"missing data node": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{}`)
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			cli := newTestClient(t, handler)
			_, err := cli.Fetch(context.Background(), "ghost")
			if !errors.Is(err, leetcode.ErrProfileNotFound) {
				t.Fatalf("expected ErrProfileNotFound, got %v", err)
			}
		})
	}
}

func TestFetchMalformedEnvelope(t *testing.T) {
	cli := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html>maintenance</html>`)
	})

	_, err := cli.Fetch(context.Background(), "alice")
	var upstream *leetcode.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.ExternalID != "alice" {
		t.Fatalf("unexpected external id %q", upstream.ExternalID)
	}
	if errors.Is(err, leetcode.ErrProfileNotFound) {
		t.Fatal("malformed envelope must not read as not found")
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, leetcode.WithTimeout(20*time.Millisecond))
	defer close(release)

	_, err := cli.Fetch(context.Background(), "slow")
	var upstream *leetcode.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestFetchCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	status := http.StatusOK
	cli := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = io.WriteString(w, aliceBody)
		}
	}, leetcode.WithMetrics(reg))

	_, _ = cli.Fetch(context.Background(), "alice")
	status = http.StatusNotFound
	_, _ = cli.Fetch(context.Background(), "ghost")

	if got := testutil.CollectAndCount(reg, "teamboard_leetcode_fetches_total"); got != 2 {
		t.Fatalf("expected two outcome series, got %d", got)
	}
}

func TestNewRejectsBadEndpoint(t *testing.T) {
	if _, err := leetcode.New("ftp://leetcode.example"); err == nil {
		t.Fatal("expected error for non-http endpoint")
	}
	cli, err := leetcode.New("")
	if err != nil || cli == nil {
		t.Fatalf("expected default endpoint to be accepted, got %v", err)
	}
}
