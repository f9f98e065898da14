package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/winbingo/internal/bingo"
	"github.com/m3rciful/winbingo/internal/store"
	"github.com/m3rciful/winbingo/internal/store/storetest"
	"github.com/m3rciful/winbingo/internal/wallet"
)

const testToken = "123456:TEST-token"

func setup(t *testing.T, requireInit bool) (http.Handler, *wallet.Service) {
	t.Helper()
	ledger := wallet.New(store.New(storetest.Open(t)), wallet.Config{OpTimeout: 5 * time.Second})
	ctx := context.Background()
	if _, err := ledger.EnsureUser(ctx, wallet.Profile{ID: 1, Username: "alice", FirstName: "Alice"}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := ledger.Adjust(ctx, 1, decimal.NewFromInt(100), "seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	game := bingo.NewCaller(bingo.Config{}, time.Now(), 1)
	srv := New(Config{
		BotToken:        testToken,
		RequireInitData: requireInit,
		TicketPrice:     decimal.NewFromInt(10),
	}, ledger, game)
	return srv.Handler(), ledger
}

func do(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealthAndSync(t *testing.T) {
	h, _ := setup(t, false)
	if w := do(t, h, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}
	w := do(t, h, http.MethodGet, "/api/game/sync", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("sync = %d", w.Code)
	}
	g := decode[bingo.Game](t, w)
	if g.RoomID != "LIVE-1" || g.Status != bingo.StatusRunning {
		t.Fatalf("game = %+v", g)
	}
	if w := do(t, h, http.MethodGet, "/metrics", "", nil); w.Code != http.StatusOK {
		t.Fatalf("metrics = %d", w.Code)
	}
}

func TestUserEndpoint(t *testing.T) {
	h, _ := setup(t, false)
	cases := []struct {
		path string
		code int
	}{
		{"/api/user/1", http.StatusOK},
		{"/api/user/999", http.StatusNotFound},
		{"/api/user/abc", http.StatusBadRequest},
	}
	for _, tc := range cases {
		if w := do(t, h, http.MethodGet, tc.path, "", nil); w.Code != tc.code {
			t.Fatalf("%s = %d, want %d", tc.path, w.Code, tc.code)
		}
	}
	u := decode[userResponse](t, do(t, h, http.MethodGet, "/api/user/1", "", nil))
	if u.ID != 1 || u.Balance != "100.00" || u.Username != "alice" {
		t.Fatalf("user = %+v", u)
	}
}

func TestBuyTicket(t *testing.T) {
	h, ledger := setup(t, false)

	w := do(t, h, http.MethodPost, "/api/game/buy-ticket", `{"tid":1,"price":"25"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("buy = %d %s", w.Code, w.Body.String())
	}
	if got := decode[buyTicketResponse](t, w); got.Balance != "75.00" || got.RoomID != "LIVE-1" {
		t.Fatalf("buy response = %+v", got)
	}

	w = do(t, h, http.MethodPost, "/api/game/buy-ticket", `{"tid":1}`, nil)
	if got := decode[buyTicketResponse](t, w); got.Balance != "65.00" {
		t.Fatalf("default price response = %+v", got)
	}

	w = do(t, h, http.MethodPost, "/api/game/buy-ticket", `{"tid":1,"price":1000}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("overdraft = %d", w.Code)
	}
	if body := decode[map[string]string](t, w); body["error"] != "insufficient balance" {
		t.Fatalf("overdraft body = %v", body)
	}

	if w := do(t, h, http.MethodPost, "/api/game/buy-ticket", `{"tid":42,"price":5}`, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown user = %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/game/buy-ticket", `not json`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad body = %d", w.Code)
	}

	entries, err := ledger.History(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 3 || entries[0].Reason != wallet.ReasonBingoTicket {
		t.Fatalf("entries = %+v", entries)
	}

	hist := decode[[]entryResponse](t, do(t, h, http.MethodGet, "/api/history/1", "", nil))
	if len(hist) != 3 || hist[0].Amount != "-10.00" {
		t.Fatalf("history = %+v", hist)
	}
}

func signedHeader(userID int64, at time.Time) http.Header {
	vals := url.Values{}
	vals.Set("auth_date", strconv.FormatInt(at.Unix(), 10))
	vals.Set("query_id", "AAE")
	vals.Set("user", `{"id":`+strconv.FormatInt(userID, 10)+`,"first_name":"Alice"}`)
	return http.Header{InitDataHeader: []string{SignInitData(vals, testToken)}}
}

func TestInitDataRequired(t *testing.T) {
	h, _ := setup(t, true)

	if w := do(t, h, http.MethodGet, "/api/user/1", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no header = %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/user/1", "", signedHeader(2, time.Now())); w.Code != http.StatusForbidden {
		t.Fatalf("other user = %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/user/1", "", signedHeader(1, time.Now())); w.Code != http.StatusOK {
		t.Fatalf("signed = %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/game/buy-ticket", `{"tid":1}`, signedHeader(2, time.Now())); w.Code != http.StatusForbidden {
		t.Fatalf("buy for other user = %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/game/sync", "", nil); w.Code != http.StatusOK {
		t.Fatalf("sync stays public, got %d", w.Code)
	}
}

func TestValidateInitData(t *testing.T) {
	now := time.Now()
	good := signedHeader(7, now).Get(InitDataHeader)

	if id, err := ValidateInitData(good, testToken, now, time.Hour); err != nil || id != 7 {
		t.Fatalf("valid = %d, %v", id, err)
	}
	if _, err := ValidateInitData(good, "999:other", now, time.Hour); err != errInitDataHash {
		t.Fatalf("wrong token err = %v", err)
	}
	if _, err := ValidateInitData(good, testToken, now.Add(2*time.Hour), time.Hour); err != errInitDataExpired {
		t.Fatalf("expired err = %v", err)
	}
	tampered := strings.Replace(good, "Alice", "Mallory", 1)
	if _, err := ValidateInitData(tampered, testToken, now, time.Hour); err != errInitDataHash {
		t.Fatalf("tampered err = %v", err)
	}
	if _, err := ValidateInitData("", testToken, now, time.Hour); err != errInitDataMissing {
		t.Fatalf("empty err = %v", err)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{wallet.ErrInvalidAmount, http.StatusBadRequest},
		{wallet.ErrUserNotFound, http.StatusNotFound},
		{wallet.ErrOutcomeUnknown, http.StatusConflict},
		{wallet.ErrForbidden, http.StatusForbidden},
		{wallet.ErrUnavailable, http.StatusServiceUnavailable},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
