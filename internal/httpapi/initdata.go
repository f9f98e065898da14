package httpapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/winbingo/core/logger"
)

// InitDataHeader carries Telegram.WebApp.initData from the mini app.
const InitDataHeader = "X-Telegram-Init-Data"

var (
	errInitDataMissing = errors.New("init data missing")
	errInitDataHash    = errors.New("init data signature mismatch")
	errInitDataExpired = errors.New("init data expired")
	errInitDataUser    = errors.New("init data has no user")
)

type ctxKey struct{}

// ValidateInitData checks the WebApp signature: the secret is
// HMAC-SHA256("WebAppData", token) and the hash covers every other field,
// sorted and joined by newlines. It returns the signed user id.
func ValidateInitData(raw, token string, now time.Time, maxAge time.Duration) (int64, error) {
	if raw == "" {
		return 0, errInitDataMissing
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return 0, err
	}
	hash := vals.Get("hash")
	if hash == "" {
		return 0, errInitDataHash
	}

	pairs := make([]string, 0, len(vals))
	for k := range vals {
		if k == "hash" {
			continue
		}
		pairs = append(pairs, k+"="+vals.Get(k))
	}
	sort.Strings(pairs)

	secret := hmacSHA256([]byte("WebAppData"), []byte(token))
	want := hmacSHA256(secret, []byte(strings.Join(pairs, "\n")))
	got, err := hex.DecodeString(hash)
	if err != nil || !hmac.Equal(got, want) {
		return 0, errInitDataHash
	}

	if maxAge > 0 {
		ts, err := strconv.ParseInt(vals.Get("auth_date"), 10, 64)
		if err != nil || now.Sub(time.Unix(ts, 0)) > maxAge {
			return 0, errInitDataExpired
		}
	}

	var user struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(vals.Get("user")), &user); err != nil || user.ID == 0 {
		return 0, errInitDataUser
	}
	return user.ID, nil
}

// SignInitData signs vals the way Telegram does. Used by tests and local tooling.
func SignInitData(vals url.Values, token string) string {
	pairs := make([]string, 0, len(vals))
	for k := range vals {
		pairs = append(pairs, k+"="+vals.Get(k))
	}
	sort.Strings(pairs)
	secret := hmacSHA256([]byte("WebAppData"), []byte(token))
	out := url.Values{}
	for k := range vals {
		out.Set(k, vals.Get(k))
	}
	out.Set("hash", hex.EncodeToString(hmacSHA256(secret, []byte(strings.Join(pairs, "\n")))))
	return out.Encode()
}

func hmacSHA256(key, msg []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(msg)
	return m.Sum(nil)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.RequireInitData {
			next.ServeHTTP(w, r)
			return
		}
		id, err := ValidateInitData(r.Header.Get(InitDataHeader), s.cfg.BotToken, s.now(), s.cfg.InitDataMaxAge)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		ctx := logger.WithUser(context.WithValue(r.Context(), ctxKey{}, id), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authorized rejects requests for a tid other than the signed user.
func (s *Server) authorized(w http.ResponseWriter, r *http.Request, tid int64) bool {
	if !s.cfg.RequireInitData {
		return true
	}
	id, _ := r.Context().Value(ctxKey{}).(int64)
	if id != tid {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}
