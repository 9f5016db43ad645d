package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// InitDataMaxAge is how long Mini App launch data stays valid.
const InitDataMaxAge = 24 * time.Hour

var (
	ErrInitDataMissing = errors.New("no telegram init data")
	ErrInitDataHash    = errors.New("invalid telegram init data hash")
	ErrInitDataExpired = errors.New("telegram init data expired")
)

// TelegramUser is the user object embedded in Mini App init data.
type TelegramUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

// TelegramValidator checks Mini App init data signed with a bot token.
type TelegramValidator struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewTelegramValidator(botToken string) *TelegramValidator {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return &TelegramValidator{secret: mac.Sum(nil), maxAge: InitDataMaxAge, now: time.Now}
}

// Validate verifies the hash over the sorted key=value lines and the auth_date
// age, then returns the embedded user.
func (v *TelegramValidator) Validate(initData string) (*TelegramUser, error) {
	if initData == "" {
		return nil, ErrInitDataMissing
	}
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse init data: %w", err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrInitDataHash
	}
	want, err := hex.DecodeString(hash)
	if err != nil {
		return nil, ErrInitDataHash
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(dataCheckString(values)))
	if !hmac.Equal(want, mac.Sum(nil)) {
		return nil, ErrInitDataHash
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, ErrInitDataExpired
	}
	if v.now().Sub(time.Unix(authDate, 0)) > v.maxAge {
		return nil, ErrInitDataExpired
	}

	raw := values.Get("user")
	if raw == "" {
		return nil, errors.New("no user in telegram init data")
	}
	var u TelegramUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("failed to decode telegram user: %w", err)
	}
	if u.ID == 0 {
		return nil, errors.New("telegram user has no id")
	}
	return &u, nil
}

func dataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + values.Get(k)
	}
	return strings.Join(lines, "\n")
}

// SignInitData builds init data for values signed with botToken. Used by
// tests and local tooling that impersonate the Telegram client.
func SignInitData(botToken string, values url.Values) string {
	v := NewTelegramValidator(botToken)
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(dataCheckString(values)))

	signed := url.Values{}
	for k, vs := range values {
		signed[k] = vs
	}
	signed.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return signed.Encode()
}
