package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func cookieRequest(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestSessionRoundTrip(t *testing.T) {
	sm, err := NewSessionManager(testKey, time.Hour, false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Create(rec, &Session{Email: "ada@example.com", WorkgroupID: 3, ReadOnly: true}))

	got, err := sm.Get(cookieRequest(rec))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, 3, got.WorkgroupID)
	assert.False(t, got.Editable())
}

func TestSessionExpired(t *testing.T) {
	sm, err := NewSessionManager(testKey, time.Minute, false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Create(rec, &Session{Email: "ada@example.com"}))

	sm.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = sm.Get(cookieRequest(rec))
	assert.Error(t, err)
}

func TestSessionTampered(t *testing.T) {
	sm, err := NewSessionManager(testKey, time.Hour, false)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"})
	_, err = sm.Get(req)
	assert.Error(t, err)

	_, err = sm.Get(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNoCookie)
}

func TestSessionKeyLength(t *testing.T) {
	_, err := NewSessionManager([]byte("short"), time.Hour, false)
	assert.Error(t, err)
}

func TestEditable(t *testing.T) {
	assert.True(t, (&Session{}).Editable())
	assert.False(t, (&Session{ReadOnly: true}).Editable())
	assert.True(t, (&Session{ReadOnly: true, IsAdmin: true}).Editable())
	assert.False(t, (*Session)(nil).Editable())
}

func TestStateValidate(t *testing.T) {
	ss, err := NewStateStore(testKey, false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	data, err := ss.Generate(rec, "/?action=provision_l2vpn")
	require.NoError(t, err)

	got, err := ss.Validate(cookieRequest(rec), data.State)
	require.NoError(t, err)
	assert.Equal(t, data.Nonce, got.Nonce)
	assert.Equal(t, "/?action=provision_l2vpn", got.ReturnTo)

	_, err = ss.Validate(cookieRequest(rec), "forged")
	assert.Error(t, err)
}

func TestValidateClaims(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		domains []string
		wantErr bool
	}{
		{"no restriction", "a@anything.net", nil, false},
		{"allowed", "a@Example.com", []string{"example.com"}, false},
		{"denied", "a@other.com", []string{"example.com"}, true},
		{"missing email", "", nil, true},
		{"malformed", "nobody", []string{"example.com"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateClaims(&Claims{Email: tt.email}, tt.domains)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
