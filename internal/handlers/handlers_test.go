package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/idcard/backend/internal/auth"
	"github.com/idcard/backend/internal/middleware"
	"github.com/idcard/backend/internal/models"
	"github.com/idcard/backend/internal/services"
	"github.com/idcard/backend/internal/vcard"
)

type recordingCache struct {
	lists       map[string][]models.Card
	hits        int
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{lists: make(map[string][]models.Card)}
}

func (c *recordingCache) GetUserCards(_ context.Context, userID string) ([]models.Card, bool) {
	list, ok := c.lists[userID]
	if ok {
		c.hits++
		return append([]models.Card(nil), list...), true
	}
	return nil, false
}

func (c *recordingCache) SetUserCards(_ context.Context, userID string, list []models.Card) {
	c.lists[userID] = append([]models.Card(nil), list...)
}

func (c *recordingCache) InvalidateUser(_ context.Context, userID string) {
	delete(c.lists, userID)
	c.invalidated = append(c.invalidated, userID)
}

type fakeCaptcha struct{ ok bool }

func (f fakeCaptcha) Verify(context.Context, string, string) (bool, string, error) {
	if f.ok {
		return true, "", nil
	}
	return false, "invalid-input-response", nil
}

type fakeMailer struct {
	sent []services.ContactMessage
	err  error
}

func (m *fakeMailer) SendContactMessage(_ context.Context, msg services.ContactMessage) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type testEnv struct {
	t      *testing.T
	router http.Handler
	cards  *services.MemoryCardService
	cache  *recordingCache
	mailer *fakeMailer
}

func newTestEnv(t *testing.T, captchaOK bool) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	users, err := services.NewMemoryUserService("")
	require.NoError(t, err)
	cardService, err := services.NewMemoryCardService("")
	require.NoError(t, err)
	dir := t.TempDir()
	images, err := services.NewLocalImageStore(filepath.Join(dir, "uploads"), dir)
	require.NoError(t, err)

	cache := newRecordingCache()
	mailer := &fakeMailer{}
	tokens := auth.NewTokenIssuer("test-secret", 15*time.Minute, time.Hour)
	exporter, err := vcard.NewExporter(nil, images, "http://cards.test", logger)
	require.NoError(t, err)

	authHandler := NewAuthHandler(users, tokens, false, logger)
	router := NewRouter(RouterDeps{
		Auth:     authHandler,
		Cards:    NewCardHandler(cardService, users, cache, exporter, "http://cards.test", logger),
		Images:   NewImageHandler(images, 1, logger),
		Accounts: NewAccountHandler(services.NewAccountService(users, cardService, images, cache, logger), authHandler, logger),
		Contact:  NewContactHandler(cardService, users, fakeCaptcha{ok: captchaOK}, mailer, logger),
		Verifier: tokens,
		Logger:   logger,
	})

	return &testEnv{t: t, router: router, cards: cardService, cache: cache, mailer: mailer}
}

func (e *testEnv) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
	return env
}

func (e *testEnv) register(userName string) models.AuthResponse {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/auth/register", models.RegisterRequest{
		FullName: "Test " + userName,
		UserName: userName,
		Email:    userName + "@example.com",
		Password: "password123",
	}, "")
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp models.AuthResponse
	decode(e.t, rec, &resp)
	return resp
}

func (e *testEnv) createCard(token string, t models.CardType, job string) models.Card {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/cards", models.CardRequest{CardType: t, Job: job}, token)
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	var card models.Card
	decode(e.t, rec, &card)
	return card
}

func TestAuth_RegisterLoginRefreshLogout(t *testing.T) {
	env := newTestEnv(t, true)

	session := env.register("ada")
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, int64(900), session.ExpiresIn)
	assert.Equal(t, "ada", session.User.UserName)

	dup := env.do(http.MethodPost, "/api/auth/register", models.RegisterRequest{
		FullName: "Other", UserName: "ADA", Email: "other@example.com", Password: "password123",
	}, "")
	assert.Equal(t, http.StatusConflict, dup.Code)

	bad := env.do(http.MethodPost, "/api/auth/login", models.LoginRequest{Email: "ada@example.com", Password: "wrong-pass"}, "")
	assert.Equal(t, http.StatusUnauthorized, bad.Code)

	login := env.do(http.MethodPost, "/api/auth/login", models.LoginRequest{Email: "ada@example.com", Password: "password123"}, "")
	require.Equal(t, http.StatusOK, login.Code)
	cookies := map[string]*http.Cookie{}
	for _, c := range login.Result().Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, middleware.AccessCookieName)
	require.Contains(t, cookies, middleware.RefreshCookieName)
	assert.True(t, cookies[middleware.AccessCookieName].HttpOnly)
	assert.Equal(t, "/api/auth", cookies[middleware.RefreshCookieName].Path)

	refreshReq := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	refreshReq.AddCookie(cookies[middleware.RefreshCookieName])
	refreshRec := httptest.NewRecorder()
	env.router.ServeHTTP(refreshRec, refreshReq)
	require.Equal(t, http.StatusOK, refreshRec.Code, refreshRec.Body.String())

	viaBody := env.do(http.MethodPost, "/api/auth/refresh", models.RefreshRequest{RefreshToken: session.RefreshToken}, "")
	assert.Equal(t, http.StatusOK, viaBody.Code)

	accessAsRefresh := env.do(http.MethodPost, "/api/auth/refresh", models.RefreshRequest{RefreshToken: session.AccessToken}, "")
	assert.Equal(t, http.StatusUnauthorized, accessAsRefresh.Code)

	logout := env.do(http.MethodPost, "/api/auth/logout", nil, "")
	require.Equal(t, http.StatusOK, logout.Code)
	for _, c := range logout.Result().Cookies() {
		assert.Empty(t, c.Value)
		assert.True(t, c.MaxAge < 0)
	}
}

func TestAuth_RegisterValidation(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(http.MethodPost, "/api/auth/register", models.RegisterRequest{UserName: "a", Email: "nope"}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec, nil)
	assert.False(t, body.Success)
	assert.Contains(t, body.Errors, "full_name")
	assert.Contains(t, body.Errors, "user_name")
	assert.Contains(t, body.Errors, "email")
	assert.Contains(t, body.Errors, "password")

	garbage := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{"))
	garbageRec := httptest.NewRecorder()
	env.router.ServeHTTP(garbageRec, garbage)
	assert.Equal(t, http.StatusBadRequest, garbageRec.Code)
}

func TestAuth_Profile(t *testing.T) {
	env := newTestEnv(t, true)
	session := env.register("grace")

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/auth/profile", nil, "").Code)

	name := "Grace Hopper"
	avatar := "/uploads/abc.png"
	rec := env.do(http.MethodPut, "/api/auth/profile", models.UpdateProfileRequest{FullName: &name, Avatar: &avatar}, session.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var user models.User
	decode(t, env.do(http.MethodGet, "/api/auth/profile", nil, session.AccessToken), &user)
	assert.Equal(t, "Grace Hopper", user.FullName)
	assert.Equal(t, "/uploads/abc.png", user.Avatar)

	badAvatar := "ftp://x"
	assert.Equal(t, http.StatusBadRequest,
		env.do(http.MethodPut, "/api/auth/profile", models.UpdateProfileRequest{Avatar: &badAvatar}, session.AccessToken).Code)
}

func TestCards_ListByUserNameSelectsType(t *testing.T) {
	env := newTestEnv(t, true)
	session := env.register("ada")
	token := session.AccessToken

	env.createCard(token, models.CardTypeModern, "first")
	env.createCard(token, models.CardTypeMinimal, "second")
	env.createCard(token, models.CardTypeModern, "third")

	cases := []struct {
		name         string
		query        string
		wantSelected models.CardType
		wantJobs     []string
	}{
		{"default is first type", "", models.CardTypeModern, []string{"first", "third"}},
		{"explicit type", "?type=Minimal", models.CardTypeMinimal, []string{"second"}},
		{"absent type keeps default", "?type=Corporate", models.CardTypeModern, []string{"first", "third"}},
		{"unknown type keeps default", "?type=Fancy", models.CardTypeModern, []string{"first", "third"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, "/api/users/ADA/cards"+tc.query, nil, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var sel models.CardSelection
			decode(t, rec, &sel)
			assert.Equal(t, []models.CardType{models.CardTypeModern, models.CardTypeMinimal}, sel.Types)
			assert.Equal(t, tc.wantSelected, sel.Selected)
			assert.Equal(t, tc.wantSelected.Template(), sel.Template)
			assert.Equal(t, "ada", sel.User.UserName)

			jobs := make([]string, 0, len(sel.Cards))
			for _, c := range sel.Cards {
				jobs = append(jobs, c.Job)
				require.NotNil(t, c.User)
				assert.Equal(t, "ada", c.User.UserName)
			}
			assert.Equal(t, tc.wantJobs, jobs)
		})
	}

	assert.Positive(t, env.cache.hits, "repeat lookups are served from the cache")
}

func TestCards_ListByUserNameEmptyAndMissing(t *testing.T) {
	env := newTestEnv(t, true)
	env.register("empty")

	rec := env.do(http.MethodGet, "/api/users/empty/cards", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sel models.CardSelection
	decode(t, rec, &sel)
	assert.Empty(t, sel.Types)
	assert.Equal(t, models.CardTypeMinimal, sel.Selected)
	assert.Empty(t, sel.Cards)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/users/nobody/cards", nil, "").Code)
}

func TestCards_CRUDAndOwnership(t *testing.T) {
	env := newTestEnv(t, true)
	owner := env.register("owner")
	other := env.register("other")

	assert.Equal(t, http.StatusUnauthorized,
		env.do(http.MethodPost, "/api/cards", models.CardRequest{CardType: models.CardTypeMinimal}, "").Code)

	invalid := env.do(http.MethodPost, "/api/cards", models.CardRequest{CardType: "Fancy"}, owner.AccessToken)
	require.Equal(t, http.StatusBadRequest, invalid.Code)
	assert.Contains(t, decode(t, invalid, nil).Errors, "card_type")

	card := env.createCard(owner.AccessToken, models.CardTypeCorporate, "  CTO  ")
	assert.Equal(t, "CTO", card.Job)

	var fetched models.Card
	decode(t, env.do(http.MethodGet, "/api/cards/"+card.ID, nil, ""), &fetched)
	require.NotNil(t, fetched.User)
	assert.Equal(t, "owner", fetched.User.UserName)

	update := models.CardRequest{CardType: models.CardTypeModern, Company: "Acme"}
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPut, "/api/cards/"+card.ID, update, other.AccessToken).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPut, "/api/cards/missing", update, owner.AccessToken).Code)

	rec := env.do(http.MethodPut, "/api/cards/"+card.ID, update, owner.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.Card
	decode(t, rec, &updated)
	assert.Equal(t, models.CardTypeModern, updated.CardType)
	assert.Equal(t, "Acme", updated.Company)
	assert.Empty(t, updated.Job, "updates replace every field")

	var mine []models.Card
	decode(t, env.do(http.MethodGet, "/api/cards", nil, owner.AccessToken), &mine)
	assert.Len(t, mine, 1)

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, "/api/cards/"+card.ID, nil, other.AccessToken).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodDelete, "/api/cards/"+card.ID, nil, owner.AccessToken).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/cards/"+card.ID, nil, "").Code)

	assert.Equal(t, []string{owner.User.ID, owner.User.ID, owner.User.ID}, env.cache.invalidated)
}

func TestCards_MutationInvalidatesCachedList(t *testing.T) {
	env := newTestEnv(t, true)
	session := env.register("ada")
	env.createCard(session.AccessToken, models.CardTypeMinimal, "one")

	var sel models.CardSelection
	decode(t, env.do(http.MethodGet, "/api/users/ada/cards", nil, ""), &sel)
	require.Len(t, sel.Cards, 1)

	env.createCard(session.AccessToken, models.CardTypeMinimal, "two")

	decode(t, env.do(http.MethodGet, "/api/users/ada/cards", nil, ""), &sel)
	assert.Len(t, sel.Cards, 2)
}

func TestCards_ExportVCard(t *testing.T) {
	env := newTestEnv(t, true)
	session := env.register("ada")
	card := env.createCard(session.AccessToken, models.CardTypeMinimal, "Engineer")

	rec := env.do(http.MethodGet, "/api/cards/"+card.ID+"/vcard", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, vcard.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="ada.vcf"`, rec.Header().Get("Content-Disposition"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "BEGIN:VCARD\r\nVERSION:3.0\r\n"))
	assert.Contains(t, body, "FN:Test ada\r\n")
	assert.Contains(t, body, "TITLE:Engineer\r\n")
	assert.NotContains(t, body, "PHOTO")

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/cards/missing/vcard", nil, "").Code)
}

func TestCards_QRCode(t *testing.T) {
	env := newTestEnv(t, true)
	session := env.register("ada")
	card := env.createCard(session.AccessToken, models.CardTypeMinimal, "")

	rec := env.do(http.MethodGet, "/api/cards/"+card.ID+"/qr?size=200", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG\r\n\x1a\n")))

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/cards/"+card.ID+"/qr?size=5", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/cards/missing/qr", nil, "").Code)
}

func TestCardURL(t *testing.T) {
	h := &CardHandler{publicBaseURL: "https://cards.example.com"}
	assert.Equal(t, "https://cards.example.com/api/cards/c1", h.cardURL("c1", ""))
	assert.Equal(t, "https://cards.example.com/api/cards/c1/vcard", h.cardURL("c1", "vcard"))
}

func multipartImage(t *testing.T, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="avatar.png"`)
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestImages_UploadAndDelete(t *testing.T) {
	env := newTestEnv(t, true)
	owner := env.register("owner")
	other := env.register("other")

	upload := func(token, contentType string) *httptest.ResponseRecorder {
		body, ct := multipartImage(t, contentType, []byte("\x89PNG\r\n\x1a\nrest"))
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusBadRequest, upload(owner.AccessToken, "application/pdf").Code)

	rec := upload(owner.AccessToken, "image/png")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var img models.ImageUploadResponse
	decode(t, rec, &img)
	assert.True(t, strings.HasPrefix(img.URL, "/uploads/"))

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, "/api/upload/"+img.ID, nil, other.AccessToken).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodDelete, "/api/upload/"+img.ID, nil, owner.AccessToken).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/api/upload/"+img.ID, nil, owner.AccessToken).Code)
}

func TestCards_ExportVCardEmbedsUploadedAvatar(t *testing.T) {
	env := newTestEnv(t, true)
	session := env.register("ada")
	card := env.createCard(session.AccessToken, models.CardTypeMinimal, "")

	body, ct := multipartImage(t, "image/png", []byte("\x89PNG\r\n\x1a\nrest"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var img models.ImageUploadResponse
	decode(t, rec, &img)

	rec = env.do(http.MethodPut, "/api/auth/profile", models.UpdateProfileRequest{Avatar: &img.URL}, session.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/cards/"+card.ID+"/vcard", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, strings.ReplaceAll(rec.Body.String(), "\r\n ", ""), "PHOTO;ENCODING=b;TYPE=PNG:")
}

func TestAccount_Delete(t *testing.T) {
	env := newTestEnv(t, true)
	session := env.register("leaving")
	env.createCard(session.AccessToken, models.CardTypeMinimal, "a")
	env.createCard(session.AccessToken, models.CardTypeModern, "b")

	rec := env.do(http.MethodDelete, "/api/auth/account", nil, session.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result services.DeleteAccountResult
	decode(t, rec, &result)
	assert.Equal(t, 2, result.DeletedCards)

	list, err := env.cards.ListByUserID(context.Background(), session.User.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/users/leaving/cards", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/auth/profile", nil, session.AccessToken).Code)
}

func TestContact_SendsToOwner(t *testing.T) {
	env := newTestEnv(t, true)
	session := env.register("ada")
	card := env.createCard(session.AccessToken, models.CardTypeMinimal, "")

	body := map[string]string{"name": "Visitor", "email": "visitor@example.com", "message": "Hello!", "recaptchaToken": "tok"}
	rec := env.do(http.MethodPost, "/api/cards/"+card.ID+"/contact", body, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]string
	decode(t, rec, &out)
	assert.True(t, strings.HasPrefix(out["reference"], "IC-"))

	require.Len(t, env.mailer.sent, 1)
	msg := env.mailer.sent[0]
	assert.Equal(t, "ada@example.com", msg.OwnerEmail)
	assert.Equal(t, "visitor@example.com", msg.SenderEmail)
	assert.Equal(t, card.ID, msg.CardID)

	invalid := env.do(http.MethodPost, "/api/cards/"+card.ID+"/contact", map[string]string{"email": "x"}, "")
	require.Equal(t, http.StatusBadRequest, invalid.Code)
	errs := decode(t, invalid, nil).Errors
	assert.Contains(t, errs, "name")
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "message")

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/api/cards/missing/contact", body, "").Code)

	env.mailer.err = errors.New("sendgrid down")
	assert.Equal(t, http.StatusBadGateway, env.do(http.MethodPost, "/api/cards/"+card.ID+"/contact", body, "").Code)
}

func TestContact_CaptchaRejected(t *testing.T) {
	env := newTestEnv(t, false)
	session := env.register("ada")
	card := env.createCard(session.AccessToken, models.CardTypeMinimal, "")

	body := map[string]string{"name": "Bot", "email": "bot@example.com", "message": "spam", "recaptchaToken": "bad"}
	rec := env.do(http.MethodPost, "/api/cards/"+card.ID+"/contact", body, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, env.mailer.sent)
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		xff, remote, want string
	}{
		{"203.0.113.7, 10.0.0.1", "10.0.0.2:1234", "10.0.0.2"},
		{"garbage", "10.0.0.2:1234", "10.0.0.2"},
		{"203.0.113.7", "[2001:db8::1]:443", "2001:db8::1"},
		{"", "192.0.2.1", "192.0.2.1"},
		{"", "not-an-ip", ""},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s|%s", tc.xff, tc.remote), func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			assert.Equal(t, tc.want, clientIP(r))
		})
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, true)
	rec := env.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
