package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vtsecommerce/salesadmin/internal/auth"
	"vtsecommerce/salesadmin/internal/catalog"
	"vtsecommerce/salesadmin/internal/credential"
	"vtsecommerce/salesadmin/internal/customer"
	"vtsecommerce/salesadmin/internal/sales"
	"vtsecommerce/salesadmin/internal/session"
	"vtsecommerce/salesadmin/internal/websession"
)

// trackedStore remembers every token it has been asked to persist.
type trackedStore struct {
	*session.MemoryStore
	tokens []string
}

func (s *trackedStore) Create(ctx context.Context, sess session.Session) (int64, error) {
	id, err := s.MemoryStore.Create(ctx, sess)
	if err == nil {
		s.tokens = append(s.tokens, sess.Token)
	}
	return id, err
}

func (s *trackedStore) row(t *testing.T, i int) session.Session {
	t.Helper()
	require.Greater(t, len(s.tokens), i)
	sess, err := s.FindByToken(context.Background(), s.tokens[i])
	require.NoError(t, err)
	return sess
}

type stack struct {
	handler  http.Handler
	sessions *trackedStore
	now      time.Time
}

func (s *stack) advance(d time.Duration) { s.now = s.now.Add(d) }

func newStack(t *testing.T) *stack {
	t.Helper()
	st := &stack{
		sessions: &trackedStore{MemoryStore: session.NewMemoryStore()},
		now:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return st.now }

	manager, err := session.NewManager(st.sessions, session.ManagerConfig{Logger: quietLogger()})
	require.NoError(t, err)
	manager.SetClock(clock)

	authSvc, err := auth.NewService(auth.NewInMemoryUserStore(), auth.ServiceConfig{
		Cipher:   credential.New("scenario-key"),
		Sessions: manager,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)
	_, err = authSvc.SeedUsers(context.Background(), []auth.SeedUser{
		{Username: "alice", Password: "Alice@123", Email: "alice@vts.com"},
	})
	require.NoError(t, err)

	local := websession.NewStore(websession.Config{})
	local.SetClock(clock)

	categories := catalog.NewService()
	products, err := catalog.NewProductService(categories)
	require.NoError(t, err)
	customers := customer.NewService()
	invoiceRepo := sales.NewMemoryRepository()
	products.SetUsageCheck(invoiceRepo.ProductReferenced)
	customers.SetUsageCheck(invoiceRepo.CustomerReferenced)
	invoices, err := sales.NewService(invoiceRepo, sales.ServiceConfig{
		Products:  products,
		Customers: customers,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)

	st.handler = NewHandler(Deps{
		Auth:       authSvc,
		Sessions:   local,
		Categories: categories,
		Products:   products,
		Customers:  customers,
		Invoices:   invoices,
		Logger:     quietLogger(),
	})
	return st
}

// browser keeps cookies between requests like a real user agent would.
type browser struct {
	t       *testing.T
	h       http.Handler
	ua      string
	cookies map[string]string
}

func newBrowser(t *testing.T, h http.Handler, ua string) *browser {
	return &browser{t: t, h: h, ua: ua, cookies: make(map[string]string)}
}

func (b *browser) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("User-Agent", b.ua)
	for name, value := range b.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	return b.send(req)
}

func (b *browser) send(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	b.h.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c.Value
	}
	return rec
}

func (b *browser) doJSON(method, target, body string) *httptest.ResponseRecorder {
	b.t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", b.ua)
	for name, value := range b.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return b.send(req)
}

// created decodes the id of a resource returned with 201 Created.
func created(t *testing.T, rec *httptest.ResponseRecorder) int64 {
	t.Helper()
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.ID
}

func (b *browser) login(username, password string) *httptest.ResponseRecorder {
	b.t.Helper()
	page := b.do(http.MethodGet, "/account/login", nil)
	require.Equal(b.t, http.StatusOK, page.Code)
	return b.do(http.MethodPost, "/account/login", url.Values{
		"username":    {username},
		"password":    {password},
		csrfFieldName: {b.cookies[csrfCookieName]},
	})
}

func TestScenarioSecondDeviceSupersedesStaleSession(t *testing.T) {
	st := newStack(t)
	deviceA := newBrowser(t, st.handler, "DeviceA/1.0")
	deviceB := newBrowser(t, st.handler, "DeviceB/1.0")

	rec := deviceA.login("alice", "Alice@123")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	require.Len(t, st.sessions.tokens, 1)
	t1 := st.sessions.row(t, 0)
	assert.True(t, t1.IsActive)
	assert.Equal(t, "DeviceA/1.0", t1.DeviceInfo)

	st.advance(25 * time.Minute)

	rec = deviceB.login("alice", "Alice@123")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	require.Len(t, st.sessions.tokens, 2)
	t2, old := st.sessions.row(t, 1), st.sessions.row(t, 0)
	assert.True(t, t2.IsActive)
	assert.False(t, old.IsActive, "device A's session must be deactivated")
	assert.Equal(t, t1.Token, old.Token)

	// The landing page is public, so device A still sees its local username
	// until it touches a gated route.
	rec = deviceA.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")

	rec = deviceA.do(http.MethodGet, "/v1/categories", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/account/login?expired=true", rec.Header().Get("Location"))

	st.advance(time.Minute)
	rec = deviceB.do(http.MethodGet, "/v1/categories", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	got, err := st.sessions.FindByToken(context.Background(), t2.Token)
	require.NoError(t, err)
	assert.Equal(t, st.now, got.LastActivityTime, "a valid request refreshes last activity")
}

func TestScenarioRecentSessionBlocksSecondDevice(t *testing.T) {
	st := newStack(t)
	deviceA := newBrowser(t, st.handler, "DeviceA/1.0")
	deviceB := newBrowser(t, st.handler, "DeviceB/1.0")

	require.Equal(t, http.StatusSeeOther, deviceA.login("alice", "Alice@123").Code)

	st.advance(15 * time.Minute)
	rec := deviceB.login("alice", "Alice@123")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "User is already active in another session.")

	rec = deviceA.do(http.MethodGet, "/v1/categories", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "device A keeps working")
}

func TestScenarioKeepaliveExtendsRecency(t *testing.T) {
	st := newStack(t)
	deviceA := newBrowser(t, st.handler, "DeviceA/1.0")
	deviceB := newBrowser(t, st.handler, "DeviceB/1.0")

	require.Equal(t, http.StatusSeeOther, deviceA.login("alice", "Alice@123").Code)

	st.advance(18 * time.Minute)
	rec := deviceA.do(http.MethodPost, "/account/keepalive", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	// 25 minutes after login but only 7 after the keepalive.
	st.advance(7 * time.Minute)
	assert.Equal(t, http.StatusConflict, deviceB.login("alice", "Alice@123").Code)
}

func TestScenarioLogoutFreesUser(t *testing.T) {
	st := newStack(t)
	deviceA := newBrowser(t, st.handler, "DeviceA/1.0")
	deviceB := newBrowser(t, st.handler, "DeviceB/1.0")

	require.Equal(t, http.StatusSeeOther, deviceA.login("alice", "Alice@123").Code)

	rec := deviceA.do(http.MethodGet, "/account/logout", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/account/login", rec.Header().Get("Location"))

	assert.Equal(t, http.StatusSeeOther, deviceB.login("alice", "Alice@123").Code)

	rec = deviceA.do(http.MethodGet, "/v1/categories", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/account/login", rec.Header().Get("Location"))
}

func TestScenarioWrongPasswordCreatesNothing(t *testing.T) {
	st := newStack(t)
	device := newBrowser(t, st.handler, "DeviceA/1.0")

	rec := device.login("alice", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password.")
	assert.Empty(t, st.sessions.tokens)
	_, hasSession := device.cookies[websession.DefaultCookieName]
	assert.False(t, hasSession)
}

func TestScenarioSignedInUserRecordsSale(t *testing.T) {
	st := newStack(t)
	device := newBrowser(t, st.handler, "DeviceA/1.0")
	require.Equal(t, http.StatusSeeOther, device.login("alice", "Alice@123").Code)
	aliceID := st.sessions.row(t, 0).UserID

	categoryID := created(t, device.doJSON(http.MethodPost, "/v1/categories", `{"name":"Drinks"}`))
	productID := created(t, device.doJSON(http.MethodPost, "/v1/products",
		`{"name":"Cola","selling_price":"1.25","stock_quantity":10,"category_id":`+itoa(categoryID)+`}`))
	customerID := created(t, device.doJSON(http.MethodPost, "/v1/customers", `{"name":"Acme","email":"buyer@acme.test"}`))

	rec := device.doJSON(http.MethodPost, "/v1/invoices",
		`{"customer_id":`+itoa(customerID)+`,"tax_amount":"0.50","lines":[{"product_id":`+itoa(productID)+`,"quantity":4}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv sales.Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Equal(t, aliceID, inv.CreatedBy)
	assert.Equal(t, "5.5", inv.Total.String())
	require.Len(t, inv.Lines, 1)
	assert.Equal(t, "Cola", inv.Lines[0].ProductName)

	rec = device.doJSON(http.MethodGet, "/v1/invoices/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sum sales.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, int64(1), sum.InvoiceCount)
	assert.Equal(t, "5.5", sum.TotalSales.String())

	assert.Equal(t, http.StatusConflict, device.doJSON(http.MethodDelete, "/v1/products/"+itoa(productID), "").Code)
	assert.Equal(t, http.StatusConflict, device.doJSON(http.MethodDelete, "/v1/customers/"+itoa(customerID), "").Code)
	assert.Equal(t, http.StatusConflict, device.doJSON(http.MethodDelete, "/v1/categories/"+itoa(categoryID), "").Code)

	assert.Equal(t, http.StatusNoContent, device.doJSON(http.MethodDelete, "/v1/invoices/"+itoa(inv.ID), "").Code)
	assert.Equal(t, http.StatusNoContent, device.doJSON(http.MethodDelete, "/v1/products/"+itoa(productID), "").Code)
}

func TestScenarioSupersededDeviceLosesSalesAccess(t *testing.T) {
	st := newStack(t)
	deviceA := newBrowser(t, st.handler, "DeviceA/1.0")
	deviceB := newBrowser(t, st.handler, "DeviceB/1.0")
	require.Equal(t, http.StatusSeeOther, deviceA.login("alice", "Alice@123").Code)
	assert.Equal(t, http.StatusOK, deviceA.doJSON(http.MethodGet, "/v1/invoices", "").Code)

	st.advance(21 * time.Minute)
	require.Equal(t, http.StatusSeeOther, deviceB.login("alice", "Alice@123").Code)

	rec := deviceA.doJSON(http.MethodGet, "/v1/invoices", "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/account/login?expired=true", rec.Header().Get("Location"))

	for _, path := range []string{"/v1/invoices", "/v1/invoices/summary", "/v1/products", "/v1/customers"} {
		rec := deviceA.doJSON(http.MethodGet, path, "")
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, "/account/login", rec.Header().Get("Location"), path)
		assert.Equal(t, http.StatusOK, deviceB.doJSON(http.MethodGet, path, "").Code, path)
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
