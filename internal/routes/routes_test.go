package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/ecomserver/internal/config"
	"github.com/example/ecomserver/internal/handlers"
	"github.com/example/ecomserver/internal/models"
	"github.com/example/ecomserver/internal/repository"
	"github.com/example/ecomserver/internal/services"
	"github.com/example/ecomserver/internal/utils"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []services.Mail
}

func (m *captureMailer) Send(ctx context.Context, mail services.Mail) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail)
	return "<test@localhost>", nil
}

func (m *captureMailer) lastOTP() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return strings.TrimPrefix(m.sent[len(m.sent)-1].HTML, "Your OTP is ")
}

type fakeUploader struct {
	mu        sync.Mutex
	destroyed []string
	failOn    string
}

func (u *fakeUploader) Upload(ctx context.Context, filename string, file io.Reader) (string, error) {
	if _, err := io.ReadAll(file); err != nil {
		return "", err
	}
	if u.failOn != "" && filename == u.failOn {
		return "", errors.New("cdn rejected " + filename)
	}
	return "https://cdn.test/" + services.PublicIDFromName(filename) + ".png", nil
}

func (u *fakeUploader) Destroy(ctx context.Context, publicID string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.destroyed = append(u.destroyed, publicID)
	return "ok", nil
}

var errStoreDown = errors.New("store unavailable")

// brokenOrders fails every call.
type brokenOrders struct{}

func (brokenOrders) Create(context.Context, *models.Order) error { return errStoreDown }
func (brokenOrders) FindByID(context.Context, uuid.UUID) (*models.Order, error) {
	return nil, errStoreDown
}
func (brokenOrders) Find(context.Context, repository.OrderFilter) ([]models.Order, error) {
	return nil, errStoreDown
}
func (brokenOrders) Page(context.Context, repository.OrderFilter, int, int) ([]models.Order, int64, error) {
	return nil, 0, errStoreDown
}
func (brokenOrders) Update(context.Context, uuid.UUID, repository.OrderPatch) (*models.Order, error) {
	return nil, errStoreDown
}
func (brokenOrders) Delete(context.Context, uuid.UUID) error { return errStoreDown }
func (brokenOrders) Count(context.Context) (int64, error) { return 0, errStoreDown }

type testServer struct {
	app      *fiber.App
	repos    repository.Repositories
	mailer   *captureMailer
	uploader *fakeUploader
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, repository.NewMemory())
}

func newTestServerWith(t *testing.T, repos repository.Repositories) *testServer {
	t.Helper()
	utils.PasswordCost = bcrypt.MinCost

	s := &testServer{
		repos:    repos,
		mailer:   &captureMailer{},
		uploader: &fakeUploader{},
	}
	s.app = fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	Register(s.app, Dependencies{
		Config: &config.Config{
			JWTSecret:               "routes-secret",
			OTPTTL:                  10 * time.Minute,
			UploadMaxFiles:          3,
			IssueTokenOnMailFailure: true,
		},
		Repos:    s.repos,
		Mailer:   s.mailer,
		Uploader: s.uploader,
	})
	return s
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) (int, map[string]any) {
	t.Helper()
	status, raw := s.doRaw(t, method, path, body, token)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return status, out
}

func (s *testServer) doRaw(t *testing.T, method, path string, body any, token string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func signupBody(email, phone string) map[string]any {
	return map[string]any{
		"name":     "Alice",
		"phone":    phone,
		"email":    email,
		"password": "secret1",
	}
}

func TestAccountFlow(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/users/signup", signupBody("alice@example.com", "111"), "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "User registered successfully! Please verify your email.", body["message"])
	assert.NotEmpty(t, body["token"])

	status, body = s.do(t, http.MethodPost, "/api/users/signup", signupBody("alice@example.com", "222"), "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "FAILED", body["status"])
	assert.Equal(t, "User already exist with this email!", body["msg"])

	status, body = s.do(t, http.MethodPost, "/api/users/signup", signupBody("bob@example.com", "111"), "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "User already exist with this phone number!", body["msg"])

	status, body = s.do(t, http.MethodPost, "/api/users/signup", map[string]any{"email": "x@example.com"}, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])

	credentials := map[string]any{"email": "alice@example.com", "password": "secret1"}
	status, body = s.do(t, http.MethodPost, "/api/users/signin", credentials, "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, false, body["isVerify"])

	status, body = s.do(t, http.MethodPost, "/api/users/verifyemail", map[string]any{"email": "alice@example.com", "otp": "000000"}, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid OTP", body["message"])

	status, body = s.do(t, http.MethodPost, "/api/users/verifyemail", map[string]any{"email": "alice@example.com", "otp": s.mailer.lastOTP()}, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "OTP verified successfully", body["message"])

	status, body = s.do(t, http.MethodPost, "/api/users/signin", map[string]any{"email": "alice@example.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid credentials", body["msg"])

	status, body = s.do(t, http.MethodPost, "/api/users/signin", map[string]any{"email": "nobody@example.com", "password": "secret1"}, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "User not found!", body["msg"])

	status, body = s.do(t, http.MethodPost, "/api/users/signin", credentials, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "User Authenticated", body["msg"])
	token := body["token"].(string)
	user := body["user"].(map[string]any)
	id := user["id"].(string)
	assert.Equal(t, true, user["isVerified"])
	assert.NotContains(t, user, "passwordHash")
	assert.NotContains(t, user, "otp")

	changePath := "/api/users/changePassword/" + id
	status, _ = s.do(t, http.MethodPut, changePath, map[string]any{"password": "secret1", "newPass": "secret2"}, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = s.do(t, http.MethodPut, changePath, map[string]any{"password": "wrong", "newPass": "secret2"}, token)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "current password wrong", body["msg"])

	status, body = s.do(t, http.MethodPut, changePath, map[string]any{"password": "secret1", "newPass": "secret2", "name": "Alicia"}, token)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Alicia", body["name"])

	status, _ = s.do(t, http.MethodPost, "/api/users/signin", map[string]any{"email": "alice@example.com", "password": "secret2"}, "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodPut, "/api/users/"+uuid.NewString(), map[string]any{"name": "x"}, token)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = s.do(t, http.MethodPut, "/api/users/"+id, map[string]any{"phone": "555"}, token)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "555", body["phone"])

	status, body = s.do(t, http.MethodGet, "/api/users/get/count", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["userCount"])

	status, raw := s.doRaw(t, http.MethodGet, "/api/users/", nil, "")
	require.Equal(t, http.StatusOK, status)
	var users []map[string]any
	require.NoError(t, json.Unmarshal(raw, &users))
	assert.Len(t, users, 1)

	status, body = s.do(t, http.MethodGet, "/api/users/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "The user with the given ID was not found.", body["message"])

	status, body = s.do(t, http.MethodDelete, "/api/users/"+id, nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "the user is deleted!", body["message"])

	status, body = s.do(t, http.MethodDelete, "/api/users/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "user not found!", body["message"])
}

func TestOTPRecoveryEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodPost, "/api/users/signup", signupBody("alice@example.com", "777"), "")
	require.Equal(t, http.StatusOK, status)
	alice, err := s.repos.Users.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)

	first := s.mailer.lastOTP()
	status, body := s.do(t, http.MethodPost, "/api/users/verifyAccount/resendOtp", map[string]any{"email": "alice@example.com"}, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "OTP SEND", body["message"])
	assert.Equal(t, alice.ID.String(), body["existingUserId"])
	assert.NotContains(t, body, "otp")

	status, body = s.do(t, http.MethodPut, "/api/users/verifyAccount/emailVerify/"+alice.ID.String(), map[string]any{"email": "alice@example.com"}, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.NotEmpty(t, body["token"])

	latest := s.mailer.lastOTP()
	if latest != first {
		status, _ = s.do(t, http.MethodPost, "/api/users/verifyemail", map[string]any{"email": "alice@example.com", "otp": first}, "")
		assert.Equal(t, http.StatusBadRequest, status)
	}
	status, _ = s.do(t, http.MethodPost, "/api/users/verifyemail", map[string]any{"email": "alice@example.com", "otp": latest}, "")
	assert.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/api/users/forgotPassword", map[string]any{"email": "nobody@example.com"}, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "User not exist with this email!", body["msg"])

	status, body = s.do(t, http.MethodPost, "/api/users/forgotPassword", map[string]any{"email": "alice@example.com"}, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OTP Send", body["message"])

	status, body = s.do(t, http.MethodPost, "/api/users/forgotPassword/changePassword", map[string]any{
		"email":       "alice@example.com",
		"newPass":     "changed1",
		"confirmPass": "changed1",
	}, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Password change successfully", body["message"])

	status, _ = s.do(t, http.MethodPost, "/api/users/signin", map[string]any{"email": "alice@example.com", "password": "changed1"}, "")
	assert.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/api/users/authWithGoogle", map[string]any{"name": "Gina", "email": "gina@example.com"}, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "User Login Successfully!", body["msg"])
	assert.Equal(t, true, body["user"].(map[string]any)["isVerified"])
}

func TestOrderEndpoints(t *testing.T) {
	s := newTestServer(t)

	create := func(amount any, date string) map[string]any {
		status, body := s.do(t, http.MethodPost, "/api/orders/create", map[string]any{
			"name":        "Alice",
			"phoneNumber": "998901112233",
			"address":     "Main st 1",
			"pincode":     "100000",
			"amount":      amount,
			"paymentId":   "pay_1",
			"email":       "Alice@Example.com",
			"userid":      "u1",
			"products":    []map[string]any{{"productTitle": "Shirt", "quantity": 1}},
			"date":        date,
		}, "")
		require.Equal(t, http.StatusCreated, status, body)
		return body
	}

	first := create(100, "2024-01-05T10:00:00Z")
	create("200", "2024-01-20")
	create(50, "2024-03-09T08:30:00.000Z")

	assert.Equal(t, "pending", first["status"])
	assert.Equal(t, "alice@example.com", first["email"])
	assert.Equal(t, float64(100), first["amount"])

	status, body := s.do(t, http.MethodGet, "/api/orders/sales", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(350), body["totalSales"])
	months := body["monthlySales"].([]any)
	require.Len(t, months, 12)
	assert.Equal(t, map[string]any{"month": "JAN", "sale": float64(300)}, months[0])
	assert.Equal(t, map[string]any{"month": "MAR", "sale": float64(50)}, months[2])

	status, body = s.do(t, http.MethodGet, "/api/orders/sales?year=2023", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["totalSales"])

	status, _ = s.do(t, http.MethodGet, "/api/orders/sales?year=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodGet, "/api/orders/get/count", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), body["orderCount"])

	status, body = s.do(t, http.MethodGet, "/api/orders?limit=2", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].([]any), 2)
	assert.Equal(t, float64(3), body["pagination"].(map[string]any)["total_items"])

	status, body = s.do(t, http.MethodGet, "/api/orders?page=92233720368547760&limit=100", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["data"].([]any))
	assert.Equal(t, float64(3), body["pagination"].(map[string]any)["total_items"])

	id := first["id"].(string)
	status, body = s.do(t, http.MethodGet, "/api/orders/"+id, nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Main st 1", body["address"])

	status, body = s.do(t, http.MethodGet, "/api/orders/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "The order with the given ID was not found.", body["message"])

	status, _ = s.do(t, http.MethodGet, "/api/orders/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodPut, "/api/orders/"+id, map[string]any{"status": "confirmed"}, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "confirmed", body["status"])
	assert.Equal(t, "Alice", body["name"])

	status, body = s.do(t, http.MethodGet, "/api/orders?status=confirmed", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].([]any), 1)

	status, body = s.do(t, http.MethodPut, "/api/orders/"+uuid.NewString(), map[string]any{"status": "confirmed"}, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Order cannot be updated!", body["message"])

	status, body = s.do(t, http.MethodDelete, "/api/orders/"+id, nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Order Deleted!", body["message"])

	status, body = s.do(t, http.MethodDelete, "/api/orders/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Order not found!", body["message"])

	status, _ = s.do(t, http.MethodPost, "/api/orders/create", map[string]any{"name": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func multipartImages(t *testing.T, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, name := range names {
		part, err := w.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("fake image bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func TestSalesEndpoint_StoreFailure(t *testing.T) {
	repos := repository.NewMemory()
	repos.Orders = brokenOrders{}
	s := newTestServerWith(t, repos)

	for _, path := range []string{"/api/orders/sales", "/api/orders/sales?year=2024"} {
		status, body := s.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusInternalServerError, status, path)
		assert.Equal(t, false, body["success"], path)
		assert.NotContains(t, body, "totalSales", path)
		assert.NotContains(t, body, "monthlySales", path)
	}
}

func TestSignup_PasswordTooLong(t *testing.T) {
	s := newTestServer(t)

	body := signupBody("long@example.com", "555")
	body["password"] = strings.Repeat("x", 80)
	status, out := s.do(t, http.MethodPost, "/api/users/signup", body, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, out["message"], "password must be at most 72 bytes")

	_, err := s.repos.Users.FindByEmail(context.Background(), "long@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	body["password"] = strings.Repeat("x", 72)
	status, out = s.do(t, http.MethodPost, "/api/users/signup", body, "")
	assert.Equal(t, http.StatusOK, status, out)
}

func TestUploadEndpoints(t *testing.T) {
	s := newTestServer(t)

	buf, contentType := multipartImages(t, "front.png", "back.jpg")
	req := httptest.NewRequest(http.MethodPost, "/api/users/upload", buf)
	req.Header.Set(fiber.HeaderContentType, contentType)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var urls []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&urls))
	assert.Equal(t, []string{"https://cdn.test/front.png", "https://cdn.test/back.png"}, urls)

	// a second request starts from an empty list
	buf, contentType = multipartImages(t, "side.png")
	req = httptest.NewRequest(http.MethodPost, "/api/users/upload", buf)
	req.Header.Set(fiber.HeaderContentType, contentType)
	resp, err = s.app.Test(req, -1)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&urls))
	assert.Equal(t, []string{"https://cdn.test/side.png"}, urls)

	images := s.repos.Images.(*repository.MemoryImageRepository).All()
	require.Len(t, images, 2)

	buf, contentType = multipartImages(t, "1.png", "2.png", "3.png", "4.png")
	req = httptest.NewRequest(http.MethodPost, "/api/users/upload", buf)
	req.Header.Set(fiber.HeaderContentType, contentType)
	resp, err = s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	status, body := s.do(t, http.MethodDelete, "/api/users/deleteImage?img=https://cdn.test/v1/front.png", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["result"])
	assert.Equal(t, []string{"front"}, s.uploader.destroyed)

	status, _ = s.do(t, http.MethodDelete, "/api/users/deleteImage", nil, "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUpload_PartialFailure(t *testing.T) {
	s := newTestServer(t)
	s.uploader.failOn = "back.png"

	buf, contentType := multipartImages(t, "front.png", "back.png", "side.png")
	req := httptest.NewRequest(http.MethodPost, "/api/users/upload", buf)
	req.Header.Set(fiber.HeaderContentType, contentType)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body struct {
		Success bool     `json:"success"`
		Message string   `json:"message"`
		Images  []string `json:"images"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "image upload failed", body.Message)
	// assets already on the CDN are reported back, not rolled back
	assert.Equal(t, []string{"https://cdn.test/front.png"}, body.Images)
	assert.Empty(t, s.uploader.destroyed)

	assert.Empty(t, s.repos.Images.(*repository.MemoryImageRepository).All())
}
