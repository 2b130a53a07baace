package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"librehub/database"
	"librehub/internal/config"
	"librehub/internal/dto"
	"librehub/internal/middleware"
	"librehub/internal/models"
	"librehub/internal/repository"
	"librehub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testAPI struct {
	router *gin.Engine
	db     *gorm.DB
	auth   service.AuthService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		JWTSecret:       "test-secret-key-phrase-0123456789ab",
		AdminSetupKey:   "letmein",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	userRepo := repository.NewUserRepository(db)
	refreshRepo := repository.NewRefreshTokenRepository(db)
	borrowRepo := repository.NewBorrowRepository(db)
	bookRepo := repository.NewBookRepository(db)
	ledger := repository.NewInventoryLedger()

	authService := service.NewAuthService(userRepo, refreshRepo, cfg)
	userService := service.NewUserService(userRepo)
	borrowService := service.NewBorrowService(db, borrowRepo, ledger, nil, logger)
	bookService := service.NewBookService(db, bookRepo, nil, logger)

	authHandler := NewAuthHandler(authService, userService, cfg.AccessTokenTTL)
	bookHandler := NewBookHandler(bookService, borrowService)
	borrowHandler := NewBorrowHandler(borrowService)

	r := gin.New()
	authRequired := middleware.AuthMiddleware(authService)
	noLimit := func(c *gin.Context) { c.Next() }

	authHandler.RegisterRoutes(r.Group("/auth"), noLimit, authRequired)
	bookHandler.RegisterRoutes(r.Group("/books", authRequired))
	borrowHandler.RegisterRoutes(r.Group("/borrows", authRequired))

	return &testAPI{router: r, db: db, auth: authService}
}

// signup registers a user directly through the service and returns a bearer token.
func (api *testAPI) signup(t *testing.T, username string, isAdmin bool) string {
	t.Helper()

	email := fmt.Sprintf("%s@example.com", username)
	var err error
	if isAdmin {
		_, err = api.auth.CreateAdmin("letmein", username, username, "password123", email)
	} else {
		_, err = api.auth.Register(username, username, "password123", email)
	}
	require.NoError(t, err)

	access, _, _, err := api.auth.Login(username, "password123")
	require.NoError(t, err)
	return access
}

func (api *testAPI) seedBook(t *testing.T, title string, copies int) models.Book {
	t.Helper()
	book := models.Book{
		Title:           title,
		Author:          "Test Author",
		TotalCopies:     copies,
		AvailableCopies: copies,
	}
	require.NoError(t, api.db.Create(&book).Error)
	return book
}

func (api *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	return w
}

func borrowBody(bookID int64) gin.H {
	from := time.Now().UTC().Add(24 * time.Hour)
	return gin.H{
		"book_id":               bookID,
		"requested_borrow_date": from,
		"requested_return_date": from.AddDate(0, 0, 7),
	}
}

func TestBorrowRoutesAuth(t *testing.T) {
	api := newTestAPI(t)
	member := api.signup(t, "member", false)

	t.Run("RejectsMissingToken", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/borrows/my", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("RejectsGarbageToken", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/borrows/my", "not-a-token", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("NonAdminCannotReachAdminRoutes", func(t *testing.T) {
		for _, tc := range []struct {
			method string
			path   string
			body   any
		}{
			{http.MethodGet, "/borrows", nil},
			{http.MethodGet, "/borrows/pending", nil},
			{http.MethodPost, "/borrows/1/decision", gin.H{"approve": true}},
			{http.MethodPost, "/borrows/1/return", nil},
		} {
			w := api.do(t, tc.method, tc.path, member, tc.body)
			assert.Equalf(t, http.StatusForbidden, w.Code, "%s %s", tc.method, tc.path)
		}

		// The forbidden calls must not have touched the borrow table.
		var count int64
		require.NoError(t, api.db.Model(&models.Borrow{}).Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestBorrowLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	member := api.signup(t, "reader", false)
	admin := api.signup(t, "admin", true)
	book := api.seedBook(t, "Dune", 1)

	var borrowID int64

	t.Run("RequestCreatesPending", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/borrows", member, borrowBody(book.ID))
		require.Equal(t, http.StatusCreated, w.Code)

		var resp dto.BorrowResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, string(models.BorrowPending), resp.Status)
		assert.False(t, resp.IsReturned)
		borrowID = resp.ID

		// Requesting does not reserve a copy.
		var reloaded models.Book
		require.NoError(t, api.db.First(&reloaded, book.ID).Error)
		assert.Equal(t, 1, reloaded.AvailableCopies)
	})

	t.Run("DuplicateRequestConflicts", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/borrows", member, borrowBody(book.ID))
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("BadDateRangeRejected", func(t *testing.T) {
		from := time.Now().UTC().Add(24 * time.Hour)
		w := api.do(t, http.MethodPost, "/borrows", member, gin.H{
			"book_id":               book.ID,
			"requested_borrow_date": from,
			"requested_return_date": from.Add(-time.Hour),
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("AdminApprovesAndCopyIsClaimed", func(t *testing.T) {
		path := fmt.Sprintf("/borrows/%d/decision", borrowID)
		w := api.do(t, http.MethodPost, path, admin, gin.H{"approve": true})
		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.BorrowResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, string(models.BorrowApproved), resp.Status)

		var reloaded models.Book
		require.NoError(t, api.db.First(&reloaded, book.ID).Error)
		assert.Equal(t, 0, reloaded.AvailableCopies)
	})

	t.Run("SecondDecisionConflicts", func(t *testing.T) {
		path := fmt.Sprintf("/borrows/%d/decision", borrowID)
		w := api.do(t, http.MethodPost, path, admin, gin.H{"approve": false})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("AvailabilityReflectsLoan", func(t *testing.T) {
		path := fmt.Sprintf("/books/%d/availability", book.ID)
		w := api.do(t, http.MethodGet, path, member, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.AvailabilityResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Total)
		assert.Equal(t, 0, resp.Available)
	})

	t.Run("SelfServiceReturn", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/borrows/return", member, gin.H{"book_id": book.ID})
		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.BorrowResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, string(models.BorrowReturned), resp.Status)
		assert.True(t, resp.IsReturned)

		var reloaded models.Book
		require.NoError(t, api.db.First(&reloaded, book.ID).Error)
		assert.Equal(t, 1, reloaded.AvailableCopies)
	})

	t.Run("AdminReReturnIsIdempotent", func(t *testing.T) {
		path := fmt.Sprintf("/borrows/%d/return", borrowID)
		w := api.do(t, http.MethodPost, path, admin, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("ListMineShowsHistory", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/borrows/my", member, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.BorrowListResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Total)
	})

	t.Run("MissingBorrowIs404", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/borrows/9999/decision", admin, gin.H{"approve": true})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("MissingBookIs404", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/borrows", member, borrowBody(9999))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRejectDecisionOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	member := api.signup(t, "reader", false)
	admin := api.signup(t, "admin", true)
	book := api.seedBook(t, "Dune", 1)

	w := api.do(t, http.MethodPost, "/borrows", member, borrowBody(book.ID))
	require.Equal(t, http.StatusCreated, w.Code)
	var created dto.BorrowResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	path := fmt.Sprintf("/borrows/%d/decision", created.ID)
	w = api.do(t, http.MethodPost, path, admin, gin.H{"approve": false})
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.BorrowResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(models.BorrowRejected), resp.Status)
	assert.Equal(t, book.ID, resp.Book.ID)
	assert.Equal(t, "Dune", resp.Book.Title)
	assert.Equal(t, "Test Author", resp.Book.Author)
}

func TestBorrowOutOfStockOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	admin := api.signup(t, "admin", true)
	first := api.signup(t, "first", false)
	second := api.signup(t, "second", false)
	book := api.seedBook(t, "Hyperion", 1)

	requestAs := func(t *testing.T, token string) int64 {
		w := api.do(t, http.MethodPost, "/borrows", token, borrowBody(book.ID))
		require.Equal(t, http.StatusCreated, w.Code)
		var resp dto.BorrowResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp.ID
	}

	firstID := requestAs(t, first)
	secondID := requestAs(t, second)

	w := api.do(t, http.MethodPost, fmt.Sprintf("/borrows/%d/decision", firstID), admin, gin.H{"approve": true})
	require.Equal(t, http.StatusOK, w.Code)

	// The last copy is gone; approving the second request must fail and
	// leave it pending so the admin can retry after a return.
	w = api.do(t, http.MethodPost, fmt.Sprintf("/borrows/%d/decision", secondID), admin, gin.H{"approve": true})
	assert.Equal(t, http.StatusConflict, w.Code)

	var pending models.Borrow
	require.NoError(t, api.db.First(&pending, secondID).Error)
	assert.Equal(t, models.BorrowPending, pending.Status)
}
