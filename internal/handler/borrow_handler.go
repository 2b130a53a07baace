package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"librehub/internal/dto"
	"librehub/internal/middleware"
	"librehub/internal/models"
	"librehub/internal/service"

	"github.com/gin-gonic/gin"
)

type BorrowHandler struct {
	svc service.BorrowService
}

func NewBorrowHandler(svc service.BorrowService) *BorrowHandler {
	return &BorrowHandler{svc: svc}
}

func (h *BorrowHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Request)
	rg.POST("/return", h.Return)
	rg.GET("/my", h.ListMine)

	// Admin-only routes
	rg.GET("", middleware.RequireAdmin(), h.ListAll)
	rg.GET("/pending", middleware.RequireAdmin(), h.ListPending)
	rg.POST("/:borrow_id/decision", middleware.RequireAdmin(), h.Decide)
	rg.POST("/:borrow_id/return", middleware.RequireAdmin(), h.ForceReturn)
}

// statusForBorrowError maps lifecycle errors to HTTP statuses.
func statusForBorrowError(err error) int {
	switch {
	case errors.Is(err, service.ErrBookNotFound),
		errors.Is(err, service.ErrBorrowNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidDateRange):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrOutOfStock),
		errors.Is(err, service.ErrDuplicateRequest),
		errors.Is(err, service.ErrAlreadyBorrowed),
		errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	default:
		// includes ErrIntegrityFault: a bug, not a caller problem
		return http.StatusInternalServerError
	}
}

func (h *BorrowHandler) Request(c *gin.Context) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req dto.BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	borrow, err := h.svc.Request(ctx, p, req.BookID, req.RequestedBorrowDate, req.RequestedReturnDate)
	if err != nil {
		c.JSON(statusForBorrowError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, dto.FromBorrowModel(*borrow, nil))
}

func (h *BorrowHandler) Return(c *gin.Context) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req dto.BorrowReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	borrow, err := h.svc.ReturnByBook(ctx, p, req.BookID)
	if err != nil {
		c.JSON(statusForBorrowError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.FromBorrowModel(*borrow, nil))
}

func (h *BorrowHandler) Decide(c *gin.Context) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	borrowID, err := strconv.ParseInt(c.Param("borrow_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid borrow_id"})
		return
	}

	var req dto.BorrowDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	borrow, err := h.svc.Decide(ctx, p, borrowID, *req.Approve)
	if err != nil {
		c.JSON(statusForBorrowError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.FromBorrowModel(*borrow, nil))
}

func (h *BorrowHandler) ForceReturn(c *gin.Context) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	borrowID, err := strconv.ParseInt(c.Param("borrow_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid borrow_id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	borrow, err := h.svc.ReturnByID(ctx, p, borrowID)
	if err != nil {
		c.JSON(statusForBorrowError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.FromBorrowModel(*borrow, nil))
}

func (h *BorrowHandler) ListMine(c *gin.Context) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	borrows, err := h.svc.ListMine(ctx, p)
	if err != nil {
		c.JSON(statusForBorrowError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.toList(borrows))
}

func (h *BorrowHandler) ListPending(c *gin.Context) {
	h.listForAdmin(c, func(ctx context.Context, p service.Principal) ([]models.Borrow, error) {
		return h.svc.ListPending(ctx, p)
	})
}

func (h *BorrowHandler) ListAll(c *gin.Context) {
	h.listForAdmin(c, func(ctx context.Context, p service.Principal) ([]models.Borrow, error) {
		return h.svc.ListAll(ctx, p)
	})
}

func (h *BorrowHandler) listForAdmin(c *gin.Context, list func(context.Context, service.Principal) ([]models.Borrow, error)) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	borrows, err := list(ctx, p)
	if err != nil {
		c.JSON(statusForBorrowError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.toList(borrows))
}

func (h *BorrowHandler) toList(borrows []models.Borrow) dto.BorrowListResponse {
	items := make([]dto.BorrowResponse, 0, len(borrows))
	for _, b := range borrows {
		items = append(items, dto.FromBorrowModel(b, nil))
	}
	return dto.BorrowListResponse{Items: items, Total: len(items)}
}
