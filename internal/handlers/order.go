package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/ecomserver/internal/models"
	"github.com/example/ecomserver/internal/repository"
	"github.com/example/ecomserver/internal/services"
	"github.com/example/ecomserver/internal/utils"
)

// OrderHandler manages order endpoints.
type OrderHandler struct {
	orders   repository.OrderRepository
	sales    *services.SalesService
	telegram *services.TelegramService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders repository.OrderRepository, sales *services.SalesService, telegram *services.TelegramService) *OrderHandler {
	return &OrderHandler{orders: orders, sales: sales, telegram: telegram}
}

// Sales returns total revenue and its January-first monthly breakdown.
func (h *OrderHandler) Sales(c *fiber.Ctx) error {
	year := 0
	if v := c.Query("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid year")
		}
		year = parsed
	}

	report, err := h.sales.Report(c.UserContext(), year)
	if err != nil {
		return internalError(c, "Order", err, fiber.Map{"success": false})
	}
	return c.JSON(report)
}

// ListOrders returns a page of orders, optionally filtered by status, email or user.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	filter := repository.OrderFilter{
		Status: c.Query("status"),
		Email:  strings.ToLower(strings.TrimSpace(c.Query("email"))),
		UserID: c.Query("userid"),
	}

	orders, total, err := h.orders.Page(c.UserContext(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return internalError(c, "Order", err, fiber.Map{"success": false})
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"pagination": pg.Meta(total),
	})
}

// GetOrder returns a single order.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	order, err := h.orders.FindByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "The order with the given ID was not found.",
			})
		}
		return err
	}
	return c.JSON(order)
}

// CountOrders returns the number of stored orders.
func (h *OrderHandler) CountOrders(c *fiber.Ctx) error {
	count, err := h.orders.Count(c.UserContext())
	if err != nil {
		return internalError(c, "Order", err, fiber.Map{"success": false})
	}
	return c.JSON(fiber.Map{"orderCount": count})
}

type createOrderRequest struct {
	Name        string          `json:"name" validate:"required"`
	PhoneNumber string          `json:"phoneNumber" validate:"required"`
	Address     string          `json:"address" validate:"required"`
	Pincode     string          `json:"pincode"`
	Amount      models.Amount   `json:"amount" validate:"required"`
	PaymentID   string          `json:"paymentId"`
	Email       string          `json:"email" validate:"omitempty,email"`
	UserID      string          `json:"userid"`
	Products    json.RawMessage `json:"products"`
	Date        *orderDate      `json:"date"`
}

// CreateOrder stores a checkout and notifies the admin chat.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	order := models.Order{
		Name:        strings.TrimSpace(req.Name),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Address:     req.Address,
		Pincode:     req.Pincode,
		Amount:      req.Amount,
		PaymentID:   req.PaymentID,
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		UserID:      req.UserID,
		Products:    req.Products,
		Status:      models.OrderStatusPending,
	}

	date := time.Now().UTC()
	if req.Date != nil {
		date = req.Date.Time
	}
	order.Date = &date

	if err := h.orders.Create(c.UserContext(), &order); err != nil {
		return internalError(c, "Order", err, fiber.Map{"success": false})
	}

	if h.telegram.Enabled() {
		go func(o models.Order) {
			_ = h.telegram.NotifyNewOrder(o)
		}(order)
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

type updateOrderRequest struct {
	Name        *string         `json:"name"`
	PhoneNumber *string         `json:"phoneNumber"`
	Address     *string         `json:"address"`
	Pincode     *string         `json:"pincode"`
	Amount      *models.Amount  `json:"amount"`
	PaymentID   *string         `json:"paymentId"`
	Email       *string         `json:"email" validate:"omitempty,email"`
	UserID      *string         `json:"userid"`
	Products    json.RawMessage `json:"products"`
	Status      *string         `json:"status"`
}

// UpdateOrder applies a partial update, typically a status transition.
func (h *OrderHandler) UpdateOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateOrderRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &email
	}

	order, err := h.orders.Update(c.UserContext(), id, repository.OrderPatch{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
		Pincode:     req.Pincode,
		Amount:      req.Amount,
		PaymentID:   req.PaymentID,
		Email:       req.Email,
		UserID:      req.UserID,
		Products:    req.Products,
		Status:      req.Status,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Order cannot be updated!",
				"success": false,
			})
		}
		return internalError(c, "Order", err, fiber.Map{"success": false})
	}
	return c.JSON(order)
}

// DeleteOrder removes an order.
func (h *OrderHandler) DeleteOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if err := h.orders.Delete(c.UserContext(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Order not found!",
				"success": false,
			})
		}
		return internalError(c, "Order", err, fiber.Map{"success": false})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Order Deleted!",
	})
}

// orderDate accepts the date layouts checkout clients send.
type orderDate struct {
	time.Time
}

var orderDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

func (d *orderDate) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var millis int64
		if err := json.Unmarshal(data, &millis); err != nil {
			return errors.New("date must be a string or epoch milliseconds")
		}
		d.Time = time.UnixMilli(millis).UTC()
		return nil
	}

	raw = strings.TrimSpace(raw)
	for _, layout := range orderDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return errors.New("unrecognised date format")
}
