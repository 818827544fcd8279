package handler

import (
	"encoding/json"
	"math"
	"net/http"
	"net/mail"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bakery-service/internal/model"
	"bakery-service/internal/ordering"
	"bakery-service/internal/payment"
	"bakery-service/pkg/logger"
)

// OrderHandler covers checkout submission, payment confirmation and the
// staff-side order ledger.
type OrderHandler struct {
	db          *gorm.DB
	allocator   *ordering.Allocator
	coordinator *ordering.Coordinator
	guard       *ordering.Guard
	payments    payment.Provider
	notifier    ordering.Notifier
}

// NewOrderHandler wires the handler with its collaborators.
func NewOrderHandler(db *gorm.DB, allocator *ordering.Allocator, coordinator *ordering.Coordinator,
	guard *ordering.Guard, payments payment.Provider, notifier ordering.Notifier) *OrderHandler {
	return &OrderHandler{
		db:          db,
		allocator:   allocator,
		coordinator: coordinator,
		guard:       guard,
		payments:    payments,
		notifier:    notifier,
	}
}

// CustomerRequest identifies the ordering customer.
type CustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// SubmitOrderRequest is the checkout payload. PaymentMethod selects the
// branch: "on-site" commits the order immediately, "online" opens a hosted
// payment session and defers the commit to the confirmation callback.
type SubmitOrderRequest struct {
	CartLines     []ordering.CartLine `json:"cart_lines"`
	BakeryID      uint                `json:"bakery_id"`
	Customer      CustomerRequest     `json:"customer"`
	PickupTime    string              `json:"pickup_time"`
	PaymentMethod string              `json:"payment_method"`
}

func (r *SubmitOrderRequest) validate() error {
	if len(r.CartLines) == 0 {
		return ordering.NewValidationError("cart is empty")
	}
	if r.BakeryID == 0 {
		return ordering.NewValidationError("bakery_id is required")
	}
	if r.Customer.Name == "" {
		return ordering.NewValidationError("customer name is required")
	}
	if _, err := mail.ParseAddress(r.Customer.Email); err != nil {
		return ordering.NewValidationError("customer email is invalid")
	}
	if r.PaymentMethod != model.PaymentMethodOnline && r.PaymentMethod != model.PaymentMethodOnSite {
		return ordering.NewValidationError("payment_method must be %q or %q",
			model.PaymentMethodOnline, model.PaymentMethodOnSite)
	}
	return nil
}

// SubmitOrder handles POST /api/orders for both payment methods.
func (h *OrderHandler) SubmitOrder(c echo.Context) error {
	log := logger.FromEcho(c)

	var req SubmitOrderRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}
	if err := req.validate(); err != nil {
		return respondError(c, log, err)
	}

	var bakery model.Bakery
	if err := h.db.First(&bakery, req.BakeryID).Error; err != nil {
		log.Warn("Unknown bakery on order submission", zap.Uint("bakery_id", req.BakeryID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "bakery not found"})
	}

	ctx := c.Request().Context()

	// Both branches start from the same strict plan so stock problems are
	// reported before any payment intent exists.
	plan, err := h.allocator.Plan(ctx, req.BakeryID, req.CartLines)
	if err != nil {
		return respondError(c, log, err)
	}

	pin := ordering.NewPin()

	if req.PaymentMethod == model.PaymentMethodOnSite {
		order, err := h.coordinator.Commit(ctx, plan, &ordering.OrderDraft{
			CustomerName:  req.Customer.Name,
			CustomerEmail: req.Customer.Email,
			CustomerPhone: req.Customer.Phone,
			BakeryName:    bakery.Name,
			Pin:           pin,
			PickupTime:    req.PickupTime,
			PaymentMethod: model.PaymentMethodOnSite,
		})
		if err != nil {
			return respondError(c, log, err)
		}

		ordering.Dispatch(h.notifier, order)

		return c.JSON(http.StatusCreated, echo.Map{
			"order_id": order.ID,
			"pin":      order.Pin,
			"order":    order,
		})
	}

	// Online: no order yet. The cart snapshot rides along as session
	// metadata so the confirmation callback does not re-trust client input.
	snapshot := make([]ordering.CartLine, 0, len(plan.Allocations))
	items := make([]payment.LineItem, 0, len(plan.Allocations))
	for _, alloc := range plan.Allocations {
		snapshot = append(snapshot, ordering.CartLine{
			ProductID: alloc.Product.ID,
			Name:      alloc.Product.Name,
			Quantity:  alloc.Quantity,
		})
		items = append(items, payment.LineItem{
			Name:       alloc.Product.Name,
			UnitAmount: int64(math.Round(alloc.Product.Price * 100)),
			Quantity:   alloc.Quantity,
		})
	}

	cartJSON, err := json.Marshal(snapshot)
	if err != nil {
		return respondError(c, log, err)
	}

	session, err := h.payments.CreateSession(ctx, items, payment.Metadata{
		CustomerName:  req.Customer.Name,
		CustomerEmail: req.Customer.Email,
		CustomerPhone: req.Customer.Phone,
		BakeryID:      req.BakeryID,
		BakeryName:    bakery.Name,
		PickupTime:    req.PickupTime,
		Pin:           pin,
		Cart:          string(cartJSON),
	})
	if err != nil {
		return respondError(c, log, &ordering.ExternalServiceError{Service: "payment authority", Err: err})
	}

	log.Info("Payment session created",
		zap.String("session_id", session.ID),
		zap.Uint("bakery_id", req.BakeryID))

	return c.JSON(http.StatusOK, echo.Map{"url": session.URL})
}

// ConfirmPaymentRequest names the session to confirm.
type ConfirmPaymentRequest struct {
	PaymentRef string `json:"payment_ref"`
}

// ConfirmPayment handles POST /api/orders/confirm. Safe to retry: replays
// return the already-committed order.
func (h *OrderHandler) ConfirmPayment(c echo.Context) error {
	log := logger.FromEcho(c)

	var req ConfirmPaymentRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	order, replayed, err := h.guard.ConfirmAndCommit(c.Request().Context(), req.PaymentRef)
	if err != nil {
		return respondError(c, log, err)
	}

	if replayed {
		return c.JSON(http.StatusOK, order)
	}

	ordering.Dispatch(h.notifier, order)
	return c.JSON(http.StatusCreated, order)
}

// ListOrders handles GET /api/bakeries/:id/orders (staff).
func (h *OrderHandler) ListOrders(c echo.Context) error {
	log := logger.FromEcho(c)

	bakery, err := h.bakery(c)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "bakery not found"})
	}

	var orders []model.Order
	// Legacy rows predate the bakery relation and only carry the name.
	result := h.db.Preload("Items.Product").
		Where("bakery_id = ? OR bakery_name = ?", bakery.ID, bakery.Name).
		Order("created_at DESC").
		Find(&orders)
	if result.Error != nil {
		log.Error("Failed to list orders", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve orders"})
	}

	log.Info("Orders retrieved", zap.Uint("bakery_id", bakery.ID), zap.Int("count", len(orders)))
	return c.JSON(http.StatusOK, orders)
}

// UpdateOrderRequest mutates the fulfillment state of one order. Status moves
// forward only; Reset is the explicit way back to pending.
type UpdateOrderRequest struct {
	Status    *string `json:"status"`
	Reset     bool    `json:"reset"`
	Validated *bool   `json:"validated"`
	IsPaid    *bool   `json:"is_paid"`
}

var statusRank = map[string]int{
	model.OrderStatusPending:  0,
	model.OrderStatusReady:    1,
	model.OrderStatusPickedUp: 2,
}

// applyOrderUpdate enforces the fulfillment policy: no backward status moves
// without an explicit reset, and no payment toggles on online orders.
func applyOrderUpdate(order *model.Order, req *UpdateOrderRequest) error {
	if req.Reset {
		order.Status = model.OrderStatusPending
	} else if req.Status != nil {
		rank, known := statusRank[*req.Status]
		if !known {
			return ordering.NewValidationError("invalid status %q", *req.Status)
		}
		if rank < statusRank[order.Status] {
			return ordering.NewValidationError("status cannot move backward; use reset to reopen the order")
		}
		order.Status = *req.Status
	}

	if req.Validated != nil {
		order.Validated = *req.Validated
	}

	if req.IsPaid != nil {
		if order.PaymentMethod == model.PaymentMethodOnline {
			// Online orders are paid by construction.
			return ordering.NewValidationError("cannot toggle payment on an online-paid order")
		}
		order.IsPaid = *req.IsPaid
	}

	return nil
}

// UpdateOrder handles PATCH /api/bakeries/:id/orders/:orderId (staff).
func (h *OrderHandler) UpdateOrder(c echo.Context) error {
	log := logger.FromEcho(c)

	bakery, err := h.bakery(c)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "bakery not found"})
	}

	var req UpdateOrderRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	order, err := h.orderForBakery(c.Param("orderId"), bakery)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	}

	if err := applyOrderUpdate(order, &req); err != nil {
		return respondError(c, log, err)
	}

	if err := h.db.Save(order).Error; err != nil {
		log.Error("Failed to update order", zap.Uint("order_id", order.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update order"})
	}

	log.Info("Order updated",
		zap.Uint("order_id", order.ID),
		zap.String("status", order.Status),
		zap.Bool("validated", order.Validated),
		zap.Bool("is_paid", order.IsPaid))

	updated, err := h.orderForBakery(strconv.FormatUint(uint64(order.ID), 10), bakery)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to reload order"})
	}
	return c.JSON(http.StatusOK, updated)
}

// bulkValidatedDelete reports whether the request addresses the bulk cleanup
// of validated orders rather than one specific order.
func bulkValidatedDelete(c echo.Context) bool {
	return c.QueryParam("validated") == "true" && c.Param("orderId") == ""
}

// DeleteOrder handles DELETE /api/bakeries/:id/orders/:orderId and, with
// ?validated=true and no order id, the bulk cleanup of archived orders.
func (h *OrderHandler) DeleteOrder(c echo.Context) error {
	log := logger.FromEcho(c)

	bakery, err := h.bakery(c)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "bakery not found"})
	}

	if bulkValidatedDelete(c) {
		result := h.db.Where("(bakery_id = ? OR bakery_name = ?) AND validated = ?", bakery.ID, bakery.Name, true).
			Delete(&model.Order{})
		if result.Error != nil {
			log.Error("Failed to delete validated orders", zap.Error(result.Error))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete orders"})
		}

		log.Info("Validated orders deleted",
			zap.Uint("bakery_id", bakery.ID),
			zap.Int64("deleted_count", result.RowsAffected))
		return c.JSON(http.StatusOK, echo.Map{"deleted_count": result.RowsAffected})
	}

	order, err := h.orderForBakery(c.Param("orderId"), bakery)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	}

	// Items go with the order (cascade).
	if err := h.db.Select("Items").Delete(order).Error; err != nil {
		log.Error("Failed to delete order", zap.Uint("order_id", order.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete order"})
	}

	log.Info("Order deleted", zap.Uint("order_id", order.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "Order deleted"})
}

func (h *OrderHandler) bakery(c echo.Context) (*model.Bakery, error) {
	var bakery model.Bakery
	if err := h.db.First(&bakery, c.Param("id")).Error; err != nil {
		return nil, err
	}
	return &bakery, nil
}

func (h *OrderHandler) orderForBakery(orderID string, bakery *model.Bakery) (*model.Order, error) {
	var order model.Order
	err := h.db.Preload("Items.Product").
		Where("bakery_id = ? OR bakery_name = ?", bakery.ID, bakery.Name).
		First(&order, orderID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}
