package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fardelhq/shop/internal/logging"
	"github.com/fardelhq/shop/internal/metrics"
	"github.com/fardelhq/shop/internal/models"
	"github.com/fardelhq/shop/internal/mykafka"
	"github.com/fardelhq/shop/internal/util"
)

// PanelHandler serves the staff-only HTML order panel.
type PanelHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

const panelListPath = "/orders/list"

func (h *PanelHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["orderID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "topic", "order_events", "error", err)
	}
}

func (h *PanelHandler) orderByID(c echo.Context, preloadLines bool) (*models.Order, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound)
	}

	q := h.DB.WithContext(c.Request().Context())
	if preloadLines {
		q = q.Preload("Lines")
	}

	var order models.Order
	if err := q.Where("id = ?", id).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound)
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return &order, nil
}

// OrdersList renders the paginated listing, ascending by creation time.
// page/per_page default to 1/20 like the original panel.
func (h *PanelHandler) OrdersList(c echo.Context) error {
	ctx := c.Request().Context()

	page := parseIntDefault(c.QueryParam("page"), 1)
	if page < 1 {
		page = 1
	}
	perPage := parseIntDefault(c.QueryParam("per_page"), 20)
	offset, limit := util.Calculate(page, perPage)

	var total int64
	if err := h.DB.WithContext(ctx).Model(&models.Order{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var orders []models.Order
	if err := h.DB.WithContext(ctx).Model(&models.Order{}).
		Order("create_time ASC").
		Offset(offset).Limit(limit).
		Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.Render(http.StatusOK, "orders_list.html", echo.Map{
		"Orders": orders,
		"Page":   page,
		"Pages":  util.Pages(total, limit),
	})
}

// OrdersInfo renders a single order with its lines and owning user.
func (h *PanelHandler) OrdersInfo(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.orderByID(c, true)
	if err != nil {
		return err
	}

	var user models.User
	if err := h.DB.WithContext(ctx).Where("id = ?", order.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.Render(http.StatusOK, "orders_info.html", echo.Map{
		"Order": order,
		"User":  &user,
	})
}

// ConfirmOrder flips the fulfillment status and redirects back to the list.
// Any status outside the two known values is left untouched.
func (h *PanelHandler) ConfirmOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "panel_confirm_order")

	order, err := h.orderByID(c, false)
	if err != nil {
		return err
	}

	switch order.Status {
	case models.OrderStatusUnfulfiled:
		order.Status = models.OrderStatusFulfiled
	case models.OrderStatusFulfiled:
		order.Status = models.OrderStatusUnfulfiled
	}

	if err := h.DB.WithContext(ctx).Save(order).Error; err != nil {
		l.Error("confirm_order_failed", "status", 500, "order_id", order.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	metrics.OrderStatusTogglesTotal.Inc()
	h.publish(c, map[string]interface{}{
		"type":    "order_status_toggled",
		"orderID": order.ID,
		"status":  order.Status,
	})
	l.Info("order_status_toggled", "order_id", order.ID, "status", order.Status)

	return c.Redirect(http.StatusFound, panelListPath)
}

// OrderDelete removes the order row permanently and redirects to the list.
func (h *PanelHandler) OrderDelete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "panel_order_delete")

	order, err := h.orderByID(c, false)
	if err != nil {
		return err
	}

	if err := h.DB.WithContext(ctx).Select("Lines").Delete(order).Error; err != nil {
		l.Error("order_delete_failed", "status", 500, "order_id", order.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	metrics.OrderDeletesTotal.Inc()
	h.publish(c, map[string]interface{}{
		"type":    "order_deleted",
		"orderID": order.ID,
	})
	l.Info("order_deleted", "order_id", order.ID)

	return c.Redirect(http.StatusFound, panelListPath)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
