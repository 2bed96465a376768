package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/warehouse-core/internal/domain"
)

type lineRequest struct {
	SKU      string `json:"sku" binding:"required,max=64"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

// CreateOrder creates a pending order
func (h *WarehouseHandlers) CreateOrder(c *gin.Context) error {
	var req struct {
		Customer string        `json:"customer" binding:"required"`
		Priority string        `json:"priority" binding:"omitempty,priority"`
		Lines    []lineRequest `json:"lines" binding:"required,min=1,dive"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	lines := make([]domain.OrderLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, domain.OrderLine{SKU: l.SKU, Quantity: l.Quantity})
	}
	priority := domain.Priority(req.Priority)
	if priority == "" {
		priority = domain.PriorityNormal
	}

	order, err := h.service.CreateOrder(c.Request.Context(), req.Customer, priority, lines)
	if err != nil {
		return err
	}

	c.JSON(http.StatusCreated, order)
	return nil
}

// GetOrder returns an order
func (h *WarehouseHandlers) GetOrder(c *gin.Context) error {
	order, err := h.service.GetOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, order)
	return nil
}

// ListOrders lists orders, optionally by status
func (h *WarehouseHandlers) ListOrders(c *gin.Context) error {
	var query struct {
		Status string `form:"status" binding:"omitempty,order_status"`
	}
	if err := bindQuery(c, &query); err != nil {
		return err
	}

	orders := h.service.ListOrders(c.Request.Context(), domain.OrderStatus(query.Status))
	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
	return nil
}

// TransitionOrder moves an order to the requested status. picking needs an
// assignee; packed needs a carrier and tracking number.
func (h *WarehouseHandlers) TransitionOrder(c *gin.Context) error {
	var req struct {
		Status         string `json:"status" binding:"required,order_status"`
		Assignee       string `json:"assignee"`
		Carrier        string `json:"carrier" binding:"omitempty,carrier_code"`
		TrackingNumber string `json:"trackingNumber"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	order, err := h.service.TransitionOrder(c.Request.Context(), c.Param("orderId"), domain.OrderStatus(req.Status), domain.TransitionPayload{
		Assignee:       req.Assignee,
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		return err
	}

	c.JSON(http.StatusOK, order)
	return nil
}

// CreateShipment registers an expected inbound shipment
func (h *WarehouseHandlers) CreateShipment(c *gin.Context) error {
	var req struct {
		PONumber     string    `json:"poNumber" binding:"required"`
		Supplier     string    `json:"supplier" binding:"required"`
		ExpectedDate time.Time `json:"expectedDate" binding:"required"`
		Lines        []struct {
			SKU             string `json:"sku" binding:"required,max=64"`
			Quantity        int    `json:"quantity" binding:"required,gt=0"`
			PutawayLocation string `json:"putawayLocation" binding:"required"`
		} `json:"lines" binding:"required,min=1,dive"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	lines := make([]domain.NewShipmentLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, domain.NewShipmentLine{SKU: l.SKU, Quantity: l.Quantity, PutawayLocation: l.PutawayLocation})
	}

	shipment, err := h.service.CreateShipment(c.Request.Context(), req.PONumber, req.Supplier, req.ExpectedDate, lines)
	if err != nil {
		return err
	}

	c.JSON(http.StatusCreated, shipment)
	return nil
}

// GetShipment returns a shipment
func (h *WarehouseHandlers) GetShipment(c *gin.Context) error {
	shipment, err := h.service.GetShipment(c.Request.Context(), c.Param("shipmentId"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, shipment)
	return nil
}

// ListShipments lists shipments, optionally by status
func (h *WarehouseHandlers) ListShipments(c *gin.Context) error {
	var query struct {
		Status string `form:"status" binding:"omitempty,shipment_status"`
	}
	if err := bindQuery(c, &query); err != nil {
		return err
	}

	shipments := h.service.ListShipments(c.Request.Context(), domain.ShipmentStatus(query.Status))
	c.JSON(http.StatusOK, gin.H{
		"shipments": shipments,
		"count":     len(shipments),
	})
	return nil
}

// TransitionShipment moves a shipment to the requested status
func (h *WarehouseHandlers) TransitionShipment(c *gin.Context) error {
	var req struct {
		Status string `json:"status" binding:"required,shipment_status"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	shipment, err := h.service.TransitionShipment(c.Request.Context(), c.Param("shipmentId"), domain.ShipmentStatus(req.Status))
	if err != nil {
		return err
	}

	c.JSON(http.StatusOK, shipment)
	return nil
}

// ReceiveUnits books units of a receiving shipment into the staging bin
func (h *WarehouseHandlers) ReceiveUnits(c *gin.Context) error {
	var req struct {
		SKU         string `json:"sku" binding:"required"`
		Quantity    int    `json:"quantity" binding:"required,gt=0"`
		ReferenceID string `json:"referenceId" binding:"required,max=128"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	shipment, result, err := h.service.ReceiveUnits(c.Request.Context(), c.Param("shipmentId"), req.SKU, req.Quantity, req.ReferenceID)
	if err != nil {
		return err
	}

	c.JSON(http.StatusOK, gin.H{
		"shipment": shipment,
		"movement": result,
	})
	return nil
}
