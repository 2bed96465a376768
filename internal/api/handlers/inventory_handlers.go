package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/warehouse-core/internal/domain"
)

type movementRequest struct {
	Type         string     `json:"type" binding:"required,movement_type"`
	SKU          string     `json:"sku" binding:"required,max=64"`
	FromLocation string     `json:"fromLocation"`
	ToLocation   string     `json:"toLocation"`
	Quantity     int        `json:"quantity" binding:"gte=0"`
	ReferenceID  string     `json:"referenceId" binding:"required,max=128"`
	LotNumber    string     `json:"lotNumber"`
	ExpiryDate   *time.Time `json:"expiryDate"`
}

func (r movementRequest) toMovement() domain.Movement {
	return domain.Movement{
		Type:         domain.MovementType(r.Type),
		SKU:          r.SKU,
		FromLocation: r.FromLocation,
		ToLocation:   r.ToLocation,
		Quantity:     r.Quantity,
		ReferenceID:  r.ReferenceID,
		LotNumber:    r.LotNumber,
		ExpiryDate:   r.ExpiryDate,
	}
}

// ApplyMovement applies one movement. A replayed referenceId answers 200
// with the original result, a new movement 201.
func (h *WarehouseHandlers) ApplyMovement(c *gin.Context) error {
	var req movementRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	result, err := h.service.ApplyMovement(c.Request.Context(), req.toMovement())
	if err != nil {
		return err
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, result)
	return nil
}

// ApplyMovements applies a batch; nothing is applied unless every movement succeeds
func (h *WarehouseHandlers) ApplyMovements(c *gin.Context) error {
	var req struct {
		Movements []movementRequest `json:"movements" binding:"required,min=1,max=500,dive"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	movements := make([]domain.Movement, 0, len(req.Movements))
	for _, m := range req.Movements {
		movements = append(movements, m.toMovement())
	}

	results, err := h.service.ApplyMovements(c.Request.Context(), movements)
	if err != nil {
		return err
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
	})
	return nil
}

// GetMovement returns the recorded result of an applied movement
func (h *WarehouseHandlers) GetMovement(c *gin.Context) error {
	result, err := h.service.AppliedMovement(c.Request.Context(), c.Param("referenceId"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, result)
	return nil
}

// GetJournal lists the movements applied to a SKU
func (h *WarehouseHandlers) GetJournal(c *gin.Context) error {
	sku := c.Param("sku")
	entries := h.service.Journal(c.Request.Context(), sku)
	c.JSON(http.StatusOK, gin.H{
		"sku":       sku,
		"movements": entries,
		"count":     len(entries),
	})
	return nil
}

// RegisterItem adds or replaces a catalog item
func (h *WarehouseHandlers) RegisterItem(c *gin.Context) error {
	var req struct {
		SKU             string  `json:"sku" binding:"required,max=64"`
		ReorderPoint    int     `json:"reorderPoint" binding:"gte=0"`
		ReorderQuantity int     `json:"reorderQuantity" binding:"gte=0"`
		UnitCost        float64 `json:"unitCost" binding:"gte=0"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	item, err := h.service.RegisterItem(c.Request.Context(), domain.Item{
		SKU:             req.SKU,
		ReorderPoint:    req.ReorderPoint,
		ReorderQuantity: req.ReorderQuantity,
		UnitCost:        req.UnitCost,
	})
	if err != nil {
		return err
	}

	c.JSON(http.StatusCreated, item)
	return nil
}

// GetItem returns a catalog item
func (h *WarehouseHandlers) GetItem(c *gin.Context) error {
	item, err := h.service.GetItem(c.Request.Context(), c.Param("sku"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, item)
	return nil
}

// ListRecords lists inventory records, optionally narrowed by sku and/or location
func (h *WarehouseHandlers) ListRecords(c *gin.Context) error {
	var query struct {
		SKU      string `form:"sku"`
		Location string `form:"location"`
	}
	if err := bindQuery(c, &query); err != nil {
		return err
	}

	records := h.service.ListRecords(c.Request.Context(), query.SKU, query.Location)
	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
	})
	return nil
}

// GetRecord returns one inventory record
func (h *WarehouseHandlers) GetRecord(c *gin.Context) error {
	rec, err := h.service.GetRecord(c.Request.Context(), c.Param("sku"), c.Param("location"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, rec)
	return nil
}

type flagURI struct {
	SKU      string `uri:"sku" binding:"required"`
	Location string `uri:"location" binding:"required"`
	Flag     string `uri:"flag" binding:"required,stock_flag"`
}

// SetFlag raises an operator flag on a record
func (h *WarehouseHandlers) SetFlag(c *gin.Context) error {
	var uri flagURI
	if err := bindURI(c, &uri); err != nil {
		return err
	}

	ctx := c.Request.Context()
	rec, err := h.service.SetFlag(ctx, uri.SKU, uri.Location, domain.StockFlag(uri.Flag))
	if err != nil {
		return err
	}

	h.logger.Audit(ctx, "set_flag", "inventory_record", uri.SKU+"@"+uri.Location, operator(c), map[string]any{"flag": uri.Flag})
	c.JSON(http.StatusOK, rec)
	return nil
}

// ClearFlag lowers an operator flag on a record
func (h *WarehouseHandlers) ClearFlag(c *gin.Context) error {
	var uri flagURI
	if err := bindURI(c, &uri); err != nil {
		return err
	}

	ctx := c.Request.Context()
	rec, err := h.service.ClearFlag(ctx, uri.SKU, uri.Location, domain.StockFlag(uri.Flag))
	if err != nil {
		return err
	}

	h.logger.Audit(ctx, "clear_flag", "inventory_record", uri.SKU+"@"+uri.Location, operator(c), map[string]any{"flag": uri.Flag})
	c.JSON(http.StatusOK, rec)
	return nil
}

// ListZones lists zones with their current utilization
func (h *WarehouseHandlers) ListZones(c *gin.Context) error {
	zones := h.service.ListZones(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"zones": zones,
		"count": len(zones),
	})
	return nil
}

// GetZone returns a zone and its bins
func (h *WarehouseHandlers) GetZone(c *gin.Context) error {
	zone, bins, err := h.service.GetZone(c.Request.Context(), c.Param("zoneId"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, gin.H{
		"zone": zone,
		"bins": bins,
	})
	return nil
}

// SetZoneStatus activates or deactivates a zone
func (h *WarehouseHandlers) SetZoneStatus(c *gin.Context) error {
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	ctx := c.Request.Context()
	zoneID := c.Param("zoneId")
	zone, err := h.service.SetZoneActive(ctx, zoneID, *req.Active)
	if err != nil {
		return err
	}

	h.logger.Audit(ctx, "set_zone_active", "zone", zoneID, operator(c), map[string]any{"active": *req.Active})
	c.JSON(http.StatusOK, zone)
	return nil
}

// GetStats returns the current warehouse stats snapshot
func (h *WarehouseHandlers) GetStats(c *gin.Context) error {
	c.JSON(http.StatusOK, h.service.Stats(c.Request.Context()))
	return nil
}
