package handlers

import (
	stderrors "errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/wms-platform/warehouse-core/internal/application"
	"github.com/wms-platform/warehouse-core/internal/domain"
	"github.com/wms-platform/warehouse-core/pkg/errors"
	"github.com/wms-platform/warehouse-core/pkg/logging"
	"github.com/wms-platform/warehouse-core/pkg/middleware"
)

// OperatorHeader carries the id of the operator acting through the API
const OperatorHeader = "X-Operator-ID"

// WarehouseHandlers exposes the warehouse operations over HTTP
type WarehouseHandlers struct {
	service *application.WarehouseService
	logger  *logging.Logger
}

// NewWarehouseHandlers creates a new WarehouseHandlers
func NewWarehouseHandlers(service *application.WarehouseService, logger *logging.Logger) *WarehouseHandlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &WarehouseHandlers{
		service: service,
		logger:  logger.WithComponent("api"),
	}
}

// RegisterRoutes registers every warehouse route on the router
func (h *WarehouseHandlers) RegisterRoutes(router *gin.RouterGroup) {
	movements := router.Group("/movements")
	{
		movements.POST("", middleware.WrapHandler(h.ApplyMovement))
		movements.POST("/batch", middleware.WrapHandler(h.ApplyMovements))
		movements.GET("/:referenceId", middleware.WrapHandler(h.GetMovement))
	}

	items := router.Group("/items")
	{
		items.POST("", middleware.WrapHandler(h.RegisterItem))
		items.GET("/:sku", middleware.WrapHandler(h.GetItem))
		items.GET("/:sku/journal", middleware.WrapHandler(h.GetJournal))
	}

	records := router.Group("/records")
	{
		records.GET("", middleware.WrapHandler(h.ListRecords))
		records.GET("/:sku/:location", middleware.WrapHandler(h.GetRecord))
		records.PUT("/:sku/:location/flags/:flag", middleware.WrapHandler(h.SetFlag))
		records.DELETE("/:sku/:location/flags/:flag", middleware.WrapHandler(h.ClearFlag))
	}

	zones := router.Group("/zones")
	{
		zones.GET("", middleware.WrapHandler(h.ListZones))
		zones.GET("/:zoneId", middleware.WrapHandler(h.GetZone))
		zones.PUT("/:zoneId/status", middleware.WrapHandler(h.SetZoneStatus))
	}

	orders := router.Group("/orders")
	{
		orders.POST("", middleware.WrapHandler(h.CreateOrder))
		orders.GET("", middleware.WrapHandler(h.ListOrders))
		orders.GET("/:orderId", middleware.WrapHandler(h.GetOrder))
		orders.POST("/:orderId/transitions", middleware.WrapHandler(h.TransitionOrder))
	}

	shipments := router.Group("/shipments")
	{
		shipments.POST("", middleware.WrapHandler(h.CreateShipment))
		shipments.GET("", middleware.WrapHandler(h.ListShipments))
		shipments.GET("/:shipmentId", middleware.WrapHandler(h.GetShipment))
		shipments.POST("/:shipmentId/transitions", middleware.WrapHandler(h.TransitionShipment))
		shipments.POST("/:shipmentId/receipts", middleware.WrapHandler(h.ReceiveUnits))
	}

	tasks := router.Group("/tasks")
	{
		tasks.POST("", middleware.WrapHandler(h.CreateTask))
		tasks.GET("", middleware.WrapHandler(h.ListTasks))
		tasks.GET("/next", middleware.WrapHandler(h.NextTask))
		tasks.GET("/:taskId", middleware.WrapHandler(h.GetTask))
		tasks.POST("/:taskId/assign", middleware.WrapHandler(h.AssignTask))
		tasks.POST("/:taskId/start", middleware.WrapHandler(h.StartTask))
		tasks.POST("/:taskId/complete", middleware.WrapHandler(h.CompleteTask))
		tasks.POST("/:taskId/cancel", middleware.WrapHandler(h.CancelTask))
	}

	counts := router.Group("/counts")
	{
		counts.POST("", middleware.WrapHandler(h.ScheduleCount))
		counts.GET("", middleware.WrapHandler(h.ListCounts))
		counts.GET("/:countId", middleware.WrapHandler(h.GetCount))
		counts.POST("/:countId/start", middleware.WrapHandler(h.StartCount))
		counts.POST("/:countId/submissions", middleware.WrapHandler(h.SubmitCount))
		counts.POST("/:countId/approve", middleware.WrapHandler(h.ApproveCount))
	}

	router.GET("/stats", middleware.WrapHandler(h.GetStats))
}

// EnumTags are the request validation tags for warehouse enums
func EnumTags() []middleware.EnumTag {
	return []middleware.EnumTag{
		{Tag: "movement_type", Values: []string{
			string(domain.MovementInbound), string(domain.MovementOutbound),
			string(domain.MovementTransfer), string(domain.MovementAdjustment),
		}},
		{Tag: "order_status", Values: []string{
			string(domain.OrderStatusPending), string(domain.OrderStatusAllocated),
			string(domain.OrderStatusPicking), string(domain.OrderStatusPicked),
			string(domain.OrderStatusPacking), string(domain.OrderStatusPacked),
			string(domain.OrderStatusShipped), string(domain.OrderStatusCancelled),
		}},
		{Tag: "shipment_status", Values: []string{
			string(domain.ShipmentStatusPending), string(domain.ShipmentStatusInTransit),
			string(domain.ShipmentStatusReceiving), string(domain.ShipmentStatusPutaway),
			string(domain.ShipmentStatusCompleted), string(domain.ShipmentStatusCancelled),
		}},
		{Tag: "task_type", Values: []string{
			string(domain.TaskTypePutaway), string(domain.TaskTypePick), string(domain.TaskTypePack),
			string(domain.TaskTypeCount), string(domain.TaskTypeReplenish), string(domain.TaskTypeMove),
			string(domain.TaskTypeReceive), string(domain.TaskTypeShip),
		}},
		{Tag: "task_status", Values: []string{
			string(domain.TaskStatusPending), string(domain.TaskStatusAssigned),
			string(domain.TaskStatusInProgress), string(domain.TaskStatusCompleted),
			string(domain.TaskStatusCancelled),
		}},
		{Tag: "count_status", Values: []string{
			string(domain.CountStatusScheduled), string(domain.CountStatusInProgress),
			string(domain.CountStatusPendingReview), string(domain.CountStatusCompleted),
		}},
		{Tag: "stock_flag", Values: []string{
			string(domain.FlagDamaged), string(domain.FlagQuarantine), string(domain.FlagReserved),
		}},
		{Tag: "priority", Values: []string{
			string(domain.PriorityLow), string(domain.PriorityNormal),
			string(domain.PriorityHigh), string(domain.PriorityUrgent),
		}},
		{Tag: "carrier_code", Values: domain.CarrierCodes(), CaseInsensitive: true},
	}
}

// RegisterValidation installs the warehouse enum tags on gin's validator
func RegisterValidation() error {
	return middleware.RegisterEnumTags(EnumTags()...)
}

// badRequest keeps validator errors intact for the error handler and turns
// malformed bodies into a 400
func badRequest(err error) error {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		return err
	}
	return errors.ErrBadRequest("malformed request").Wrap(err)
}

func bindJSON(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return badRequest(err)
	}
	return nil
}

func bindQuery(c *gin.Context, req any) error {
	if err := c.ShouldBindQuery(req); err != nil {
		return badRequest(err)
	}
	return nil
}

func bindURI(c *gin.Context, req any) error {
	if err := c.ShouldBindUri(req); err != nil {
		return badRequest(err)
	}
	return nil
}

func operator(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(OperatorHeader)); id != "" {
		return id
	}
	return "anonymous"
}
