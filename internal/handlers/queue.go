package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"branchqueue/internal/models"
	"branchqueue/internal/queue"
	"branchqueue/internal/response"
	"branchqueue/internal/snapshot"

	"github.com/gin-gonic/gin"
)

// QueueService is the mutation and query surface of the queue core.
type QueueService interface {
	CreateTicket(ctx context.Context, divisionID uint, in queue.CreateTicketInput) (*models.Ticket, error)
	Next(ctx context.Context, divisionID, terminalID uint) (*models.Ticket, error)
	Skip(ctx context.Context, ticketID uint) (*models.Ticket, error)
	CallSkipped(ctx context.Context, ticketID, terminalID uint) (*models.Ticket, error)
	Delete(ctx context.Context, ticketID uint) error
	EndTransaction(ctx context.Context, ticketID uint) (*models.Ticket, error)
	Estimate(ctx context.Context, divisionID uint, priorityLevel int) (int, error)
	AllWaiting(ctx context.Context, divisionID *uint) (*queue.WaitingList, error)
}

// SnapshotReader serves division snapshots, normally through the cache.
type SnapshotReader interface {
	Get(ctx context.Context, divisionID uint) (*snapshot.Snapshot, error)
}

type QueueHandler struct {
	svc       QueueService
	snapshots SnapshotReader
}

func NewQueueHandler(svc QueueService, snapshots SnapshotReader) *QueueHandler {
	return &QueueHandler{svc: svc, snapshots: snapshots}
}

// Register mounts the queue routes on r.
func (h *QueueHandler) Register(r gin.IRouter) {
	divisions := r.Group("/divisions")
	{
		divisions.POST("/:id/tickets", h.CreateTicket)
		divisions.POST("/:id/next", h.Next)
		divisions.GET("/:id/queue", h.Queue)
		divisions.GET("/:id/estimate", h.Estimate)
	}
	r.GET("/waiting", h.Waiting)

	tickets := r.Group("/tickets")
	{
		tickets.POST("/:id/skip", h.Skip)
		tickets.POST("/:id/call", h.CallSkipped)
		tickets.POST("/:id/end", h.End)
		tickets.DELETE("/:id", h.Delete)
	}
}

type CreateTicketRequest struct {
	CustomerName    string `json:"customer_name" example:"Ivan Petrov"`
	CustomerAccount string `json:"customer_account" example:"40817810099910004312"`
	PriorityLevel   int    `json:"priority_level" binding:"min=0" example:"1"`
}

type TerminalRequest struct {
	TerminalID uint `json:"terminal_id" binding:"required" example:"3"`
}

type EstimateResponse struct {
	DivisionID    uint `json:"division_id"`
	PriorityLevel int  `json:"priority_level"`
	EstimatedWait int  `json:"estimated_wait"` // minutes
}

func pathID(c *gin.Context, code string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, code, "invalid identifier", nil)
		return 0, false
	}
	return uint(id), true
}

// writeError maps queue errors to HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrDivisionNotFound):
		response.Error(c, http.StatusNotFound, "DIVISION_NOT_FOUND", "division not found", nil)
	case errors.Is(err, queue.ErrTicketNotFound):
		response.Error(c, http.StatusNotFound, "TICKET_NOT_FOUND", "ticket not found", nil)
	case errors.Is(err, queue.ErrTerminalNotFound):
		response.Error(c, http.StatusNotFound, "TERMINAL_NOT_FOUND", "terminal not found", nil)
	case errors.Is(err, queue.ErrQueueEmpty):
		response.Error(c, http.StatusNotFound, "QUEUE_EMPTY", "no waiting tickets", nil)
	case errors.Is(err, queue.ErrInvalidTransition):
		response.Error(c, http.StatusConflict, "INVALID_TRANSITION", "ticket status does not allow this action", nil)
	case errors.Is(err, queue.ErrTerminalDivision):
		response.Error(c, http.StatusBadRequest, "TERMINAL_DIVISION_MISMATCH", "terminal belongs to another division", nil)
	case errors.Is(err, queue.ErrInvalidPriority):
		response.Error(c, http.StatusBadRequest, "INVALID_PRIORITY", "priority level must not be negative", nil)
	default:
		response.Error(c, http.StatusInternalServerError, "DB_ERROR", "internal error", err)
	}
}

// CreateTicket issues a ticket in a division
// @Summary		Create ticket
// @Description	Issues the next queue number of the division and appends the ticket to its waiting order
// @Tags			tickets
// @Accept			json
// @Produce		json
// @Param			id		path		int					true	"Division ID"
// @Param			input	body		CreateTicketRequest	true	"Customer data"
// @Success		201		{object}	snapshot.TicketView
// @Failure		400		{object}	response.ErrorResponse	"INVALID_DIVISION_ID, VALIDATION_ERROR"
// @Failure		404		{object}	response.ErrorResponse	"DIVISION_NOT_FOUND"
// @Failure		500		{object}	response.ErrorResponse	"DB_ERROR"
// @Router			/api/divisions/{id}/tickets [post]
func (h *QueueHandler) CreateTicket(c *gin.Context) {
	divisionID, ok := pathID(c, "INVALID_DIVISION_ID")
	if !ok {
		return
	}
	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", err)
		return
	}

	ticket, err := h.svc.CreateTicket(c.Request.Context(), divisionID, queue.CreateTicketInput{
		CustomerName:    req.CustomerName,
		CustomerAccount: req.CustomerAccount,
		PriorityLevel:   req.PriorityLevel,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snapshot.NewTicketView(ticket))
}

// Next calls the next ticket to a terminal
// @Summary		Call next ticket
// @Description	Completes the terminal's current ticket and calls the first ticket in serving order
// @Tags			tickets
// @Accept			json
// @Produce		json
// @Param			id		path		int				true	"Division ID"
// @Param			input	body		TerminalRequest	true	"Terminal"
// @Success		200		{object}	snapshot.TicketView
// @Failure		400		{object}	response.ErrorResponse	"INVALID_DIVISION_ID, VALIDATION_ERROR, TERMINAL_DIVISION_MISMATCH"
// @Failure		404		{object}	response.ErrorResponse	"DIVISION_NOT_FOUND, TERMINAL_NOT_FOUND, QUEUE_EMPTY"
// @Failure		500		{object}	response.ErrorResponse	"DB_ERROR"
// @Router			/api/divisions/{id}/next [post]
func (h *QueueHandler) Next(c *gin.Context) {
	divisionID, ok := pathID(c, "INVALID_DIVISION_ID")
	if !ok {
		return
	}
	var req TerminalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "terminal_id is required", err)
		return
	}

	ticket, err := h.svc.Next(c.Request.Context(), divisionID, req.TerminalID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot.NewTicketView(ticket))
}

// Skip moves a ticket to the skipped list
// @Summary		Skip ticket
// @Description	Excludes a waiting ticket from the serving order, or returns a no-show from its terminal
// @Tags			tickets
// @Produce		json
// @Param			id	path		int	true	"Ticket ID"
// @Success		200	{object}	snapshot.TicketView
// @Failure		400	{object}	response.ErrorResponse	"INVALID_TICKET_ID"
// @Failure		404	{object}	response.ErrorResponse	"TICKET_NOT_FOUND"
// @Failure		409	{object}	response.ErrorResponse	"INVALID_TRANSITION"
// @Router			/api/tickets/{id}/skip [post]
func (h *QueueHandler) Skip(c *gin.Context) {
	ticketID, ok := pathID(c, "INVALID_TICKET_ID")
	if !ok {
		return
	}
	ticket, err := h.svc.Skip(c.Request.Context(), ticketID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot.NewTicketView(ticket))
}

// CallSkipped calls a skipped ticket to a terminal
// @Summary		Call skipped ticket
// @Tags			tickets
// @Accept			json
// @Produce		json
// @Param			id		path		int				true	"Ticket ID"
// @Param			input	body		TerminalRequest	true	"Terminal"
// @Success		200		{object}	snapshot.TicketView
// @Failure		400		{object}	response.ErrorResponse	"INVALID_TICKET_ID, VALIDATION_ERROR, TERMINAL_DIVISION_MISMATCH"
// @Failure		404		{object}	response.ErrorResponse	"TICKET_NOT_FOUND, TERMINAL_NOT_FOUND"
// @Failure		409		{object}	response.ErrorResponse	"INVALID_TRANSITION"
// @Router			/api/tickets/{id}/call [post]
func (h *QueueHandler) CallSkipped(c *gin.Context) {
	ticketID, ok := pathID(c, "INVALID_TICKET_ID")
	if !ok {
		return
	}
	var req TerminalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "terminal_id is required", err)
		return
	}
	ticket, err := h.svc.CallSkipped(c.Request.Context(), ticketID, req.TerminalID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot.NewTicketView(ticket))
}

// End completes the ticket being served
// @Summary		End transaction
// @Tags			tickets
// @Produce		json
// @Param			id	path		int	true	"Ticket ID"
// @Success		200	{object}	snapshot.TicketView
// @Failure		404	{object}	response.ErrorResponse	"TICKET_NOT_FOUND"
// @Failure		409	{object}	response.ErrorResponse	"INVALID_TRANSITION"
// @Router			/api/tickets/{id}/end [post]
func (h *QueueHandler) End(c *gin.Context) {
	ticketID, ok := pathID(c, "INVALID_TICKET_ID")
	if !ok {
		return
	}
	ticket, err := h.svc.EndTransaction(c.Request.Context(), ticketID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot.NewTicketView(ticket))
}

// Delete removes a ticket
// @Summary		Delete ticket
// @Tags			tickets
// @Produce		json
// @Param			id	path		int	true	"Ticket ID"
// @Success		200	{object}	response.SuccessResponse
// @Failure		404	{object}	response.ErrorResponse	"TICKET_NOT_FOUND"
// @Failure		409	{object}	response.ErrorResponse	"INVALID_TRANSITION"
// @Router			/api/tickets/{id} [delete]
func (h *QueueHandler) Delete(c *gin.Context) {
	ticketID, ok := pathID(c, "INVALID_TICKET_ID")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), ticketID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Message: "ticket deleted"})
}

// Queue returns the division's current queue state
// @Summary		Division queue
// @Description	Same state the websocket pushes as QUEUE_UPDATE
// @Tags			divisions
// @Produce		json
// @Param			id	path		int	true	"Division ID"
// @Success		200	{object}	snapshot.Snapshot
// @Failure		404	{object}	response.ErrorResponse	"DIVISION_NOT_FOUND"
// @Router			/api/divisions/{id}/queue [get]
func (h *QueueHandler) Queue(c *gin.Context) {
	divisionID, ok := pathID(c, "INVALID_DIVISION_ID")
	if !ok {
		return
	}
	snap, err := h.snapshots.Get(c.Request.Context(), divisionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Estimate returns the expected wait for a new ticket
// @Summary		Estimated wait
// @Tags			divisions
// @Produce		json
// @Param			id				path		int	true	"Division ID"
// @Param			priority_level	query		int	false	"Priority level"	default(0)
// @Success		200				{object}	EstimateResponse
// @Failure		400				{object}	response.ErrorResponse	"INVALID_PRIORITY"
// @Failure		404				{object}	response.ErrorResponse	"DIVISION_NOT_FOUND"
// @Router			/api/divisions/{id}/estimate [get]
func (h *QueueHandler) Estimate(c *gin.Context) {
	divisionID, ok := pathID(c, "INVALID_DIVISION_ID")
	if !ok {
		return
	}
	level, err := strconv.Atoi(c.DefaultQuery("priority_level", "0"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_PRIORITY", "priority_level must be an integer", nil)
		return
	}
	minutes, err := h.svc.Estimate(c.Request.Context(), divisionID, level)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, EstimateResponse{DivisionID: divisionID, PriorityLevel: level, EstimatedWait: minutes})
}

// Waiting lists waiting tickets of all divisions
// @Summary		Waiting tickets
// @Description	Same list the websocket returns for GET_ALL_WAITING_QUEUES
// @Tags			divisions
// @Produce		json
// @Param			division_id	query		int	false	"Limit to one division"
// @Success		200			{object}	queue.WaitingList
// @Router			/api/waiting [get]
func (h *QueueHandler) Waiting(c *gin.Context) {
	var divisionID *uint
	if raw := c.Query("division_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "INVALID_DIVISION_ID", "invalid identifier", nil)
			return
		}
		v := uint(id)
		divisionID = &v
	}
	list, err := h.svc.AllWaiting(c.Request.Context(), divisionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
