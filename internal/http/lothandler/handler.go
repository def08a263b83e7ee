package lothandler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lotservice/internal/lots"
	"lotservice/internal/services/lot"
)

type Handler struct {
	svc lot.ILotService
}

func New(svc lot.ILotService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r *gin.Engine, auth gin.HandlerFunc) {
	// Lot reads are public.
	r.GET("/lots", h.list)
	r.GET("/lots/:id", h.get)

	protected := r.Group("", auth)
	protected.POST("/lots", h.create)
	protected.PUT("/lots/:id", h.update)
	protected.DELETE("/lots/:id", h.delete)
	protected.POST("/lots/:id/bid", h.bid)
	protected.POST("/lots/:id/close", h.close)
}

// @Summary		Create a lot
// @Description	Creates a new open lot with an empty bid list.
// @Tags			Lots
// @Param			body	body		CreateLotBody	true	"Lot payload"
// @Success		201		{object}	lots.Lot
// @Failure		400		{object}	ErrorResponse
// @Router			/lots [post]
func (h *Handler) create(ginCtx *gin.Context) {
	var body CreateLotBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	created, err := h.svc.CreateLot(ginCtx.Request.Context(), &lots.Lot{
		Name:          body.Name,
		Location:      body.Location,
		OnlineAuction: body.OnlineAuction,
		StartingPrice: body.StartingPrice,
		MinimumBid:    body.MinimumBid,
		EndTime:       body.EndTime.UTC(),
	})
	if err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusCreated, created)
}

// @Summary		Get lot details
// @Description	Returns the full lot document, bids included.
// @Tags			Lots
// @Param			id	path		string	true	"Lot ID"
// @Success		200	{object}	lots.Lot
// @Failure		404	{object}	ErrorResponse
// @Router			/lots/{id} [get]
func (h *Handler) get(ginCtx *gin.Context) {
	lotDoc, err := h.svc.GetLot(ginCtx.Request.Context(), ginCtx.Param("id"))
	if err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, lotDoc)
}

// @Summary		List lots
// @Tags			Lots
// @Success		200	{array}		lots.Lot
// @Failure		500	{object}	ErrorResponse
// @Router			/lots [get]
func (h *Handler) list(ginCtx *gin.Context) {
	out, err := h.svc.GetLots(ginCtx.Request.Context())
	if err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, out)
}

// @Summary		Update a lot
// @Description	Replaces the administratively mutable lot attributes.
// @Tags			Lots
// @Param			id		path	string			true	"Lot ID"
// @Param			body	body	UpdateLotBody	true	"Lot payload"
// @Success		200		{object}	lots.Lot
// @Failure		404		{object}	ErrorResponse
// @Failure		409		{object}	ErrorResponse
// @Router			/lots/{id} [put]
func (h *Handler) update(ginCtx *gin.Context) {
	var body UpdateLotBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	updated, err := h.svc.UpdateLot(ginCtx.Request.Context(), &lots.Lot{
		ID:            ginCtx.Param("id"),
		Name:          body.Name,
		Location:      body.Location,
		OnlineAuction: body.OnlineAuction,
		StartingPrice: body.StartingPrice,
		MinimumBid:    body.MinimumBid,
	})
	if err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, updated)
}

// @Summary		Delete a lot
// @Description	Administrative delete, independent of auction timing.
// @Tags			Lots
// @Param			id	path	string	true	"Lot ID"
// @Success		204
// @Failure		404	{object}	ErrorResponse
// @Router			/lots/{id} [delete]
func (h *Handler) delete(ginCtx *gin.Context) {
	if err := h.svc.DeleteLot(ginCtx.Request.Context(), ginCtx.Param("id")); err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.Status(http.StatusNoContent)
}

// @Summary		Submit a bid
// @Description	Applies a bid to an open lot. Rejections carry the reason.
// @Tags			Lots
// @Param			id		path	string			true	"Lot ID"
// @Param			body	body	SubmitBidBody	true	"Bid payload"
// @Success		200	{object}	lots.Lot
// @Failure		400	{object}	ErrorResponse
// @Failure		404	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/lots/{id}/bid [post]
func (h *Handler) bid(ginCtx *gin.Context) {
	var body SubmitBidBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	ts := body.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	lotDoc, err := h.svc.SubmitBid(ginCtx.Request.Context(), lots.Bid{
		Amount:    body.Amount,
		BidderID:  body.BidderID,
		LotID:     ginCtx.Param("id"),
		Timestamp: ts.UTC(),
	})
	if err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, lotDoc)
}

// @Summary		Close a lot
// @Description	Idempotent close; determines the winner and requests an invoice.
// @Tags			Lots
// @Param			id	path	string	true	"Lot ID"
// @Success		200	{object}	lots.Lot
// @Failure		404	{object}	ErrorResponse
// @Failure		502	{object}	ErrorResponse
// @Router			/lots/{id}/close [post]
func (h *Handler) close(ginCtx *gin.Context) {
	lotDoc, err := h.svc.CloseLot(ginCtx.Request.Context(), ginCtx.Param("id"))
	if err != nil && !errors.Is(err, lots.ErrNoBids) {
		writeError(ginCtx, err)
		return
	}
	// NoBids is informational; the lot is closed either way.
	ginCtx.JSON(http.StatusOK, lotDoc)
}

// writeError maps domain errors onto HTTP status codes.
func writeError(ginCtx *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case lots.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, lots.ErrLotNotFound):
		status = http.StatusNotFound
	case errors.Is(err, lots.ErrConflict),
		errors.Is(err, lots.ErrLotClosed),
		errors.Is(err, lots.ErrAuctionEnded),
		errors.Is(err, lots.ErrBidBelowStart),
		errors.Is(err, lots.ErrBidNotHigher),
		errors.Is(err, lots.ErrBidBelowIncrement),
		errors.Is(err, lots.ErrDuplicateBid):
		status = http.StatusConflict
	case errors.Is(err, lots.ErrIdentityUnavailable),
		errors.Is(err, lots.ErrDownstreamUnavailable):
		status = http.StatusBadGateway
	}
	ginCtx.JSON(status, &ErrorResponse{Error: err.Error()})
}
