package lothandler

import "time"

type CreateLotBody struct {
	Name          string    `json:"name"          binding:"required"       example:"Antique clock"`
	Location      string    `json:"location"      binding:"required"       example:"Copenhagen"`
	OnlineAuction bool      `json:"onlineAuction"                          example:"true"`
	StartingPrice int64     `json:"startingPrice" binding:"gte=0"          example:"100"`
	MinimumBid    int64     `json:"minimumBid"    binding:"gte=0"          example:"10"`
	EndTime       time.Time `json:"endTime"       binding:"required"       example:"2025-07-27T16:05:05Z"`
} // @name CreateLotRequest

type UpdateLotBody struct {
	Name          string `json:"name"          binding:"required"`
	Location      string `json:"location"      binding:"required"`
	OnlineAuction bool   `json:"onlineAuction"`
	StartingPrice int64  `json:"startingPrice" binding:"gte=0"`
	MinimumBid    int64  `json:"minimumBid"    binding:"gte=0"`
} // @name UpdateLotRequest

type SubmitBidBody struct {
	Amount    int64     `json:"amount"    binding:"required,gt=0" example:"115"`
	BidderID  string    `json:"bidderId"  binding:"required"      example:"user123"`
	Timestamp time.Time `json:"timestamp"`
} // @name SubmitBidRequest

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse
