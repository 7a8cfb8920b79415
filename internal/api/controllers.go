package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/events"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/order"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/pending"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/signer"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/venue"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/pkg/fixedpoint"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// requestBody is the JSON shape of submit and amend calls. Numeric fields
// arrive as strings so clients never round through float64.
type requestBody struct {
	ClientRequestID string `json:"client_request_id"`
	Kind            string `json:"kind"`
	Venue           string `json:"venue"`
	Market          string `json:"market"`
	Side            string `json:"side"`
	Price           string `json:"price"`
	Quantity        string `json:"quantity"`
	Address         string `json:"address"`
	Amount          string `json:"amount"`
	GasPrice        string `json:"gas_price"`
}

func (b *requestBody) payload() (pending.Payload, error) {
	p := pending.Payload{
		Venue:   strings.TrimSpace(b.Venue),
		Market:  b.Market,
		Side:    b.Side,
		Address: b.Address,
	}
	var err error
	if b.Price != "" {
		if p.Price, err = fixedpoint.ParsePrice(b.Price); err != nil {
			return pending.Payload{}, err
		}
	}
	if b.Quantity != "" {
		if p.Quantity, err = fixedpoint.ParseQuantity(b.Quantity); err != nil {
			return pending.Payload{}, err
		}
	}
	if b.Amount != "" {
		if p.Amount, err = decimal.NewFromString(b.Amount); err != nil {
			return pending.Payload{}, err
		}
	}
	if b.GasPrice != "" {
		if p.GasPrice, err = decimal.NewFromString(b.GasPrice); err != nil {
			return pending.Payload{}, err
		}
	}
	return p, nil
}

var validKinds = map[pending.Kind]bool{
	pending.KindApprove:     true,
	pending.KindTransfer:    true,
	pending.KindOrderInsert: true,
	pending.KindOrderCancel: true,
	pending.KindOrderAmend:  true,
}

func (s *Server) submitRequest(c *gin.Context) {
	var body requestBody
	if err := c.BindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "invalid request payload",
		})
		return
	}

	kind := pending.Kind(strings.ToUpper(strings.TrimSpace(body.Kind)))
	if body.ClientRequestID == "" || body.Venue == "" || !validKinds[kind] {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_REQUEST",
			"error": "client_request_id, venue and a valid kind are required",
		})
		return
	}

	payload, err := body.payload()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_NUMBER",
			"error": err.Error(),
		})
		return
	}

	req, err := s.Coord.Submit(c.Request.Context(), pending.ClientRequestID(body.ClientRequestID), kind, payload)
	if err != nil {
		s.writeRequestError(c, req, err)
		return
	}
	c.JSON(http.StatusAccepted, req)
}

func (s *Server) getRequest(c *gin.Context) {
	req, err := s.Coord.Get(pending.ClientRequestID(c.Param("id")))
	if err != nil {
		s.writeRequestError(c, req, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) listRequests(c *gin.Context) {
	stateFilter := pending.State(strings.ToUpper(c.Query("state")))
	kindFilter := pending.Kind(strings.ToUpper(c.Query("kind")))

	reqs := s.Cache.Snapshot(func(r pending.Request) bool {
		if stateFilter != "" && r.State != stateFilter {
			return false
		}
		if kindFilter != "" && r.Kind != kindFilter {
			return false
		}
		return true
	})
	c.JSON(http.StatusOK, reqs)
}

func (s *Server) amendRequest(c *gin.Context) {
	var body requestBody
	if err := c.BindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "invalid request payload",
		})
		return
	}
	payload, err := body.payload()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_NUMBER",
			"error": err.Error(),
		})
		return
	}

	req, err := s.Coord.Amend(c.Request.Context(), pending.ClientRequestID(c.Param("id")), payload)
	if err != nil {
		s.writeRequestError(c, req, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) cancelRequest(c *gin.Context) {
	req, err := s.Coord.Cancel(c.Request.Context(), pending.ClientRequestID(c.Param("id")))
	if err != nil {
		s.writeRequestError(c, req, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// finalizeRequest records a venue settlement notification. Venues may
// deliver the same notification more than once; repeats return the settled
// snapshot instead of a conflict.
func (s *Server) finalizeRequest(c *gin.Context) {
	id := pending.ClientRequestID(c.Param("id"))

	// Body is optional; a venue id attaches the late ack when the submit
	// call timed out before one arrived.
	var body struct {
		VenueRequestID string `json:"venue_request_id"`
	}
	_ = c.ShouldBindJSON(&body)
	if body.VenueRequestID != "" {
		if cur, gerr := s.Coord.Get(id); gerr == nil && cur.State == pending.StatePending {
			if acked, aerr := s.Coord.Acknowledge(id, pending.VenueRequestID(body.VenueRequestID)); aerr != nil {
				s.writeRequestError(c, acked, aerr)
				return
			}
		}
	}

	req, err := s.Coord.Finalize(id)
	if err != nil {
		if errors.Is(err, pending.ErrAlreadyFinalized) {
			_ = s.Cache.MarkFinalized(id)
			c.JSON(http.StatusOK, req)
			return
		}
		s.writeRequestError(c, req, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) cancelAll(c *gin.Context) {
	var body struct {
		Kind string `json:"kind"`
	}
	// Body is optional; an empty kind cancels every live request.
	_ = c.BindJSON(&body)
	kind := pending.Kind(strings.ToUpper(strings.TrimSpace(body.Kind)))
	if kind != "" && !validKinds[kind] {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_REQUEST",
			"error": "unknown request kind",
		})
		return
	}

	res := s.Coord.CancelAll(c.Request.Context(), kind)
	c.JSON(http.StatusOK, res)
}

func (s *Server) getOpenOrders(c *gin.Context) {
	orders := s.Coord.Orders().Open()
	if orders == nil {
		orders = []order.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Metrics.Snapshot())
}

func (s *Server) getPoolStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.Pool.Stats())
}

func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":       s.Meta.Version,
		"venues":        s.Venues.Venues(),
		"live_requests": s.Cache.Len(),
		"pool":          s.Pool.Stats(),
		"order_subs":    s.Hub.Subscribers(events.ChannelOrder),
		"trade_subs":    s.Hub.Subscribers(events.ChannelTrade),
		"transfer_subs": s.Hub.Subscribers(events.ChannelTransfer),
	})
}

// writeRequestError maps coordinator errors onto HTTP statuses. The request
// snapshot, when present, rides along so callers see the resolved state.
func (s *Server) writeRequestError(c *gin.Context, req pending.Request, err error) {
	var rej *venue.RejectionError
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch {
	case errors.Is(err, pending.ErrDuplicateKey):
		status, code = http.StatusConflict, "DUPLICATE_REQUEST"
	case errors.Is(err, pending.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, pending.ErrAlreadyFinalized):
		status, code = http.StatusConflict, "ALREADY_FINALIZED"
	case errors.Is(err, pending.ErrAlreadyCancelled):
		status, code = http.StatusConflict, "ALREADY_CANCELLED"
	case errors.Is(err, pending.ErrInvalidTransition):
		status, code = http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, signer.ErrPoolExhausted):
		status, code = http.StatusServiceUnavailable, "NO_RESOURCE"
	case errors.Is(err, venue.ErrTimeout):
		status, code = http.StatusGatewayTimeout, "VENUE_TIMEOUT"
	case errors.Is(err, venue.ErrUnknownVenue):
		status, code = http.StatusBadRequest, "UNKNOWN_VENUE"
	case errors.As(err, &rej):
		status, code = http.StatusUnprocessableEntity, "VENUE_REJECTED"
	}

	resp := gin.H{"code": code, "error": err.Error()}
	if req.ClientRequestID != "" {
		resp["request"] = req
	}
	c.JSON(status, resp)
}
