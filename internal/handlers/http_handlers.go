package handlers

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"easybet/internal/amount"
	"easybet/internal/auth"
	apperrors "easybet/internal/errors"
	"easybet/internal/journal"
	"easybet/internal/models"
	"easybet/internal/services"
)

const callerKey = "easybet.caller"

// HTTPHandler holds the dependencies for the HTTP handlers, like the lottery service.
type HTTPHandler struct {
	service *services.LotteryService
	tokens  auth.JWT
	unit    amount.Unit
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.LotteryService, tokens auth.JWT, unit amount.Unit) *HTTPHandler {
	return &HTTPHandler{
		service: service,
		tokens:  tokens,
		unit:    unit,
	}
}

// RegisterRoutes registers all the application routes. Reads are public,
// mutations need a bearer token whose subject is the calling address.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) { Ok(c, gin.H{"status": "ok"}, nil) })

	api := router.Group("/api")
	api.GET("/info", h.Info)
	api.GET("/lotteries", h.ListLotteries)
	api.GET("/lotteries/:id", h.GetLottery)
	api.GET("/lotteries/:id/tickets", h.GetLotteryTickets)
	api.GET("/lotteries/:id/winners", h.GetWinningTickets)
	api.GET("/lotteries/:id/export.csv", h.ExportTicketsCSV)
	api.GET("/tickets/:id", h.GetTicket)
	api.GET("/tickets/:id/listing", h.GetListing)
	api.GET("/listings", h.ListActiveListings)
	api.GET("/users/:address/tickets", h.GetUserTickets)
	api.GET("/accounts/:address/balance", h.BalanceOf)
	api.GET("/balance", h.GetBalance)
	api.GET("/events", h.ListEvents)

	authed := api.Group("")
	authed.Use(h.AuthMiddleware())
	authed.POST("/lotteries", h.CreateLottery)
	authed.POST("/lotteries/:id/end-sales", h.EndSales)
	authed.POST("/lotteries/:id/settle", h.SettleLottery)
	authed.POST("/lotteries/:id/tickets", h.BuyTicket)
	authed.POST("/tickets/:id/trade", h.TradeTicket)
	authed.POST("/tickets/:id/list", h.ListTicket)
	authed.POST("/tickets/:id/buy", h.BuyListedTicket)
	authed.DELETE("/tickets/:id/listing", h.CancelListing)
	authed.POST("/tickets/:id/claim", h.ClaimPrize)
	authed.POST("/withdraw", h.Withdraw)
}

// AuthMiddleware resolves the calling address from the bearer token.
func (h *HTTPHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := auth.BearerToken(c.GetHeader("Authorization"))
		if tok == "" {
			Fail(c, apperrors.New(apperrors.CodeUnauthorized, "missing bearer token"))
			return
		}
		claims, err := h.tokens.Verify(tok)
		if err != nil {
			logger.Warningf("rejected token from %s: %v", c.ClientIP(), err)
			Fail(c, apperrors.New(apperrors.CodeUnauthorized, "invalid token"))
			return
		}
		c.Set(callerKey, claims.Address())
		c.Next()
	}
}

func caller(c *gin.Context) string {
	return c.GetString(callerKey)
}

func idParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		Fail(c, apperrors.Newf(apperrors.CodeInvalidArgument, "invalid %s %q", name, c.Param(name)))
		return 0, false
	}
	return id, true
}

func (h *HTTPHandler) amountField(c *gin.Context, field, raw string) (models.Amount, bool) {
	a, err := h.unit.Parse(raw)
	if err != nil {
		if e, isApp := err.(*apperrors.Error); isApp {
			err = e.WithMetadata("field", field)
		}
		Fail(c, err)
		return 0, false
	}
	return a, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		Fail(c, apperrors.Newf(apperrors.CodeInvalidArgument, "invalid request body: %v", err))
		return false
	}
	return true
}

// Info reports the collection name and the administrator.
func (h *HTTPHandler) Info(c *gin.Context) {
	Ok(c, gin.H{
		"name":     h.service.Name(),
		"admin":    h.service.Admin(),
		"decimals": h.unit.Decimals(),
	}, nil)
}

func (h *HTTPHandler) ListLotteries(c *gin.Context) {
	lotteries := h.service.GetLotteries()
	out := make([]lotteryView, 0, len(lotteries))
	for _, l := range lotteries {
		out = append(out, newLotteryView(h.unit, l))
	}
	Ok(c, out, map[string]any{"total": len(out)})
}

func (h *HTTPHandler) GetLottery(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	l, err := h.service.GetLottery(id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, newLotteryView(h.unit, l), map[string]any{"escrowed": h.unit.Format(h.service.Escrowed(id))})
}

type createLotteryRequest struct {
	TicketPrice     string `json:"ticketPrice" binding:"required"`
	MaxTickets      uint64 `json:"maxTickets"`
	DurationSeconds uint64 `json:"durationSeconds"`
	Description     string `json:"description"`
}

func (h *HTTPHandler) CreateLottery(c *gin.Context) {
	var req createLotteryRequest
	if !bindJSON(c, &req) {
		return
	}
	price, ok := h.amountField(c, "ticketPrice", req.TicketPrice)
	if !ok {
		return
	}
	l, err := h.service.CreateLottery(c.Request.Context(), caller(c), price, req.MaxTickets, req.DurationSeconds, req.Description)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, newLotteryView(h.unit, l), nil)
}

func (h *HTTPHandler) EndSales(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	l, err := h.service.EndSales(c.Request.Context(), caller(c), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, newLotteryView(h.unit, l), nil)
}

type settleRequest struct {
	WinningNumber uint64 `json:"winningNumber"`
}

func (h *HTTPHandler) SettleLottery(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req settleRequest
	if !bindJSON(c, &req) {
		return
	}
	l, err := h.service.SettleLottery(c.Request.Context(), caller(c), id, req.WinningNumber)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, newLotteryView(h.unit, l), nil)
}

type buyTicketRequest struct {
	TicketNumber uint64 `json:"ticketNumber"`
	Value        string `json:"value" binding:"required"`
}

func (h *HTTPHandler) BuyTicket(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req buyTicketRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, ok := h.amountField(c, "value", req.Value)
	if !ok {
		return
	}
	t, err := h.service.BuyTicket(c.Request.Context(), caller(c), id, req.TicketNumber, payment)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, newTicketView(h.unit, t), nil)
}

func (h *HTTPHandler) GetLotteryTickets(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	tickets, err := h.service.GetLotteryTicketRecords(id)
	if err != nil {
		Fail(c, err)
		return
	}
	out := make([]ticketView, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, newTicketView(h.unit, t))
	}
	Ok(c, out, map[string]any{"total": len(out)})
}

func (h *HTTPHandler) GetWinningTickets(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	winners, err := h.service.GetWinningTickets(id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, winners, map[string]any{"total": len(winners)})
}

// ExportTicketsCSV handles the request to download a lottery's tickets as a CSV file.
func (h *HTTPHandler) ExportTicketsCSV(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	tickets, err := h.service.GetLotteryTicketRecords(id)
	if err != nil {
		Fail(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment;filename=lottery_%d_tickets.csv", id))

	// BOM keeps spreadsheet tools on UTF-8.
	c.Writer.Write([]byte("\xef\xbb\xbf"))

	w := csv.NewWriter(c.Writer)
	if err := w.Write([]string{"ticketId", "ticketNumber", "owner", "purchasePrice", "purchaseTime", "isWinning"}); err != nil {
		logger.Infof("Error writing CSV header: %v", err)
		return
	}
	for _, t := range tickets {
		row := []string{
			strconv.FormatUint(t.ID, 10),
			strconv.FormatUint(t.Number, 10),
			t.Owner,
			h.unit.Format(t.PurchasePrice),
			t.PurchaseTime.UTC().Format(time.RFC3339),
			strconv.FormatBool(t.IsWinning),
		}
		if err := w.Write(row); err != nil {
			logger.Infof("Error writing CSV row: %v", err)
			return
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		logger.Infof("Error flushing CSV writer: %v", err)
	}
}

func (h *HTTPHandler) GetTicket(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	t, err := h.service.GetTicket(id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, newTicketView(h.unit, t), nil)
}

type tradeRequest struct {
	To    string `json:"to" binding:"required"`
	Price string `json:"price" binding:"required"`
	Value string `json:"value" binding:"required"`
}

func (h *HTTPHandler) TradeTicket(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req tradeRequest
	if !bindJSON(c, &req) {
		return
	}
	price, ok := h.amountField(c, "price", req.Price)
	if !ok {
		return
	}
	payment, ok := h.amountField(c, "value", req.Value)
	if !ok {
		return
	}
	t, err := h.service.TradeTicket(c.Request.Context(), caller(c), id, req.To, price, payment)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, newTicketView(h.unit, t), nil)
}

type listRequest struct {
	Price string `json:"price" binding:"required"`
}

func (h *HTTPHandler) ListTicket(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req listRequest
	if !bindJSON(c, &req) {
		return
	}
	price, ok := h.amountField(c, "price", req.Price)
	if !ok {
		return
	}
	listing, err := h.service.ListTicket(c.Request.Context(), caller(c), id, price)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, newListingView(h.unit, listing), nil)
}

type buyListedRequest struct {
	Value string `json:"value" binding:"required"`
}

func (h *HTTPHandler) BuyListedTicket(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req buyListedRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, ok := h.amountField(c, "value", req.Value)
	if !ok {
		return
	}
	t, err := h.service.BuyListedTicket(c.Request.Context(), caller(c), id, payment)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, newTicketView(h.unit, t), nil)
}

func (h *HTTPHandler) CancelListing(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.CancelListing(c.Request.Context(), caller(c), id); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"ticketId": id, "cancelled": true}, nil)
}

func (h *HTTPHandler) GetListing(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	listing, err := h.service.GetListing(id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, newListingView(h.unit, listing), nil)
}

// ListActiveListings returns live listings. With ids=true only ticket ids are returned.
func (h *HTTPHandler) ListActiveListings(c *gin.Context) {
	if c.Query("ids") == "true" {
		ids := h.service.GetActiveListings()
		Ok(c, ids, map[string]any{"total": len(ids)})
		return
	}
	listings := h.service.GetActiveListingRecords()
	out := make([]listingView, 0, len(listings))
	for _, l := range listings {
		out = append(out, newListingView(h.unit, l))
	}
	Ok(c, out, map[string]any{"total": len(out)})
}

func (h *HTTPHandler) ClaimPrize(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	share, err := h.service.ClaimPrize(c.Request.Context(), caller(c), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"ticketId": id, "prize": h.unit.Format(share)}, nil)
}

func (h *HTTPHandler) GetUserTickets(c *gin.Context) {
	ids := h.service.GetUserTickets(c.Param("address"))
	Ok(c, ids, map[string]any{"total": len(ids)})
}

func (h *HTTPHandler) BalanceOf(c *gin.Context) {
	addr := services.NormalizeAddress(c.Param("address"))
	Ok(c, gin.H{"address": addr, "balance": h.unit.Format(h.service.BalanceOf(addr))}, nil)
}

// GetBalance reports the total value held by the system.
func (h *HTTPHandler) GetBalance(c *gin.Context) {
	Ok(c, gin.H{"balance": h.unit.Format(h.service.GetBalance())}, nil)
}

func (h *HTTPHandler) Withdraw(c *gin.Context) {
	paid, err := h.service.Withdraw(c.Request.Context(), caller(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"address": caller(c), "amount": h.unit.Format(paid)}, nil)
}

func (h *HTTPHandler) ListEvents(c *gin.Context) {
	filter := journal.Filter{
		LotteryID: uintQuery(c, "lottery"),
		TicketID:  uintQuery(c, "ticket"),
		Limit:     int(uintQuery(c, "limit")),
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	events, err := h.service.Events(c.Request.Context(), filter)
	if err != nil {
		Fail(c, err)
		return
	}
	out := make([]eventView, 0, len(events))
	for _, ev := range events {
		out = append(out, newEventView(h.unit, ev))
	}
	Ok(c, out, map[string]any{"total": len(out)})
}

func uintQuery(c *gin.Context, key string) uint64 {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
