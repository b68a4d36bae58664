package devgateway

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/digimartpay/digipay-go/domain"
)

var upgrader = gws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Development backend, all origins welcome.
		return true
	},
}

type Handlers struct {
	store     *Store
	hub       *Hub
	jwtSecret string
	logger    zerolog.Logger
}

func NewHandlers(store *Store, hub *Hub, jwtSecret string, logger zerolog.Logger) *Handlers {
	return &Handlers{
		store:     store,
		hub:       hub,
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("component", "handlers").Logger(),
	}
}

func (h *Handlers) SetupHandlers(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/status", h.HandleStatusSocket)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/merchant/metadata", h.MerchantMetadata)
		v1.GET("/links/:slug", h.PaymentLink)
		v1.GET("/invoices/:ref", h.Invoice)

		currency := v1.Group("/currency")
		{
			currency.GET("/rates", h.CurrencyRates)
			currency.GET("/convert", h.Convert)
		}

		payment := v1.Group("/payment")
		{
			payment.GET("/:ref", h.TransactionSnapshot)
			payment.POST("/inline-intent", h.CreateIntent)
			payment.POST("/link-intent", h.CreateIntent)
			payment.POST("/invoice-intent", h.CreateIntent)
			payment.POST("/resume-intent", h.ResumeIntent)
			payment.POST("/approve", h.Approve)
			payment.POST("/complete", h.Complete)
		}

		customer := v1.Group("/customer")
		{
			customer.POST("/signin", h.SignIn)
			customer.POST("/signout", h.SignOut)
		}
	}
}

func respond(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, gin.H{"data": payload})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "devgateway",
		"timestamp": time.Now(),
	})
}

func (h *Handlers) MerchantMetadata(c *gin.Context) {
	key := c.GetHeader("x-public-key")
	if key == "" {
		respondError(c, http.StatusUnauthorized, "missing x-public-key header")
		return
	}
	merchant, ok := h.store.MerchantByKey(key)
	if !ok {
		respondError(c, http.StatusNotFound, "unknown merchant public key")
		return
	}
	respond(c, merchant)
}

func (h *Handlers) PaymentLink(c *gin.Context) {
	link, ok := h.store.LinkBySlug(c.Param("slug"))
	if !ok {
		respondError(c, http.StatusNotFound, "payment link not found")
		return
	}
	respond(c, link)
}

func (h *Handlers) Invoice(c *gin.Context) {
	inv, ok := h.store.InvoiceByRef(c.Param("ref"))
	if !ok {
		respondError(c, http.StatusNotFound, "invoice not found")
		return
	}
	respond(c, inv)
}

func (h *Handlers) TransactionSnapshot(c *gin.Context) {
	tx, ok := h.store.TransactionByRef(c.Param("ref"))
	if !ok {
		respondError(c, http.StatusNotFound, "transaction not found")
		return
	}
	respond(c, tx)
}

func (h *Handlers) CurrencyRates(c *gin.Context) {
	base := c.DefaultQuery("base", "PI")
	rates, err := h.store.Rates(base)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	respond(c, rates)
}

func (h *Handlers) Convert(c *gin.Context) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "amount must be a decimal string")
		return
	}
	converted, err := h.store.Convert(amount, c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	respond(c, gin.H{"convertedAmount": converted})
}

type intentRequest struct {
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	Description        string          `json:"description"`
	LinkSlug           string          `json:"linkSlug"`
	InvoiceRef         string          `json:"invoiceRef"`
	PayerWalletAddress string          `json:"payerWalletAddress"`
	PayerUID           string          `json:"payerUid"`
}

func (h *Handlers) CreateIntent(c *gin.Context) {
	var req intentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid intent payload")
		return
	}
	if req.Amount.IsZero() || req.Amount.IsNegative() {
		respondError(c, http.StatusUnprocessableEntity, "amount must be positive")
		return
	}
	if req.LinkSlug != "" {
		if _, ok := h.store.LinkBySlug(req.LinkSlug); !ok {
			respondError(c, http.StatusNotFound, "payment link not found")
			return
		}
	}
	if req.InvoiceRef != "" {
		inv, ok := h.store.InvoiceByRef(req.InvoiceRef)
		if !ok {
			respondError(c, http.StatusNotFound, "invoice not found")
			return
		}
		if inv.Paid {
			respondError(c, http.StatusConflict, "invoice has already been paid")
			return
		}
	}

	tx := h.store.CreateTransaction(req.Amount, req.Currency)
	h.hub.NotifyTransaction(tx)
	h.logger.Info().
		Str("transaction_ref", tx.Reference).
		Str("amount", tx.Amount.String()).
		Str("currency", tx.Currency).
		Msg("Payment intent created")
	respond(c, tx)
}

func (h *Handlers) ResumeIntent(c *gin.Context) {
	var req struct {
		TransactionRef string `json:"transactionRef"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid resume payload")
		return
	}
	tx, ok := h.store.TransactionByRef(req.TransactionRef)
	if !ok {
		respondError(c, http.StatusNotFound, "transaction not found")
		return
	}
	respond(c, tx)
}

func (h *Handlers) Approve(c *gin.Context) {
	var req struct {
		TransactionRef    string `json:"transactionRef"`
		ProviderPaymentID string `json:"pipaymentid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid approve payload")
		return
	}
	tx, err := h.store.Approve(req.TransactionRef, req.ProviderPaymentID)
	if err != nil {
		respondError(c, http.StatusNotFound, err.Error())
		return
	}
	h.hub.NotifyTransaction(tx)
	h.logger.Info().Str("transaction_ref", tx.Reference).Msg("Payment approved")
	respond(c, tx)
}

func (h *Handlers) Complete(c *gin.Context) {
	var req struct {
		TransactionRef string `json:"transactionRef"`
		ChainTxID      string `json:"txid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid complete payload")
		return
	}
	tx, err := h.store.Complete(req.TransactionRef, req.ChainTxID)
	if err != nil {
		respondError(c, http.StatusNotFound, err.Error())
		return
	}
	h.hub.NotifyTransaction(tx)
	h.logger.Info().
		Str("transaction_ref", tx.Reference).
		Str("txid", tx.ChainTxID).
		Msg("Payment completed")
	respond(c, tx)
}

type sessionClaims struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	jwt.StandardClaims
}

func (h *Handlers) SignIn(c *gin.Context) {
	var req struct {
		UID         string `json:"uid"`
		Username    string `json:"username"`
		AccessToken string `json:"accessToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UID == "" {
		respondError(c, http.StatusBadRequest, "invalid signin payload")
		return
	}

	h.store.SignIn(domain.AuthenticatedUser{
		UID:         req.UID,
		Username:    req.Username,
		AccessToken: req.AccessToken,
	})

	now := time.Now()
	claims := &sessionClaims{
		UID:      req.UID,
		Username: req.Username,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(24 * time.Hour).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    "devgateway",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.jwtSecret))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to sign session token")
		respondError(c, http.StatusInternalServerError, "failed to sign session token")
		return
	}

	h.logger.Info().Str("uid", req.UID).Str("username", req.Username).Msg("Customer signed in")
	respond(c, gin.H{"sessionToken": token})
}

func (h *Handlers) SignOut(c *gin.Context) {
	var req struct {
		UID string `json:"uid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UID == "" {
		respondError(c, http.StatusBadRequest, "invalid signout payload")
		return
	}
	h.store.SignOut(req.UID)
	h.logger.Info().Str("uid", req.UID).Msg("Customer signed out")
	respond(c, gin.H{"signedOut": true})
}

// HandleStatusSocket upgrades the connection and parks it in the hub until
// the peer goes away. Inbound frames are discarded.
func (h *Handlers) HandleStatusSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}
	h.hub.Register <- conn

	go func() {
		defer func() {
			h.hub.Unregister <- conn
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
