package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/hashchain"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/invoice"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/logger"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/parser/ubl"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/qr"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature/pdf"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature/trust"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature/xml"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/tax"
)

// Config holds server configuration
type Config struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	AllowedOrigins []string
	Debug          bool
}

// DefaultConfig returns a configuration listening on :8080
func DefaultConfig() Config {
	return Config{
		Address:        ":8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// Option configures a Server
type Option func(*Server)

// WithCredentials enables the sign endpoint
func WithCredentials(creds *signature.Credentials) Option {
	return func(s *Server) {
		s.creds = creds
	}
}

// WithTrustStore sets the roots signatures are chained to
func WithTrustStore(ts *trust.TrustStore) Option {
	return func(s *Server) {
		s.trustStore = ts
	}
}

// WithSigner sets the signer used by the sign endpoint
func WithSigner(signer *signature.Signer) Option {
	return func(s *Server) {
		s.signer = signer
	}
}

// WithPolicy sets the tax rounding policy
func WithPolicy(policy tax.Policy) Option {
	return func(s *Server) {
		s.policy = policy
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// Server represents the HTTP API server
type Server struct {
	config     Config
	router     *gin.Engine
	creds      *signature.Credentials
	signer     *signature.Signer
	policy     tax.Policy
	trustStore *trust.TrustStore
	verifiers  []signature.Verifier
	parser     *ubl.Parser
	log        *zap.Logger
}

// NewServer creates a new API server
func NewServer(config Config, opts ...Option) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultConfig().RequestTimeout
	}

	s := &Server{
		config:     config,
		signer:     signature.NewSigner(),
		policy:     tax.DefaultPolicy(),
		trustStore: trust.NewTrustStore(trust.WithSoftFail()),
		parser:     ubl.NewParser(),
		log:        logger.Named("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.verifiers = []signature.Verifier{
		xml.NewXMLVerifier(s.trustStore),
		pdf.NewPDFVerifier(s.trustStore),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.log))
	router.Use(corsMiddleware(config.AllowedOrigins))
	s.router = router

	s.setupRoutes()
	return s
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		trimmed := make([]string, 0, len(origins))
		for _, o := range origins {
			if o = strings.TrimSpace(o); o != "" {
				trimmed = append(trimmed, o)
			}
		}
		corsConfig.AllowOrigins = trimmed
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	return cors.New(corsConfig)
}

// requestLogger logs one line per request
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("request", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		invoices := v1.Group("/invoices")
		invoices.POST("/validate", s.handleValidate)
		invoices.POST("/build", s.handleBuild)
		invoices.POST("/sign", s.handleSign)

		v1.POST("/qr/decode", s.handleQRDecode)
		v1.POST("/verify", s.handleVerify)
		v1.POST("/info", s.handleInfo)
	}
}

// Run starts the HTTP server and shuts it down when ctx is canceled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("address", s.config.Address))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"signing": s.creds != nil,
	})
}

// bindProps decodes the request body as invoice properties. It writes the
// error response itself and reports whether the handler should continue.
func bindProps(c *gin.Context) (model.InvoiceProps, bool) {
	var props model.InvoiceProps
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return props, false
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return props, false
	}
	if err := json.Unmarshal(body, &props); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid invoice JSON", Details: err.Error()})
		return props, false
	}
	return props, true
}

func rawBody(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return nil, false
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return nil, false
	}
	return body, true
}

// buildError writes the response for a failed invoice.Build
func buildError(c *gin.Context, err error) {
	if verrs := model.AsValidationErrors(err); len(verrs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, ValidationResponse{
			Valid:  false,
			Errors: toFieldErrors(verrs),
		})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to build invoice", Details: err.Error()})
}

func (s *Server) handleValidate(c *gin.Context) {
	props, ok := bindProps(c)
	if !ok {
		return
	}
	if err := invoice.Validate(props); err != nil {
		buildError(c, err)
		return
	}
	c.JSON(http.StatusOK, ValidationResponse{Valid: true})
}

func (s *Server) handleBuild(c *gin.Context) {
	props, ok := bindProps(c)
	if !ok {
		return
	}
	inv, err := invoice.Build(props, s.policy)
	if err != nil {
		buildError(c, err)
		return
	}

	data, err := inv.XML()
	if err != nil {
		buildError(c, err)
		return
	}
	hash, err := hashchain.Digest(inv)
	if err != nil {
		buildError(c, err)
		return
	}
	payload, err := qr.Encode(inv)
	if err != nil {
		buildError(c, err)
		return
	}

	c.JSON(http.StatusOK, BuildResponse{
		XML:         string(data),
		InvoiceHash: hash,
		QR:          payload,
		Totals:      totalsOf(inv),
	})
}

func (s *Server) handleSign(c *gin.Context) {
	if s.creds == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "signing unavailable",
			Details: "server has no signing certificate configured",
		})
		return
	}
	props, ok := bindProps(c)
	if !ok {
		return
	}
	inv, err := invoice.Build(props, s.policy)
	if err != nil {
		buildError(c, err)
		return
	}
	signed, err := s.signer.SignWith(inv, s.creds)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to sign invoice", Details: err.Error()})
		return
	}

	s.log.Info("invoice signed",
		zap.String("serial", props.InvoiceSerialNumber),
		zap.Int64("counter", props.InvoiceCounterNumber),
		zap.String("hash", signed.InvoiceHash))

	c.JSON(http.StatusOK, SignResponse{
		SignedXML:   signed.SignedXML,
		InvoiceHash: signed.InvoiceHash,
		QR:          signed.QR,
		SigningTime: signed.SigningTime,
		Totals:      totalsOf(inv),
	})
}

func (s *Server) handleQRDecode(c *gin.Context) {
	var req QRDecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.QR == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "request must carry a qr payload"})
		return
	}
	payload, err := qr.Parse(strings.TrimSpace(req.QR))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid qr payload", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) handleVerify(c *gin.Context) {
	body, ok := rawBody(c)
	if !ok {
		return
	}
	var verifier signature.Verifier
	for _, v := range s.verifiers {
		if v.CanVerify(body) {
			verifier = v
			break
		}
	}
	if verifier == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unsupported document for signature verification"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.RequestTimeout)
	defer cancel()

	result, err := verifier.Verify(ctx, body)
	if err != nil {
		resp := ErrorResponse{Error: "signature verification failed", Details: err.Error()}
		if result != nil {
			resp.Warnings = result.Warnings
		}
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}

	response := VerifyResponse{
		Format:                result.Format,
		Valid:                 result.Valid,
		SignatureFound:        result.SignatureFound,
		HashValid:             result.HashValid,
		SignatureValid:        result.SignatureValid,
		SignedPropertiesValid: result.SignedPropertiesValid,
		CertDigestValid:       result.CertDigestValid,
		QRValid:               result.QRValid,
		CertChainValid:        result.CertChainValid,
		NotRevoked:            result.NotRevoked,
		InvoiceHash:           result.InvoiceHash,
		SignedAt:              result.SignedAt,
		Warnings:              result.Warnings,
		Errors:                result.Errors,
	}
	if result.Signer != nil {
		response.Signer = &SignerInfoOutput{
			Name:         result.Signer.Name,
			Organization: result.Signer.Organization,
			SerialNumber: result.Signer.SerialNumber,
			Issuer:       result.Signer.Issuer,
			ValidFrom:    &result.Signer.ValidFrom,
			ValidTo:      &result.Signer.ValidTo,
		}
	}

	if result.Valid {
		c.JSON(http.StatusOK, response)
	} else {
		c.JSON(http.StatusUnprocessableEntity, response)
	}
}

func (s *Server) handleInfo(c *gin.Context) {
	body, ok := rawBody(c)
	if !ok {
		return
	}
	if !s.parser.CanParse(body) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "not a UBL invoice"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.RequestTimeout)
	defer cancel()

	summary, err := s.parser.ParseBytes(ctx, body)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "failed to parse invoice", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, InfoResponse{
		Kind:    summary.Kind(),
		Size:    len(body),
		Summary: summary,
	})
}

func toFieldErrors(verrs model.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, FieldError{Path: e.Path, Rule: e.Rule, Message: e.Message})
	}
	return out
}

func totalsOf(inv *invoice.Invoice) Totals {
	mt := inv.MonetaryTotal()
	return Totals{
		LineExtension: inv.Format(mt.LineExtensionAmount),
		TaxExclusive:  inv.Format(mt.TaxExclusiveAmount),
		TaxAmount:     inv.Format(inv.TaxTotal().TaxAmount),
		TaxInclusive:  inv.Format(mt.TaxInclusiveAmount),
		Payable:       inv.Format(mt.PayableAmount),
	}
}
