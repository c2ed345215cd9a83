package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/hashchain"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/invoice"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/qr"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/render"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/server"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/tax"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/testutil"
)

func newTestServer(t *testing.T, opts ...server.Option) *server.Server {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.Debug = true
	opts = append([]server.Option{server.WithLogger(zap.NewNop())}, opts...)
	return server.NewServer(cfg, opts...)
}

func signingServer(t *testing.T) *server.Server {
	t.Helper()
	fixture := testutil.SelfSigned(t)
	creds, err := signature.LoadCredentials(fixture.CertificatePEM, fixture.PrivateKeyPEM)
	require.NoError(t, err)
	return newTestServer(t, server.WithCredentials(creds))
}

func do(t *testing.T, srv *server.Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func propsJSON(t *testing.T, mutate ...func(*model.InvoiceProps)) []byte {
	t.Helper()
	props := testutil.Props()
	for _, m := range mutate {
		m(&props)
	}
	data, err := json.Marshal(props)
	require.NoError(t, err)
	return data
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
	assert.NotEmpty(t, response["time"])
	assert.Equal(t, false, response["signing"])
}

func TestValidateEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/invoices/validate", propsJSON(t))
	assert.Equal(t, http.StatusOK, w.Code)

	var response server.ValidationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Valid)
	assert.Empty(t, response.Errors)
}

func TestValidateEndpoint_Invalid(t *testing.T) {
	srv := newTestServer(t)

	body := propsJSON(t, func(p *model.InvoiceProps) {
		p.EGS.VATNumber = "1234567890"
	})
	w := do(t, srv, http.MethodPost, "/api/v1/invoices/validate", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var response server.ValidationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response.Valid)
	require.NotEmpty(t, response.Errors)
	assert.Contains(t, response.Errors[0].Path, "vat_number")
}

func TestValidateEndpoint_BadBody(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/invoices/validate", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/api/v1/invoices/validate", []byte(`{"egs_info":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response server.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "invalid invoice JSON", response.Error)
}

func TestBuildEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/invoices/build", propsJSON(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response server.BuildResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, strings.HasPrefix(response.XML, "<?xml"))
	assert.Len(t, response.InvoiceHash, 44)

	hash, err := hashchain.DigestXML([]byte(response.XML))
	require.NoError(t, err)
	assert.Equal(t, hash, response.InvoiceHash)

	records, err := qr.Decode(response.QR)
	require.NoError(t, err)
	assert.Len(t, records, 5)
	assert.NotEmpty(t, response.Totals.TaxInclusive)
}

func TestSignEndpoint(t *testing.T) {
	srv := signingServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/invoices/sign", propsJSON(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var signed server.SignResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &signed))
	assert.Contains(t, signed.SignedXML, "ds:SignatureValue")
	assert.NotEmpty(t, signed.SigningTime)

	hash, err := hashchain.DigestXML([]byte(signed.SignedXML))
	require.NoError(t, err)
	assert.Equal(t, hash, signed.InvoiceHash)

	w = do(t, srv, http.MethodPost, "/api/v1/verify", []byte(signed.SignedXML))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var verified server.VerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verified))
	assert.True(t, verified.Valid)
	assert.True(t, verified.SignatureValid)
	assert.True(t, verified.QRValid)
	assert.Equal(t, signed.InvoiceHash, verified.InvoiceHash)
	require.NotNil(t, verified.Signer)
}

func TestSignEndpoint_NoCredentials(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/invoices/sign", propsJSON(t))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSignEndpoint_Invalid(t *testing.T) {
	srv := signingServer(t)

	body := propsJSON(t, func(p *model.InvoiceProps) {
		p.LineItems = nil
	})
	w := do(t, srv, http.MethodPost, "/api/v1/invoices/sign", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestVerifyEndpoint_Tampered(t *testing.T) {
	srv := signingServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/invoices/sign", propsJSON(t))
	require.Equal(t, http.StatusOK, w.Code)
	var signed server.SignResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &signed))

	tampered := strings.Replace(signed.SignedXML, signed.InvoiceHash, strings.Repeat("A", 43)+"=", 1)
	w = do(t, srv, http.MethodPost, "/api/v1/verify", []byte(tampered))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var verified server.VerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verified))
	assert.False(t, verified.Valid)
	assert.NotEmpty(t, verified.Errors)
}

func TestVerifyEndpoint_Unsigned(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/invoices/build", propsJSON(t))
	require.Equal(t, http.StatusOK, w.Code)
	var built server.BuildResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &built))

	w = do(t, srv, http.MethodPost, "/api/v1/verify", []byte(built.XML))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var response server.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "signature verification failed", response.Error)
}

func TestVerifyEndpoint_Unsupported(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/verify", []byte("plain text"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyEndpoint_PDF(t *testing.T) {
	fixture := testutil.SelfSigned(t)
	inv, err := invoice.Build(testutil.Props(), tax.DefaultPolicy())
	require.NoError(t, err)
	signed, err := signature.Sign(inv, fixture.CertificatePEM, fixture.PrivateKeyPEM)
	require.NoError(t, err)
	doc, err := render.NewRenderer().PDF(inv, signed)
	require.NoError(t, err)

	srv := newTestServer(t)
	w := do(t, srv, http.MethodPost, "/api/v1/verify", doc)
	require.Equal(t, http.StatusOK, w.Code)

	var verified server.VerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verified))
	assert.Equal(t, "pdf", verified.Format)
	assert.True(t, verified.Valid)
}

func TestQRDecodeEndpoint(t *testing.T) {
	srv := newTestServer(t)

	payload, err := qr.EncodeRecords([]qr.Record{
		qr.Text(qr.TagSellerName, "Bobs Records"),
		qr.Text(qr.TagVATNumber, "310122393500003"),
		qr.Text(qr.TagTimestamp, "2022-04-25T15:30:00Z"),
		qr.Text(qr.TagTotalWithVAT, "1000.00"),
		qr.Text(qr.TagVATTotal, "150.00"),
	})
	require.NoError(t, err)

	body, _ := json.Marshal(server.QRDecodeRequest{QR: payload})
	w := do(t, srv, http.MethodPost, "/api/v1/qr/decode", body)
	require.Equal(t, http.StatusOK, w.Code)

	var decoded qr.Payload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	assert.Equal(t, "Bobs Records", decoded.SellerName)
	assert.Equal(t, "150.00", decoded.VATTotal)
	assert.Equal(t, 5, decoded.Records)
	assert.False(t, decoded.Signed())
}

func TestQRDecodeEndpoint_Invalid(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/qr/decode", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/api/v1/qr/decode", []byte(`{"qr":"!!!"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestInfoEndpoint(t *testing.T) {
	srv := newTestServer(t)
	props := testutil.Props()

	w := do(t, srv, http.MethodPost, "/api/v1/invoices/build", propsJSON(t))
	require.Equal(t, http.StatusOK, w.Code)
	var built server.BuildResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &built))

	w = do(t, srv, http.MethodPost, "/api/v1/info", []byte(built.XML))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var info server.InfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	require.NotNil(t, info.Summary)
	assert.Equal(t, props.InvoiceSerialNumber, info.Summary.SerialNumber)
	assert.Equal(t, props.InvoiceCounterNumber, info.Summary.Counter)
	assert.False(t, info.Summary.Signed)
	assert.Equal(t, len(built.XML), info.Size)
}

func TestInfoEndpoint_NotInvoice(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/info", []byte("<Order/>"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/api/v1/info", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORS(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.AllowedOrigins = []string{"https://pos.example.com"}
	srv := server.NewServer(cfg, server.WithLogger(zap.NewNop()))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/invoices/validate", nil)
	req.Header.Set("Origin", "https://pos.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, "https://pos.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
