// Package render produces the printable form of an invoice: an A4 PDF with
// the QR code and, when signed, the UBL document embedded as an attachment.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/invoice"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/logger"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/qr"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
)

// Option configures a Renderer
type Option func(*Renderer)

// WithQRSize sets the printed QR edge length in millimetres
func WithQRSize(mm float64) Option {
	return func(r *Renderer) {
		r.qrSize = mm
	}
}

// WithoutAttachment leaves the signed XML out of the PDF
func WithoutAttachment() Option {
	return func(r *Renderer) {
		r.attach = false
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(r *Renderer) {
		r.log = l
	}
}

// Renderer draws invoices as PDF documents
type Renderer struct {
	qrSize float64
	attach bool
	log    *zap.Logger
}

// NewRenderer creates a renderer
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		qrSize: 40,
		attach: true,
		log:    logger.Named("render"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PDF renders inv. signed may be nil for an unsigned draft; otherwise its QR
// is printed and its XML attached.
func (r *Renderer) PDF(inv *invoice.Invoice, signed *signature.SignedInvoiceResult) ([]byte, error) {
	if inv == nil {
		return nil, fmt.Errorf("render: nil invoice")
	}
	props := inv.Props()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(props.InvoiceSerialNumber, true)
	pdf.SetCreator("zatca", true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	kind := (&model.InvoiceSummary{InvoiceCode: props.InvoiceCode, InvoiceType: props.InvoiceType}).Kind()
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(strings.ToUpper(kind)), "", 1, "C", false, 0, "")
	if signed == nil {
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 5, "DRAFT - NOT SIGNED", "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	header := [][2]string{
		{"Invoice number", props.InvoiceSerialNumber},
		{"UUID", props.InvoiceUUID},
		{"Issue date", props.IssueDate + " " + props.IssueTime},
		{"Invoice counter", fmt.Sprintf("%d", props.InvoiceCounterNumber)},
	}
	if props.Cancellation != nil {
		header = append(header,
			[2]string{"Billing reference", props.Cancellation.BillingReferenceID},
			[2]string{"Reason", props.Cancellation.Reason})
	}
	keyValues(pdf, tr, header)
	pdf.Ln(3)

	seller := []string{props.EGS.VATName, "VAT " + props.EGS.VATNumber, "CRN " + props.CRNNumber}
	if a := props.EGS.Location; a != nil {
		seller = append(seller, address(a))
	}
	var buyer []string
	if c := props.Customer; c != nil {
		buyer = append(buyer, c.Name)
		if c.VATNumber != "" {
			buyer = append(buyer, "VAT "+c.VATNumber)
		}
		if c.Address != nil {
			buyer = append(buyer, address(c.Address))
		}
	}
	parties(pdf, tr, seller, buyer)
	pdf.Ln(4)

	r.lines(pdf, tr, inv)
	pdf.Ln(3)
	r.totals(pdf, inv)

	if signed != nil && signed.QR != "" {
		if err := r.qrImage(pdf, signed.QR); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	out := buf.Bytes()
	if signed != nil && r.attach {
		attached, err := Attach(out, AttachmentName(props.InvoiceSerialNumber), []byte(signed.SignedXML))
		if err != nil {
			return nil, err
		}
		out = attached
	}

	r.log.Debug("invoice rendered",
		zap.String("serial", props.InvoiceSerialNumber),
		zap.Bool("signed", signed != nil),
		zap.Int("bytes", len(out)))
	return out, nil
}

func keyValues(pdf *gofpdf.Fpdf, tr func(string) string, rows [][2]string) {
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 6, tr(row[0]), "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(row[1]), "", 1, "L", false, 0, "")
	}
}

func parties(pdf *gofpdf.Fpdf, tr func(string) string, seller, buyer []string) {
	const width = 90
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(width, 7, "Seller", "B", 0, "L", false, 0, "")
	if len(buyer) > 0 {
		pdf.CellFormat(width, 7, "Buyer", "B", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	rows := len(seller)
	if len(buyer) > rows {
		rows = len(buyer)
	}
	for i := 0; i < rows; i++ {
		pdf.CellFormat(width, 5, tr(at(seller, i)), "", 0, "L", false, 0, "")
		pdf.CellFormat(width, 5, tr(at(buyer, i)), "", 1, "L", false, 0, "")
	}
}

func (r *Renderer) lines(pdf *gofpdf.Fpdf, tr func(string) string, inv *invoice.Invoice) {
	widths := []float64{70, 20, 25, 15, 25, 25}
	cols := []string{"Item", "Qty", "Unit price", "VAT %", "VAT", "Total"}

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, c := range cols {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 7, c, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, l := range inv.Lines() {
		cells := []string{
			l.Name,
			l.Quantity.String(),
			l.UnitPrice.String(),
			l.Rate.String() + " " + l.Category.Code,
			inv.Format(l.TaxAmount),
			inv.Format(l.RoundingAmount()),
		}
		for i, c := range cells {
			align := "R"
			if i == 0 {
				align = "L"
				c = truncate(pdf, tr(c), widths[0]-2)
			}
			pdf.CellFormat(widths[i], 6, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
}

func (r *Renderer) totals(pdf *gofpdf.Fpdf, inv *invoice.Invoice) {
	mt := inv.MonetaryTotal()
	rows := [][2]string{
		{"Total excluding VAT", inv.Format(mt.TaxExclusiveAmount)},
		{"VAT", inv.Format(inv.TaxTotal().TaxAmount)},
		{"Total including VAT", inv.Format(mt.TaxInclusiveAmount)},
		{"Amount payable", inv.Format(mt.PayableAmount)},
	}
	for i, row := range rows {
		style := ""
		if i == len(rows)-1 {
			style = "B"
		}
		pdf.SetFont("Arial", style, 10)
		pdf.CellFormat(130, 6, row[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(50, 6, row[1]+" SAR", "", 1, "R", false, 0, "")
	}
}

func (r *Renderer) qrImage(pdf *gofpdf.Fpdf, payload string) error {
	png, err := qr.PNG(payload, qr.DefaultImageSize)
	if err != nil {
		return err
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(png))
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("embed qr image: %w", err)
	}
	pdf.Ln(4)
	x, y := pdf.GetXY()
	pdf.ImageOptions("qr", x, y, r.qrSize, r.qrSize, true, opts, 0, "")
	return nil
}

// AttachmentName is the file name the signed XML is embedded under
func AttachmentName(serial string) string {
	clean := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_') {
			return r
		}
		return '_'
	}, serial)
	if clean == "" {
		clean = "invoice"
	}
	return clean + ".xml"
}

func address(a *model.Address) string {
	parts := []string{strings.TrimSpace(a.Building + " " + a.Street)}
	for _, p := range []string{a.CitySubdivision, a.City, a.PostalZone} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

func truncate(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}
