package hashchain_test

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/hashchain"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/invoice"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/tax"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/testutil"
)

func build(t *testing.T, props model.InvoiceProps) *invoice.Invoice {
	t.Helper()
	inv, err := invoice.Build(props, tax.DefaultPolicy())
	require.NoError(t, err)
	return inv
}

func digest(t *testing.T, props model.InvoiceProps) string {
	t.Helper()
	h, err := hashchain.Digest(build(t, props))
	require.NoError(t, err)
	return h
}

func TestGenesisHash(t *testing.T) {
	sum := sha256.Sum256([]byte("0"))
	want := base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(sum[:])))
	assert.Equal(t, want, hashchain.GenesisHash)
	assert.Equal(t, testutil.GenesisHash, hashchain.GenesisHash)
}

func TestDigest_Format(t *testing.T) {
	h := digest(t, testutil.Props())

	assert.Len(t, h, 44)
	raw, err := base64.StdEncoding.DecodeString(h)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestDigest_Deterministic(t *testing.T) {
	a := digest(t, testutil.Props())
	b := digest(t, testutil.Props())
	assert.Equal(t, a, b)
}

func TestDigest_SensitiveToEveryField(t *testing.T) {
	base := digest(t, testutil.Props())

	mutations := map[string]func(p *model.InvoiceProps){
		"counter":       func(p *model.InvoiceProps) { p.InvoiceCounterNumber = 2 },
		"serial":        func(p *model.InvoiceProps) { p.InvoiceSerialNumber = "EGS1-886431145-2" },
		"issue time":    func(p *model.InvoiceProps) { p.IssueTime = "14:40:41" },
		"previous hash": func(p *model.InvoiceProps) { p.PreviousInvoiceHash = base },
		"seller name":   func(p *model.InvoiceProps) { p.EGS.VATName = "Other" },
		"crn":           func(p *model.InvoiceProps) { p.CRNNumber = "1010010000" },
		"payment":       func(p *model.InvoiceProps) { p.PaymentMethod = model.PaymentBankCard },
		"issue date":    func(p *model.InvoiceProps) { p.IssueDate = "2022-03-14" },
		"uuid":          func(p *model.InvoiceProps) { p.InvoiceUUID = "8d487816-70b8-4ade-a618-9d620b73814b" },
		"seller vat":    func(p *model.InvoiceProps) { p.EGS.VATNumber = "311111111111113" },
		"egs id":        func(p *model.InvoiceProps) { p.EGS.ID = "8d487816-70b8-4ade-a618-9d620b73814b" },
		"egs name":      func(p *model.InvoiceProps) { p.EGS.Name = "EGS2" },
		"egs model":     func(p *model.InvoiceProps) { p.EGS.Model = "POS-2" },
		"branch name":   func(p *model.InvoiceProps) { p.EGS.BranchName = "Second Branch" },
		"street":        func(p *model.InvoiceProps) { p.EGS.Location.Street = "King Fahd Road" },
		"invoice type":  func(p *model.InvoiceProps) { p.InvoiceType = "0200000" },
		"branch industry": func(p *model.InvoiceProps) {
			p.EGS.BranchIndustry = "Retail"
		},
		"price": func(p *model.InvoiceProps) {
			p.LineItems = []model.LineItem{testutil.Item("1", "100.01", "0.15")}
		},
	}

	seen := map[string]string{base: "base"}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			props := testutil.Props()
			mutate(&props)
			h := digest(t, props)
			assert.NotEqual(t, base, h)
			_, dup := seen[h]
			assert.False(t, dup)
			seen[h] = name
		})
	}
}

func TestDigestXML_MatchesDigest(t *testing.T) {
	inv := build(t, testutil.Props())

	want, err := hashchain.Digest(inv)
	require.NoError(t, err)

	data, err := inv.XML()
	require.NoError(t, err)
	got, err := hashchain.DigestXML(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDigestXML_IgnoresSignatureRegion(t *testing.T) {
	inv := build(t, testutil.Props())
	want, err := hashchain.Digest(inv)
	require.NoError(t, err)

	doc := inv.Document()
	root := doc.Root()
	ext := etree.NewElement("ext:UBLExtensions")
	ext.CreateElement("ext:UBLExtension").CreateElement("ext:ExtensionContent").SetText("signature")
	root.InsertChildAt(0, ext)

	supplier := root.SelectElement("cac:AccountingSupplierParty")
	require.NotNil(t, supplier)
	qr := etree.NewElement("cac:AdditionalDocumentReference")
	qr.CreateElement("cbc:ID").SetText("QR")
	qr.CreateElement("cac:Attachment").CreateElement("cbc:EmbeddedDocumentBinaryObject").SetText("AQ==")
	sig := etree.NewElement("cac:Signature")
	sig.CreateElement("cbc:ID").SetText("urn:oasis:names:specification:ubl:signature:Invoice")
	root.InsertChildAt(supplier.Index(), qr)
	root.InsertChildAt(supplier.Index(), sig)

	data, err := doc.WriteToBytes()
	require.NoError(t, err)
	got, err := hashchain.DigestXML(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// the PIH and ICV references are part of the hash
	pih := root.FindElement("./cac:AdditionalDocumentReference[cbc:ID='PIH']")
	require.NotNil(t, pih)
	pih.FindElement(".//cbc:EmbeddedDocumentBinaryObject").SetText(want)
	data, err = doc.WriteToBytes()
	require.NoError(t, err)
	changed, err := hashchain.DigestXML(data)
	require.NoError(t, err)
	assert.NotEqual(t, want, changed)
}

func TestDigestXML_AttributeOrderIndependent(t *testing.T) {
	a := `<Invoice xmlns="urn:x" xmlns:cbc="urn:cbc"><cbc:Amount currencyID="SAR" schemeID="s">1</cbc:Amount></Invoice>`
	b := `<Invoice xmlns:cbc="urn:cbc" xmlns="urn:x"><cbc:Amount schemeID="s" currencyID="SAR">1</cbc:Amount></Invoice>`

	ha, err := hashchain.DigestXML([]byte(a))
	require.NoError(t, err)
	hb, err := hashchain.DigestXML([]byte(b))
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestDigestXML_Invalid(t *testing.T) {
	_, err := hashchain.DigestXML([]byte("<Invoice>"))
	require.Error(t, err)

	_, err = hashchain.DigestXML([]byte(""))
	require.Error(t, err)
}

func TestCanonicalize_DoesNotModifyInput(t *testing.T) {
	inv := build(t, testutil.Props())
	doc := inv.Document()
	doc.Root().InsertChildAt(0, etree.NewElement("ext:UBLExtensions"))
	before, err := doc.WriteToString()
	require.NoError(t, err)

	_, err = hashchain.Canonicalize(doc)
	require.NoError(t, err)

	after, err := doc.WriteToString()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
