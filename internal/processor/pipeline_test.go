package processor_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/client"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/hashchain"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/parser/ubl"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/processor"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/processor/mocks"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
	sigxml "github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature/xml"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/store"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/testutil"
)

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func credentials(t *testing.T) *signature.Credentials {
	t.Helper()
	c := testutil.SelfSigned(t)
	creds, err := signature.LoadCredentials(c.CertificatePEM, c.PrivateKeyPEM)
	require.NoError(t, err)
	return creds
}

func openStore(t *testing.T) *store.BoltStore {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "chain.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newPipeline(t *testing.T, st processor.ChainStore, opts ...processor.Option) *processor.Pipeline {
	t.Helper()
	opts = append([]processor.Option{
		processor.WithLogger(zap.NewNop()),
		processor.WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	return processor.NewPipeline(st, credentials(t), opts...)
}

func TestIssue_ChainsInvoices(t *testing.T) {
	st := openStore(t)
	p := newPipeline(t, st)
	ctx := context.Background()

	props := testutil.Props()
	props.InvoiceUUID = ""
	props.InvoiceSerialNumber = ""
	props.IssueDate = ""
	props.IssueTime = ""

	first, err := p.Issue(ctx, props)
	require.NoError(t, err)
	second, err := p.Issue(ctx, props)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Record.Counter)
	assert.Equal(t, hashchain.GenesisHash, first.Record.PreviousHash)
	assert.Equal(t, int64(2), second.Record.Counter)
	assert.Equal(t, first.Record.InvoiceHash, second.Record.PreviousHash)
	assert.NotEqual(t, first.Record.UUID, second.Record.UUID)
	assert.Equal(t, "EGS1-886431145-2", second.Record.SerialNumber)
	assert.Equal(t, processor.StatusIssued, second.Record.Status)
	assert.Nil(t, second.Submission)

	head, err := st.Head(props.EGS.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), head.Counter)
	assert.Equal(t, second.Record.InvoiceHash, head.LastHash)

	summary, err := ubl.NewParser().ParseBytes(ctx, []byte(second.Signed.SignedXML))
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Counter)
	assert.Equal(t, first.Record.InvoiceHash, summary.PreviousHash)
	assert.Equal(t, "2024-05-01", summary.IssueDate)
	assert.Equal(t, "09:30:00", summary.IssueTime)

	result, err := sigxml.NewXMLVerifier(nil).Verify(ctx, []byte(second.Signed.SignedXML))
	require.NoError(t, err)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
}

func TestIssue_DoesNotModifyInput(t *testing.T) {
	p := newPipeline(t, openStore(t))
	props := testutil.Props()
	props.InvoiceCounterNumber = 99

	_, err := p.Issue(context.Background(), props)
	require.NoError(t, err)
	assert.Equal(t, int64(99), props.InvoiceCounterNumber)
	assert.Equal(t, testutil.GenesisHash, props.PreviousInvoiceHash)
}

func TestIssue_Concurrent(t *testing.T) {
	st := openStore(t)
	p := newPipeline(t, st)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Issue(context.Background(), testutil.Props())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	records, err := st.List(testutil.Props().EGS.ID)
	require.NoError(t, err)
	require.Len(t, records, n)
	previous := hashchain.GenesisHash
	for i, rec := range records {
		assert.Equal(t, int64(i+1), rec.Counter)
		assert.Equal(t, previous, rec.PreviousHash)
		previous = rec.InvoiceHash
	}
}

func TestIssue_InvalidProps(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockChainStore(ctrl)
	st.EXPECT().Head(gomock.Any()).Return(store.Head{LastHash: hashchain.GenesisHash}, nil)

	props := testutil.Props()
	props.EGS.VATNumber = "1234567890"

	_, err := newPipeline(t, st).Issue(context.Background(), props)
	require.Error(t, err)
	errs := model.AsValidationErrors(err)
	require.NotEmpty(t, errs)
}

func TestIssue_MissingDevice(t *testing.T) {
	ctrl := gomock.NewController(t)
	props := testutil.Props()
	props.EGS.ID = ""

	_, err := newPipeline(t, mocks.NewMockChainStore(ctrl)).Issue(context.Background(), props)
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "egs_info.id", ve.Field)
}

func TestIssue_StoreErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockChainStore(ctrl)

	st.EXPECT().Head("6f4d20e0-6bfe-4a80-9389-7dabe6620f12").Return(store.Head{}, errors.New("disk gone"))
	_, err := newPipeline(t, st).Issue(context.Background(), testutil.Props())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading chain head")

	chainErr := &store.ChainError{EGSID: "x", WantCounter: 2, GotCounter: 1}
	st.EXPECT().Head(gomock.Any()).Return(store.Head{LastHash: hashchain.GenesisHash}, nil)
	st.EXPECT().Append(gomock.Any()).Return(chainErr)
	_, err = newPipeline(t, st).Issue(context.Background(), testutil.Props())
	var got *store.ChainError
	require.True(t, errors.As(err, &got))
}

func TestIssue_ReportsSimplified(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockChainStore(ctrl)
	reporter := mocks.NewMockReporter(ctrl)
	apiCreds := client.Credentials{Token: "t", Secret: "s"}

	var appended *store.Record
	st.EXPECT().Head(gomock.Any()).Return(store.Head{Counter: 4, LastHash: "prev"}, nil)
	st.EXPECT().Append(gomock.Any()).DoAndReturn(func(rec *store.Record) error {
		appended = rec
		return nil
	})
	reporter.EXPECT().Report(gomock.Any(), apiCreds, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ client.Credentials, req client.InvoiceRequest) (*client.InvoiceResponse, error) {
			assert.Equal(t, appended.InvoiceHash, req.InvoiceHash)
			assert.Equal(t, appended.UUID, req.UUID)
			return &client.InvoiceResponse{ReportingStatus: "REPORTED"}, nil
		})
	st.EXPECT().SetStatus(gomock.Any(), int64(5), "REPORTED").Return(nil)

	res, err := newPipeline(t, st, processor.WithReporter(reporter, apiCreds)).Issue(context.Background(), testutil.Props())
	require.NoError(t, err)
	require.NoError(t, res.SubmitError)
	assert.Equal(t, int64(5), res.Record.Counter)
	assert.Equal(t, "prev", res.Record.PreviousHash)
	assert.Equal(t, "REPORTED", res.Record.Status)
	assert.Equal(t, "REPORTED", res.Submission.Status())
}

func TestIssue_ClearsStandard(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockChainStore(ctrl)
	reporter := mocks.NewMockReporter(ctrl)

	st.EXPECT().Head(gomock.Any()).Return(store.Head{LastHash: hashchain.GenesisHash}, nil)
	st.EXPECT().Append(gomock.Any()).Return(nil)
	reporter.EXPECT().Clear(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&client.InvoiceResponse{ClearanceStatus: "CLEARED"}, nil)
	st.EXPECT().SetStatus(gomock.Any(), int64(1), "CLEARED").Return(nil)

	props := testutil.Props()
	props.InvoiceType = model.TypeStandard
	props.Customer = &model.CustomerInfo{Name: "Acme", VATNumber: "300000000000003"}

	res, err := newPipeline(t, st, processor.WithReporter(reporter, client.Credentials{})).Issue(context.Background(), props)
	require.NoError(t, err)
	assert.Equal(t, "CLEARED", res.Record.Status)
}

func TestIssue_SubmitFailureKeepsInvoice(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockChainStore(ctrl)
	reporter := mocks.NewMockReporter(ctrl)

	st.EXPECT().Head(gomock.Any()).Return(store.Head{LastHash: hashchain.GenesisHash}, nil)
	st.EXPECT().Append(gomock.Any()).Return(nil)
	reporter.EXPECT().Report(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, &client.NetworkError{URL: "u", Message: "refused"})
	st.EXPECT().SetStatus(gomock.Any(), int64(1), processor.StatusReportFailed).Return(nil)

	res, err := newPipeline(t, st, processor.WithReporter(reporter, client.Credentials{})).Issue(context.Background(), testutil.Props())
	require.NoError(t, err)
	var netErr *client.NetworkError
	require.True(t, errors.As(res.SubmitError, &netErr))
	assert.Equal(t, processor.StatusReportFailed, res.Record.Status)
}

func TestReportPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockChainStore(ctrl)
	reporter := mocks.NewMockReporter(ctrl)
	device := "dev"

	st.EXPECT().List(device).Return([]*store.Record{
		{EGSID: device, Counter: 1, Status: "REPORTED", SignedXML: `name="0211010"`},
		{EGSID: device, Counter: 2, Status: processor.StatusReportFailed, SignedXML: `name="0211010"`},
		{EGSID: device, Counter: 3, Status: processor.StatusIssued, SignedXML: `name="0100000"`},
	}, nil)
	gomock.InOrder(
		reporter.EXPECT().Report(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&client.InvoiceResponse{ReportingStatus: "REPORTED"}, nil),
		st.EXPECT().SetStatus(device, int64(2), "REPORTED").Return(nil),
		reporter.EXPECT().Clear(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, &client.APIError{StatusCode: 400}),
		st.EXPECT().SetStatus(device, int64(3), processor.StatusReportFailed).Return(nil),
	)

	p := newPipeline(t, st, processor.WithReporter(reporter, client.Credentials{}))
	sent, err := p.ReportPending(context.Background(), device)
	require.Error(t, err)
	assert.Equal(t, 1, sent)
	assert.Contains(t, err.Error(), "invoice 3")
}

func TestReportPending_NoReporter(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, err := newPipeline(t, mocks.NewMockChainStore(ctrl)).ReportPending(context.Background(), "dev")
	assert.Error(t, err)
}
