package realtime_test

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/text/encoding/korean"

	"quoteproxy/internal/provider"
	"quoteproxy/internal/provider/realtime"
)

const realtimeBody = `{"resultCode":"success","result":{"areas":[{"name":"SERVICE_ITEM","datas":[` +
	`{"cd":"005930","nm":"삼성전자","nv":69000,"sv":70000,"cr":-1.43},` +
	`{"cd":"000660","nm":"SK하이닉스","nv":181500,"sv":0,"cr":2.5},` +
	`{"cd":"123456","nm":"","nv":0,"sv":0}]}]}}`

func eucKRResponse(t *testing.T, status int, body string) *http.Response {
	t.Helper()
	b, err := korean.EUCKR.NewEncoder().Bytes([]byte(body))
	require.NoError(t, err)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json;charset=EUC-KR"}},
		Body:       io.NopCloser(bytes.NewReader(b)),
	}
}

func TestQuery(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.Equal(t, "/api/realtime", req.URL.Path)
			require.Equal(t, "SERVICE_ITEM:005930,000660,123456", req.URL.Query().Get("query"))
			require.Equal(t, "https://finance.naver.com/", req.Header.Get("Referer"))
			return eucKRResponse(t, http.StatusOK, realtimeBody), nil
		}).
		Times(1)

	// Arrange: setup a new realtime client
	client := realtime.NewClient(realtime.WithHTTPClient(httpClient), realtime.WithBaseURL("https://polling.test"))

	// Act: query three codes at once
	items, err := client.Query(t.Context(), []string{"005930", "000660", "123456"})

	// Assert: rows are decoded from EUC-KR
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "삼성전자", items[0].Name)
	require.InDelta(t, 69000, items[0].Price, 1e-9)
	require.InDelta(t, 70000, items[0].PrevClose, 1e-9)
	require.NotNil(t, items[1].ChangeRate)
	require.InDelta(t, 2.5, *items[1].ChangeRate, 1e-9)
	require.Nil(t, items[2].ChangeRate)
}

func TestQuery_ReadsEveryArea(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	body := `{"result":{"areas":[` +
		`{"name":"SERVICE_ITEM","datas":[{"cd":"005930","nm":"삼성전자","nv":69000,"sv":70000}]},` +
		`{"name":"SERVICE_ITEM","datas":[{"cd":"247540","nm":"에코프로비엠","nv":180000,"sv":200000}]}]}}`
	httpClient.EXPECT().Do(gomock.Any()).Return(eucKRResponse(t, http.StatusOK, body), nil).Times(1)

	client := realtime.NewClient(realtime.WithHTTPClient(httpClient))
	items, err := client.Query(t.Context(), []string{"005930", "247540"})

	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "005930", items[0].Code)
	require.Equal(t, "247540", items[1].Code)
	require.Equal(t, "에코프로비엠", items[1].Name)
}

func TestQuery_EmptyCodesSkipsRequest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Times(0)

	client := realtime.NewClient(realtime.WithHTTPClient(httpClient))
	items, err := client.Query(t.Context(), nil)
	require.NoError(t, err)
	require.Nil(t, items)
}

func TestQuery_ErrPerformingRequest(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(nil, fmt.Errorf("error")).
		Times(1)

	client := realtime.NewClient(realtime.WithHTTPClient(httpClient))

	// Act
	items, err := client.Query(t.Context(), []string{"005930"})

	// Assert
	require.Error(t, err)
	require.Nil(t, items)
	require.Equal(t, provider.ErrorKindNetwork, provider.KindOf(err))
}

func TestQuery_ErrUnexpectedStatusCode(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusTooManyRequests,
				Body:       io.NopCloser(bytes.NewReader([]byte{})),
			}, nil
		}).
		Times(1)

	client := realtime.NewClient(realtime.WithHTTPClient(httpClient))
	_, err := client.Query(t.Context(), []string{"005930"})
	require.Equal(t, provider.ErrorKindRateLimit, provider.KindOf(err))
}

func TestQuery_ErrDecodingBody(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(eucKRResponse(t, http.StatusOK, "<html>"), nil).
		Times(1)

	client := realtime.NewClient(realtime.WithHTTPClient(httpClient))
	_, err := client.Query(t.Context(), []string{"005930"})
	require.Equal(t, provider.ErrorKindValidation, provider.KindOf(err))
}

func TestWithHeader(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "test", req.Header.Get("X-Test"))
			return eucKRResponse(t, http.StatusOK, `{}`), nil
		}).
		Times(1)

	client := realtime.NewClient(realtime.WithHTTPClient(httpClient), realtime.WithHeader(http.Header{"X-Test": []string{"test"}}))
	items, err := client.Query(t.Context(), []string{"005930"})
	require.NoError(t, err)
	require.Empty(t, items)
}
