package payment

import (
	"crypto/rand"
	"crypto/rsa"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAlipayClient(t *testing.T) (*AlipayClient, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &AlipayClient{
		cfg: AlipayConfig{
			AppID:     "2021000000000001",
			Gateway:   alipayDefaultGateway,
			NotifyURL: "https://example.com/api/payments/alipay/notify",
			ReturnURL: "https://example.com/pay/done",
		},
		privateKey: key,
		publicKey:  &key.PublicKey,
	}, key
}

func TestAlipayWapPayURL(t *testing.T) {
	client, _ := testAlipayClient(t)

	payURL, err := client.WapPayURL("42", "club run", 150)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(payURL, alipayDefaultGateway+"?"))

	parsed, err := url.Parse(payURL)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "alipay.trade.wap.pay", q.Get("method"))
	assert.Equal(t, "RSA2", q.Get("sign_type"))
	assert.NotEmpty(t, q.Get("sign"))
	assert.Contains(t, q.Get("biz_content"), `"total_amount":"150.00"`)
	assert.Contains(t, q.Get("biz_content"), `"out_trade_no":"42"`)
}

func TestAlipayVerifyNotifyRoundTrip(t *testing.T) {
	client, _ := testAlipayClient(t)

	// Sign a notify payload the way the gateway would: sorted k=v pairs,
	// sign and sign_type excluded from the source.
	params := map[string]string{
		"app_id":       client.cfg.AppID,
		"out_trade_no": "42",
		"trade_no":     "2026090122001400001234567890",
		"trade_status": "TRADE_SUCCESS",
		"total_amount": "150.00",
	}
	signed := signWithKey(t, client.privateKey, signSource(params))
	params["sign_type"] = "RSA2"
	params["sign"] = signed

	assert.NoError(t, client.VerifyNotify(params))

	params["total_amount"] = "1.00"
	assert.ErrorIs(t, client.VerifyNotify(params), ErrInvalidSignature)

	params["total_amount"] = "150.00"
	delete(params, "sign")
	assert.ErrorIs(t, client.VerifyNotify(params), ErrInvalidSignature)
}
