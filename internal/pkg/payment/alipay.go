package payment

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goupclub/goup/internal/pkg/env"
)

const alipayDefaultGateway = "https://openapi.alipay.com/gateway.do"

// AlipayConfig holds the app credentials for the Alipay open API.
type AlipayConfig struct {
	AppID         string
	PrivateKeyPEM string
	PublicKeyPEM  string
	Gateway       string
	NotifyURL     string
	ReturnURL     string
}

// AlipayConfigFromEnv reads the app credentials from the environment.
func AlipayConfigFromEnv() AlipayConfig {
	return AlipayConfig{
		AppID:         env.GetEnv("ALIPAY_APP_ID", ""),
		PrivateKeyPEM: readPEM(env.GetEnv("ALIPAY_PRIVATE_KEY", "")),
		PublicKeyPEM:  readPEM(env.GetEnv("ALIPAY_PUBLIC_KEY", "")),
		Gateway:       env.GetEnv("ALIPAY_GATEWAY", alipayDefaultGateway),
		NotifyURL:     env.GetEnv("ALIPAY_NOTIFY_URL", ""),
		ReturnURL:     env.GetEnv("ALIPAY_RETURN_URL", ""),
	}
}

// AlipayClient builds signed WAP payment URLs and verifies asynchronous
// notifications (RSA2, with RSA fallback for legacy accounts).
type AlipayClient struct {
	cfg        AlipayConfig
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

func NewAlipayClient(cfg AlipayConfig) (*AlipayClient, error) {
	if cfg.AppID == "" || cfg.PrivateKeyPEM == "" || cfg.NotifyURL == "" {
		return nil, fmt.Errorf("alipay config incomplete: app id, private key and notify url are required")
	}
	if cfg.Gateway == "" {
		cfg.Gateway = alipayDefaultGateway
	}
	priv, err := parsePrivateKey(cfg.PrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("alipay private key: %w", err)
	}
	c := &AlipayClient{cfg: cfg, privateKey: priv}
	if cfg.PublicKeyPEM != "" {
		pub, err := parsePublicKey(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("alipay public key: %w", err)
		}
		c.publicKey = pub
	}
	return c, nil
}

// signSource joins the non-empty params as k=v pairs in key order, the string
// both sides sign and verify.
func signSource(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	return strings.Join(pairs, "&")
}

// WapPayURL builds the signed gateway redirect URL for a WAP payment.
// The amount is whole currency units.
func (c *AlipayClient) WapPayURL(outTradeNo, subject string, amount int64) (string, error) {
	bizContent, err := json.Marshal(map[string]string{
		"subject":      subject,
		"out_trade_no": outTradeNo,
		"total_amount": fmt.Sprintf("%d.00", amount),
		"product_code": "QUICK_WAP_WAY",
	})
	if err != nil {
		return "", err
	}

	params := map[string]string{
		"app_id":      c.cfg.AppID,
		"method":      "alipay.trade.wap.pay",
		"format":      "JSON",
		"charset":     "utf-8",
		"sign_type":   "RSA2",
		"timestamp":   time.Now().Format("2006-01-02 15:04:05"),
		"version":     "1.0",
		"notify_url":  c.cfg.NotifyURL,
		"return_url":  c.cfg.ReturnURL,
		"biz_content": string(bizContent),
	}

	digest := sha256.Sum256([]byte(signSource(params)))
	sig, err := rsa.SignPKCS1v15(rand.Reader, c.privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}
	params["sign"] = base64.StdEncoding.EncodeToString(sig)

	query := url.Values{}
	for k, v := range params {
		if v != "" {
			query.Set(k, v)
		}
	}
	return c.cfg.Gateway + "?" + query.Encode(), nil
}

// VerifyNotify checks the notification signature over the sorted params with
// sign and sign_type removed.
func (c *AlipayClient) VerifyNotify(params map[string]string) error {
	if c.publicKey == nil {
		return fmt.Errorf("alipay public key not configured")
	}
	signB64 := params["sign"]
	if signB64 == "" {
		return ErrInvalidSignature
	}
	signType := params["sign_type"]
	if signType == "" {
		signType = "RSA2"
	}

	cloned := make(map[string]string, len(params))
	for k, v := range params {
		if k == "sign" || k == "sign_type" {
			continue
		}
		cloned[k] = v
	}
	source := signSource(cloned)

	sig, err := base64.StdEncoding.DecodeString(signB64)
	if err != nil {
		return ErrInvalidSignature
	}
	if signType == "RSA2" {
		digest := sha256.Sum256([]byte(source))
		if rsa.VerifyPKCS1v15(c.publicKey, crypto.SHA256, digest[:], sig) != nil {
			return ErrInvalidSignature
		}
		return nil
	}
	digest := sha1.Sum([]byte(source))
	if rsa.VerifyPKCS1v15(c.publicKey, crypto.SHA1, digest[:], sig) != nil {
		return ErrInvalidSignature
	}
	return nil
}
