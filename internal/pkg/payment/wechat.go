package payment

import (
	"bytes"
	"context"
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/goupclub/goup/internal/pkg/env"
)

const wechatAPIBase = "https://api.mch.weixin.qq.com"
const wechatJSAPIPath = "/v3/pay/transactions/jsapi"

// WechatConfig holds the merchant credentials for the WeChat Pay v3 API.
type WechatConfig struct {
	AppID                string
	MchID                string
	SerialNo             string
	PrivateKeyPEM        string
	PlatformPublicKeyPEM string
	APIv3Key             string
	NotifyURL            string
}

// WechatConfigFromEnv reads the merchant credentials from the environment.
// PEM values may be inline or file paths.
func WechatConfigFromEnv() WechatConfig {
	return WechatConfig{
		AppID:                env.GetEnv("WECHAT_APP_ID", ""),
		MchID:                env.GetEnv("WECHAT_MCH_ID", ""),
		SerialNo:             env.GetEnv("WECHAT_SERIAL_NO", ""),
		PrivateKeyPEM:        readPEM(env.GetEnv("WECHAT_PRIVATE_KEY_PEM", "")),
		PlatformPublicKeyPEM: readPEM(env.GetEnv("WECHAT_PLATFORM_PUBLIC_KEY_PEM", "")),
		APIv3Key:             env.GetEnv("WECHAT_API_V3_KEY", ""),
		NotifyURL:            env.GetEnv("WECHAT_NOTIFY_URL", ""),
	}
}

// WechatClient signs JSAPI prepay requests and verifies/decrypts payment
// notifications per the WeChat Pay v3 protocol.
type WechatClient struct {
	cfg         WechatConfig
	privateKey  *rsa.PrivateKey
	platformKey *rsa.PublicKey
	apiV3Key    []byte
	httpClient  *http.Client
	baseURL     string
}

// NewWechatClient parses the configured key material. The platform public key
// is optional at construction; VerifyNotify fails without it.
func NewWechatClient(cfg WechatConfig) (*WechatClient, error) {
	if cfg.AppID == "" || cfg.MchID == "" || cfg.SerialNo == "" || cfg.PrivateKeyPEM == "" || cfg.NotifyURL == "" {
		return nil, fmt.Errorf("wechat config incomplete: app id, mch id, serial no, private key and notify url are required")
	}
	priv, err := parsePrivateKey(cfg.PrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("wechat private key: %w", err)
	}
	c := &WechatClient{
		cfg:        cfg,
		privateKey: priv,
		apiV3Key:   []byte(cfg.APIv3Key),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    wechatAPIBase,
	}
	if cfg.PlatformPublicKeyPEM != "" {
		pub, err := parsePublicKey(cfg.PlatformPublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("wechat platform public key: %w", err)
		}
		c.platformKey = pub
	}
	return c, nil
}

func (c *WechatClient) sign(message string) (string, error) {
	digest := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPKCS1v15(rand.Reader, c.privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

type wechatPrepayBody struct {
	AppID       string `json:"appid"`
	MchID       string `json:"mchid"`
	Description string `json:"description"`
	OutTradeNo  string `json:"out_trade_no"`
	NotifyURL   string `json:"notify_url"`
	Amount      struct {
		Total    int64  `json:"total"`
		Currency string `json:"currency"`
	} `json:"amount"`
	Payer struct {
		OpenID string `json:"openid"`
	} `json:"payer"`
}

// PrepayJSAPI creates a JSAPI transaction and returns the prepay id. The
// request is signed with the merchant key over
// "POST\n<path>\n<timestamp>\n<nonce>\n<body>\n".
func (c *WechatClient) PrepayJSAPI(ctx context.Context, description, outTradeNo string, totalCents int64, openID string) (string, error) {
	body := wechatPrepayBody{
		AppID:       c.cfg.AppID,
		MchID:       c.cfg.MchID,
		Description: description,
		OutTradeNo:  outTradeNo,
		NotifyURL:   c.cfg.NotifyURL,
	}
	body.Amount.Total = totalCents
	body.Amount.Currency = "CNY"
	body.Payer.OpenID = openID

	raw, err := json.Marshal(&body)
	if err != nil {
		return "", err
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	signature, err := c.sign(fmt.Sprintf("POST\n%s\n%s\n%s\n%s\n", wechatJSAPIPath, ts, nonce, raw))
	if err != nil {
		return "", err
	}
	auth := fmt.Sprintf(
		`WECHATPAY2-SHA256-RSA2048 mchid="%s",nonce_str="%s",timestamp="%s",serial_no="%s",signature="%s"`,
		c.cfg.MchID, nonce, ts, c.cfg.SerialNo, signature,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+wechatJSAPIPath, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("wechat prepay failed: %d %s", resp.StatusCode, respBody)
	}

	var out struct {
		PrepayID string `json:"prepay_id"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", err
	}
	if out.PrepayID == "" {
		return "", fmt.Errorf("wechat prepay failed: missing prepay_id")
	}
	return out.PrepayID, nil
}

// PayParams signs the client-side payment parameters for a prepay id.
func (c *WechatClient) PayParams(prepayID string) (map[string]string, error) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	pkg := "prepay_id=" + prepayID
	paySign, err := c.sign(fmt.Sprintf("%s\n%s\n%s\n%s\n", c.cfg.AppID, ts, nonce, pkg))
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"appId":     c.cfg.AppID,
		"timeStamp": ts,
		"nonceStr":  nonce,
		"package":   pkg,
		"signType":  "RSA",
		"paySign":   paySign,
	}, nil
}

// VerifyNotify checks the platform signature over
// "<timestamp>\n<nonce>\n<body>\n".
func (c *WechatClient) VerifyNotify(timestamp, nonce, signature string, body []byte) error {
	if c.platformKey == nil {
		return fmt.Errorf("wechat platform public key not configured")
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	message := fmt.Sprintf("%s\n%s\n%s\n", timestamp, nonce, body)
	digest := sha256.Sum256([]byte(message))
	if err := rsa.VerifyPKCS1v15(c.platformKey, crypto.SHA256, digest[:], sig); err != nil {
		return ErrInvalidSignature
	}
	return nil
}

type wechatNotifyBody struct {
	Resource struct {
		AssociatedData string `json:"associated_data"`
		Nonce          string `json:"nonce"`
		Ciphertext     string `json:"ciphertext"`
	} `json:"resource"`
}

// WechatTransaction is the decrypted notification resource.
type WechatTransaction struct {
	OutTradeNo    string `json:"out_trade_no"`
	TransactionID string `json:"transaction_id"`
	TradeState    string `json:"trade_state"`
	Amount        struct {
		Total      int64 `json:"total"`
		PayerTotal int64 `json:"payer_total"`
	} `json:"amount"`
}

// DecodeNotify decrypts the AES-256-GCM resource of a verified notification
// body with the APIv3 key.
func (c *WechatClient) DecodeNotify(body []byte) (*WechatTransaction, error) {
	var outer wechatNotifyBody
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, err
	}
	plaintext, err := c.decryptResource(outer.Resource.AssociatedData, outer.Resource.Nonce, outer.Resource.Ciphertext)
	if err != nil {
		return nil, err
	}
	var txn WechatTransaction
	if err := json.Unmarshal(plaintext, &txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

func (c *WechatClient) decryptResource(associatedData, nonce, ciphertextB64 string) ([]byte, error) {
	if len(c.apiV3Key) != 32 {
		return nil, fmt.Errorf("api v3 key must be 32 bytes")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(c.apiV3Key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, []byte(nonce), ciphertext, []byte(associatedData))
}
