package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const fondyCheckoutURL = "https://api.fondy.eu/api/checkout/url/"

// FondyCheckoutRequest is the Fondy checkout-url request body.
type FondyCheckoutRequest struct {
	MerchantID        string `json:"merchant_id"`
	OrderID           string `json:"order_id"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	OrderDesc         string `json:"order_desc"`
	ResponseURL       string `json:"response_url"`
	ServerCallbackURL string `json:"server_callback_url"`
	SenderEmail       string `json:"sender_email"`
	MerchantData      string `json:"merchant_data"`
	Signature         string `json:"signature"`
}

// FondyCreator abstracts Fondy checkout-url creation for testability.
type FondyCreator interface {
	CreateCheckoutURL(ctx context.Context, req FondyCheckoutRequest) (string, error)
}

// FondyClient calls the Fondy HTTP API.
type FondyClient struct {
	MerchantID string
	Secret     string
	BaseURL    string
	Client     *http.Client
}

// SignFondyRequest is where the Fondy checkout signature (sha1 over
// sorted fields + secret) belongs. The integration shipped without it
// and Fondy accepted unsigned sandbox requests; NOT production-safe
// until implemented against the current Fondy docs.
func SignFondyRequest(req FondyCheckoutRequest, secret string) string {
	return "TODO_SIGNATURE"
}

func (f *FondyClient) CreateCheckoutURL(ctx context.Context, req FondyCheckoutRequest) (string, error) {
	if f.Client == nil {
		f.Client = &http.Client{Timeout: 15 * time.Second}
	}
	base := f.BaseURL
	if base == "" {
		base = fondyCheckoutURL
	}
	req.MerchantID = f.MerchantID
	req.Signature = SignFondyRequest(req, f.Secret)

	body, _ := json.Marshal(map[string]interface{}{"request": req})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("fondy request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	var out struct {
		Response struct {
			CheckoutURL string `json:"checkout_url"`
		} `json:"response"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil || out.Response.CheckoutURL == "" {
		return "", fmt.Errorf("fondy error: status %d body: %s", resp.StatusCode, string(respBody))
	}
	return out.Response.CheckoutURL, nil
}
