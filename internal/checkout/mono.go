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

const monoInvoiceURL = "https://api.monobank.ua/api/merchant/invoice/create"

// MonoInvoiceRequest is the Monobank merchant invoice-create body.
// Amount is in minor units; Ccy 840 is USD.
type MonoInvoiceRequest struct {
	Amount           int64            `json:"amount"`
	Ccy              int              `json:"ccy"`
	MerchantPaymInfo MonoMerchantInfo `json:"merchantPaymInfo"`
	RedirectURL      string           `json:"redirectUrl"`
	WebHookURL       string           `json:"webHookUrl"`
}

type MonoMerchantInfo struct {
	Reference   string `json:"reference"`
	Destination string `json:"destination"`
	Comment     string `json:"comment"`
}

// MonoCreator abstracts Monobank invoice creation for testability.
type MonoCreator interface {
	CreateInvoice(ctx context.Context, req MonoInvoiceRequest) (string, error)
}

// MonoClient calls the Monobank merchant API.
type MonoClient struct {
	Token   string
	BaseURL string
	Client  *http.Client
}

func (m *MonoClient) CreateInvoice(ctx context.Context, req MonoInvoiceRequest) (string, error) {
	if m.Client == nil {
		m.Client = &http.Client{Timeout: 15 * time.Second}
	}
	base := m.BaseURL
	if base == "" {
		base = monoInvoiceURL
	}

	body, _ := json.Marshal(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Token", m.Token)

	resp, err := m.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("mono request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	var out struct {
		PageURL string `json:"pageUrl"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil || out.PageURL == "" {
		return "", fmt.Errorf("mono error: status %d body: %s", resp.StatusCode, string(respBody))
	}
	return out.PageURL, nil
}
