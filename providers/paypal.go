package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"license-service/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	PayPalSandboxBaseURL = "https://api-m.sandbox.paypal.com"
	PayPalLiveBaseURL    = "https://api-m.paypal.com"
)

// PayPalConfig configures the PayPal Orders v2 adapter.
type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	WebhookID    string
	BrandName    string
	FrontendURL  string
	Timeout      time.Duration
}

// PayPalProvider implements order creation and capture using the PayPal REST API.
type PayPalProvider struct {
	cfg        PayPalConfig
	httpClient *http.Client
}

// NewPayPalProvider creates a provider whose HTTP client fetches and refreshes
// client-credentials tokens on demand.
func NewPayPalProvider(cfg PayPalConfig) *PayPalProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = PayPalSandboxBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	cfg.FrontendURL = strings.TrimSuffix(cfg.FrontendURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.BaseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})
	client := cc.Client(tokenCtx)
	client.Timeout = cfg.Timeout

	return &PayPalProvider{cfg: cfg, httpClient: client}
}

// ---- PayPal API request/response structs ----

type paypalMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalBreakdown struct {
	ItemTotal paypalMoney `json:"item_total"`
}

type paypalAmount struct {
	CurrencyCode string           `json:"currency_code"`
	Value        string           `json:"value"`
	Breakdown    *paypalBreakdown `json:"breakdown,omitempty"`
}

type paypalItem struct {
	Name       string      `json:"name"`
	UnitAmount paypalMoney `json:"unit_amount"`
	Quantity   string      `json:"quantity"`
	SKU        string      `json:"sku,omitempty"`
}

type paypalParty struct {
	EmailAddress string `json:"email_address,omitempty"`
}

type paypalPurchaseUnit struct {
	Amount *paypalAmount `json:"amount,omitempty"`
	Items  []paypalItem  `json:"items,omitempty"`
	Payee  *paypalParty  `json:"payee,omitempty"`
}

type paypalApplicationContext struct {
	BrandName   string `json:"brand_name,omitempty"`
	LandingPage string `json:"landing_page"`
	UserAction  string `json:"user_action"`
	ReturnURL   string `json:"return_url"`
	CancelURL   string `json:"cancel_url"`
}

type paypalOrderRequest struct {
	Intent             string                   `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnit     `json:"purchase_units"`
	ApplicationContext paypalApplicationContext `json:"application_context"`
}

type paypalOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type paypalCaptureResponse struct {
	ID            string               `json:"id"`
	Status        string               `json:"status"`
	Payer         *paypalParty         `json:"payer,omitempty"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
}

// payPalEmailStrategies is the payer email fallback chain for a captured order.
var payPalEmailStrategies = []EmailStrategy[*paypalCaptureResponse]{
	{Name: "payer.email_address", Extract: func(r *paypalCaptureResponse) string {
		if r.Payer == nil {
			return ""
		}
		return r.Payer.EmailAddress
	}},
	{Name: "purchase_units[0].payee.email_address", Extract: func(r *paypalCaptureResponse) string {
		if len(r.PurchaseUnits) == 0 || r.PurchaseUnits[0].Payee == nil {
			return ""
		}
		return r.PurchaseUnits[0].Payee.EmailAddress
	}},
}

// FormatMinorUnits renders cents as a PayPal decimal string, e.g. 499 -> "4.99".
func FormatMinorUnits(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// parseMinorUnits is the inverse of FormatMinorUnits.
func parseMinorUnits(v string) (int64, error) {
	whole, frac, found := strings.Cut(v, ".")
	if !found || len(frac) != 2 {
		return 0, fmt.Errorf("malformed amount %q", v)
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed amount %q: %w", v, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("malformed amount %q", v)
	}
	return w*100 + f, nil
}

// checkOrderTotals re-reads the rendered amounts: the order amount must equal the
// breakdown item total, and that must equal the sum of the item unit amounts.
func checkOrderTotals(req paypalOrderRequest) error {
	for _, pu := range req.PurchaseUnits {
		if pu.Amount == nil || pu.Amount.Breakdown == nil {
			return fmt.Errorf("%w: order amount has no breakdown", ErrProvider)
		}
		if pu.Amount.Value != pu.Amount.Breakdown.ItemTotal.Value {
			return fmt.Errorf("%w: order amount %s does not match item total %s", ErrProvider, pu.Amount.Value, pu.Amount.Breakdown.ItemTotal.Value)
		}
		itemTotal, err := parseMinorUnits(pu.Amount.Breakdown.ItemTotal.Value)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProvider, err)
		}
		var sum int64
		for _, it := range pu.Items {
			unit, err := parseMinorUnits(it.UnitAmount.Value)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrProvider, err)
			}
			qty, err := strconv.ParseInt(it.Quantity, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: malformed quantity %q for %s", ErrProvider, it.Quantity, it.SKU)
			}
			sum += unit * qty
		}
		if sum != itemTotal {
			return fmt.Errorf("%w: item amounts sum to %s, item total is %s", ErrProvider, FormatMinorUnits(sum), pu.Amount.Breakdown.ItemTotal.Value)
		}
	}
	return nil
}

// OrderRequest builds the Orders v2 body. The amount equals the breakdown item total,
// which equals the sum of the item prices; any mismatch is an error.
func (p *PayPalProvider) OrderRequest(items []models.PricedItem) (paypalOrderRequest, error) {
	ppItems := make([]paypalItem, 0, len(items))
	for _, it := range items {
		if it.PriceMinorUnits <= 0 {
			return paypalOrderRequest{}, fmt.Errorf("%w: non-positive price for %s", ErrProvider, it.SKU)
		}
		ppItems = append(ppItems, paypalItem{
			Name:       it.DisplayName(),
			UnitAmount: paypalMoney{CurrencyCode: "USD", Value: FormatMinorUnits(it.PriceMinorUnits)},
			Quantity:   "1",
			SKU:        it.SKU,
		})
	}

	total := FormatMinorUnits(models.TotalMinorUnits(items))
	req := paypalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			Amount: &paypalAmount{
				CurrencyCode: "USD",
				Value:        total,
				Breakdown:    &paypalBreakdown{ItemTotal: paypalMoney{CurrencyCode: "USD", Value: total}},
			},
			Items: ppItems,
		}},
		ApplicationContext: paypalApplicationContext{
			BrandName:   p.cfg.BrandName,
			LandingPage: "BILLING",
			UserAction:  "PAY_NOW",
			ReturnURL:   p.cfg.FrontendURL + "/success",
			CancelURL:   p.cfg.FrontendURL + "/cancel",
		},
	}
	if err := checkOrderTotals(req); err != nil {
		return paypalOrderRequest{}, err
	}
	return req, nil
}

// CreateIntent creates a PayPal order. The customer email is not sent; PayPal collects it.
func (p *PayPalProvider) CreateIntent(ctx context.Context, items []models.PricedItem, _ string) (models.PaymentIntentRef, error) {
	body, err := p.OrderRequest(items)
	if err != nil {
		return models.PaymentIntentRef{}, err
	}

	var resp paypalOrderResponse
	if _, err := p.doRequest(ctx, http.MethodPost, "/v2/checkout/orders", body, &resp); err != nil {
		return models.PaymentIntentRef{}, classify(ctx, "create order", err)
	}
	if resp.ID == "" {
		return models.PaymentIntentRef{}, fmt.Errorf("%w: create order returned no id", ErrProvider)
	}
	return models.PaymentIntentRef{ID: resp.ID, Provider: models.ProviderPayPal}, nil
}

// CaptureResult is a captured order. Raw is PayPal's response, returned verbatim to the client.
type CaptureResult struct {
	OrderID string
	Status  string
	Raw     json.RawMessage

	parsed paypalCaptureResponse
}

// Capture captures an approved order. An order that was already captured, typically by a
// request that timed out on our side, is read back instead so the caller can still fulfill it.
func (p *PayPalProvider) Capture(ctx context.Context, orderID string) (*CaptureResult, error) {
	orderPath := "/v2/checkout/orders/" + url.PathEscape(orderID)

	raw, err := p.doRequest(ctx, http.MethodPost, orderPath+"/capture", struct{}{}, nil)
	if isAlreadyCaptured(err) {
		raw, err = p.doRequest(ctx, http.MethodGet, orderPath, nil, nil)
	}
	if err != nil {
		return nil, classify(ctx, "capture order", err)
	}
	return ParseCaptureResult(orderID, raw)
}

// ParseCaptureResult decodes an Orders v2 order representation.
func ParseCaptureResult(orderID string, raw []byte) (*CaptureResult, error) {
	var resp paypalCaptureResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode capture response: %v", ErrProvider, err)
	}
	return &CaptureResult{OrderID: orderID, Status: resp.Status, Raw: raw, parsed: resp}, nil
}

// PaymentEvent extracts the payer email and purchased items. The event id is derived from the
// order id so a double-submitted capture is deduplicated.
func (r *CaptureResult) PaymentEvent() (models.PaymentEvent, error) {
	email, _, ok := FirstEmail(&r.parsed, payPalEmailStrategies)
	if !ok {
		return models.PaymentEvent{}, ErrNoPayerEmail
	}

	var items []models.PurchasedItem
	if len(r.parsed.PurchaseUnits) > 0 {
		for _, it := range r.parsed.PurchaseUnits[0].Items {
			items = append(items, purchasedFromDisplayName(it.Name))
		}
	}

	return models.PaymentEvent{
		EventID:    "paypal:" + r.OrderID,
		Provider:   models.ProviderPayPal,
		IntentID:   r.OrderID,
		PayerEmail: email,
		Items:      items,
	}, nil
}

// purchasedFromDisplayName reads "<name> - <tier> License" back into an item. The tier is the
// segment after the last " - ", so project names may themselves contain " - ". Names that do
// not end in a tier keep the text before the first " - " as the project, and the full name is
// kept for the tier policy.
func purchasedFromDisplayName(name string) models.PurchasedItem {
	if i := strings.LastIndex(name, " - "); i >= 0 {
		suffix := strings.ToLower(strings.TrimSpace(name[i+len(" - "):]))
		tier := models.LicenseType(strings.TrimSpace(strings.TrimSuffix(suffix, "license")))
		switch tier {
		case models.LicenseCommercial, models.LicenseEnterprise:
			return models.PurchasedItem{Name: strings.TrimSpace(name[:i]), LicenseType: tier}
		}
	}

	project, _, found := strings.Cut(name, " - ")
	item := models.PurchasedItem{Name: strings.TrimSpace(project)}
	if found {
		item.ReportedName = name
	}
	return item
}

type paypalVerifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type paypalVerifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// WebhookVerificationEnabled reports whether a webhook id is configured.
func (p *PayPalProvider) WebhookVerificationEnabled() bool {
	return p.cfg.WebhookID != ""
}

// VerifyWebhook asks PayPal to verify a webhook delivery's transmission signature.
func (p *PayPalProvider) VerifyWebhook(ctx context.Context, headers http.Header, body []byte) error {
	if !json.Valid(body) {
		return fmt.Errorf("%w: body is not JSON", ErrSignature)
	}
	req := paypalVerifyRequest{
		AuthAlgo:         headers.Get("PAYPAL-AUTH-ALGO"),
		CertURL:          headers.Get("PAYPAL-CERT-URL"),
		TransmissionID:   headers.Get("PAYPAL-TRANSMISSION-ID"),
		TransmissionSig:  headers.Get("PAYPAL-TRANSMISSION-SIG"),
		TransmissionTime: headers.Get("PAYPAL-TRANSMISSION-TIME"),
		WebhookID:        p.cfg.WebhookID,
		WebhookEvent:     body,
	}
	if req.TransmissionID == "" || req.TransmissionSig == "" {
		return fmt.Errorf("%w: missing transmission headers", ErrSignature)
	}

	var resp paypalVerifyResponse
	if _, err := p.doRequest(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", req, &resp); err != nil {
		return classify(ctx, "verify webhook", err)
	}
	if resp.VerificationStatus != "SUCCESS" {
		return fmt.Errorf("%w: verification status %q", ErrSignature, resp.VerificationStatus)
	}
	return nil
}

// ---- HTTP helper ----

// apiError is a non-2xx PayPal response.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("paypal API error (status %d): %s", e.StatusCode, e.Body)
}

func isAlreadyCaptured(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) &&
		apiErr.StatusCode == http.StatusUnprocessableEntity &&
		strings.Contains(apiErr.Body, "ORDER_ALREADY_CAPTURED")
}

func (p *PayPalProvider) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Prefer", "return=representation")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apiError{StatusCode: resp.StatusCode, Body: string(respBytes)}
	}

	if out != nil {
		if err := json.Unmarshal(respBytes, out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return respBytes, nil
}
