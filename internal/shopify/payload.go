package shopify

import (
	"strconv"
	"strings"

	"github.com/BarkinBalci/capi-relay-service/internal/dto"
)

// Raw event names produced by webhook mapping
const (
	EventPurchase         = "purchase"
	EventInitiateCheckout = "initiateCheckout"
)

type moneySet struct {
	ShopMoney struct {
		Amount       string `json:"amount"`
		CurrencyCode string `json:"currency_code"`
	} `json:"shop_money"`
}

// LineItem is the subset of a Shopify line item the pipeline uses
type LineItem struct {
	ProductID int64  `json:"product_id"`
	VariantID int64  `json:"variant_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// ClientDetails describes the browser that placed an order
type ClientDetails struct {
	BrowserIP string `json:"browser_ip"`
	UserAgent string `json:"user_agent"`
}

// Customer is the subset of a Shopify customer the pipeline uses
type Customer struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Order is the orders/create webhook payload
type Order struct {
	ID                   int64          `json:"id"`
	Name                 string         `json:"name"`
	Email                string         `json:"email"`
	Currency             string         `json:"currency"`
	CurrentTotalPrice    string         `json:"current_total_price"`
	TotalPrice           string         `json:"total_price"`
	CurrentTotalPriceSet *moneySet      `json:"current_total_price_set"`
	TotalPriceSet        *moneySet      `json:"total_price_set"`
	LandingSite          string         `json:"landing_site"`
	CheckoutToken        string         `json:"checkout_token"`
	Test                 bool           `json:"test"`
	LineItems            []LineItem     `json:"line_items"`
	ClientDetails        *ClientDetails `json:"client_details"`
	Customer             *Customer      `json:"customer"`
}

// Checkout is the checkouts/create webhook payload
type Checkout struct {
	ID                   int64          `json:"id"`
	Token                string         `json:"token"`
	Email                string         `json:"email"`
	Currency             string         `json:"currency"`
	TotalPrice           string         `json:"total_price"`
	LandingSite          string         `json:"landing_site"`
	AbandonedCheckoutURL string         `json:"abandoned_checkout_url"`
	LineItems            []LineItem     `json:"line_items"`
	ClientDetails        *ClientDetails `json:"client_details"`
	Customer             *Customer      `json:"customer"`
}

// TrackRequest maps an order onto a purchase event
func (o *Order) TrackRequest() *dto.TrackRequest {
	req := &dto.TrackRequest{
		EventName: EventPurchase,
		URL:       o.LandingSite,
		Email:     firstNonEmpty(o.Email, customerEmail(o.Customer)),
		Test:      o.Test,
		CustomData: map[string]any{
			"order_id":   strconv.FormatInt(o.ID, 10),
			"order_name": o.Name,
		},
	}

	if amount, currency, ok := o.total(); ok {
		req.Value = &amount
		req.Currency = firstNonEmpty(currency, o.Currency)
	} else {
		req.Currency = o.Currency
	}
	if o.Customer != nil && o.Customer.ID != 0 {
		req.VisitorID = strconv.FormatInt(o.Customer.ID, 10)
	}
	if o.CheckoutToken != "" {
		req.CustomData["checkout_token"] = o.CheckoutToken
	}
	applyLineItems(req, o.LineItems)

	return req
}

// Meta returns the buyer's browser details when Shopify reported them
func (o *Order) Meta() dto.RequestMeta {
	return clientMeta(o.ClientDetails)
}

// total picks the first parseable amount: current_total_price, total_price,
// then the shop-money amounts of the matching price sets
func (o *Order) total() (float64, string, bool) {
	if v, ok := parseAmount(o.CurrentTotalPrice); ok {
		return v, o.Currency, true
	}
	if v, ok := parseAmount(o.TotalPrice); ok {
		return v, o.Currency, true
	}
	for _, set := range []*moneySet{o.CurrentTotalPriceSet, o.TotalPriceSet} {
		if set == nil {
			continue
		}
		if v, ok := parseAmount(set.ShopMoney.Amount); ok {
			return v, set.ShopMoney.CurrencyCode, true
		}
	}
	return 0, "", false
}

// TrackRequest maps a checkout onto an initiate-checkout event
func (c *Checkout) TrackRequest() *dto.TrackRequest {
	req := &dto.TrackRequest{
		EventName: EventInitiateCheckout,
		URL:       firstNonEmpty(c.LandingSite, c.AbandonedCheckoutURL),
		Email:     firstNonEmpty(c.Email, customerEmail(c.Customer)),
		Currency:  c.Currency,
		CustomData: map[string]any{
			"checkout_id": strconv.FormatInt(c.ID, 10),
		},
	}
	if c.Token != "" {
		req.CustomData["checkout_token"] = c.Token
	}
	if v, ok := parseAmount(c.TotalPrice); ok {
		req.Value = &v
	}
	if c.Customer != nil && c.Customer.ID != 0 {
		req.VisitorID = strconv.FormatInt(c.Customer.ID, 10)
	}
	applyLineItems(req, c.LineItems)

	return req
}

// Meta returns the buyer's browser details when Shopify reported them
func (c *Checkout) Meta() dto.RequestMeta {
	return clientMeta(c.ClientDetails)
}

func applyLineItems(req *dto.TrackRequest, items []LineItem) {
	if len(items) == 0 {
		return
	}

	first := items[0]
	if first.ProductID != 0 {
		req.ProductID = strconv.FormatInt(first.ProductID, 10)
	}
	req.ProductName = first.Title

	total := 0
	contents := make([]map[string]any, 0, len(items))
	for _, item := range items {
		total += item.Quantity
		if item.ProductID == 0 {
			continue
		}
		content := map[string]any{
			"id":       strconv.FormatInt(item.ProductID, 10),
			"quantity": item.Quantity,
		}
		if price, ok := parseAmount(item.Price); ok {
			content["item_price"] = price
		}
		contents = append(contents, content)
	}
	req.Quantity = &total
	if len(contents) > 0 {
		req.CustomData["contents"] = contents
	}
}

func clientMeta(details *ClientDetails) dto.RequestMeta {
	if details == nil {
		return dto.RequestMeta{}
	}
	return dto.RequestMeta{IP: details.BrowserIP, UserAgent: details.UserAgent}
}

func customerEmail(c *Customer) string {
	if c == nil {
		return ""
	}
	return c.Email
}

func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
