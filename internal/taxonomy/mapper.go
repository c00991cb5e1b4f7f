// Package taxonomy maps free-form event names onto the standard
// advertising-event vocabulary.
package taxonomy

import (
	"context"
	"maps"

	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/domain"
)

// Standard event names
const (
	PageView             = "PageView"
	ViewContent          = "ViewContent"
	AddToCart            = "AddToCart"
	InitiateCheckout     = "InitiateCheckout"
	Purchase             = "Purchase"
	AddPaymentInfo       = "AddPaymentInfo"
	Lead                 = "Lead"
	Contact              = "Contact"
	Search               = "Search"
	CompleteRegistration = "CompleteRegistration"
)

// Resolution sources
const (
	SourceCustom      = "custom"
	SourceDefault     = "default"
	SourcePassthrough = "passthrough"
)

var defaultTable = map[string]string{
	"pageview":  PageView,
	"page_view": PageView,
	"PageView":  PageView,

	"view_content": ViewContent,
	"viewcontent":  ViewContent,
	"product_view": ViewContent,
	"ViewContent":  ViewContent,

	"add_to_cart": AddToCart,
	"addtocart":   AddToCart,
	"AddToCart":   AddToCart,

	"initiate_checkout": InitiateCheckout,
	"initiatecheckout":  InitiateCheckout,
	"begin_checkout":    InitiateCheckout,
	"checkout":          InitiateCheckout,
	"initiateCheckout":  InitiateCheckout,
	"InitiateCheckout":  InitiateCheckout,

	"purchase":           Purchase,
	"order":              Purchase,
	"checkout_completed": Purchase,
	"Purchase":           Purchase,

	"add_payment_info": AddPaymentInfo,
	"addpaymentinfo":   AddPaymentInfo,
	"AddPaymentInfo":   AddPaymentInfo,

	"lead": Lead,
	"Lead": Lead,

	"contact": Contact,
	"Contact": Contact,

	"search": Search,
	"Search": Search,

	"complete_registration": CompleteRegistration,
	"sign_up":               CompleteRegistration,
	"signup":                CompleteRegistration,
	"CompleteRegistration":  CompleteRegistration,
}

// Standardize maps a raw name through the built-in table, falling back to
// the raw name itself
func Standardize(raw string) string {
	if name, ok := defaultTable[raw]; ok {
		return name
	}
	return raw
}

// CustomEventFinder looks up tenant-defined event overrides
type CustomEventFinder interface {
	FindActiveCustomEvent(ctx context.Context, appID, name string) (*domain.CustomEvent, error)
}

// Resolution is the outcome of mapping one raw event name
type Resolution struct {
	StandardName string
	Data         map[string]any
	Source       string
}

// Mapper resolves tenant overrides first, then the built-in table
type Mapper struct {
	finder CustomEventFinder
	log    *zap.Logger
}

// NewMapper creates a new mapper
func NewMapper(finder CustomEventFinder, log *zap.Logger) *Mapper {
	return &Mapper{
		finder: finder,
		log:    log,
	}
}

// Resolve maps rawName for the given tenant. requestData is never mutated.
func (m *Mapper) Resolve(ctx context.Context, appID, rawName string, requestData map[string]any) Resolution {
	custom, err := m.finder.FindActiveCustomEvent(ctx, appID, rawName)
	if err != nil {
		m.log.Warn("Custom event lookup failed, using default mapping",
			zap.String("app_id", appID),
			zap.String("event_name", rawName),
			zap.Error(err))
		custom = nil
	}

	if custom != nil && custom.Active && custom.Name == rawName {
		name := rawName
		if custom.StandardEvent != "" {
			name = custom.StandardEvent
		}
		return Resolution{
			StandardName: name,
			Data:         merge(custom.TemplateData, requestData),
			Source:       SourceCustom,
		}
	}

	if name, ok := defaultTable[rawName]; ok {
		return Resolution{StandardName: name, Data: merge(nil, requestData), Source: SourceDefault}
	}

	return Resolution{StandardName: rawName, Data: merge(nil, requestData), Source: SourcePassthrough}
}

// merge layers override on top of base into a fresh map
func merge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	maps.Copy(out, base)
	maps.Copy(out, override)
	return out
}
