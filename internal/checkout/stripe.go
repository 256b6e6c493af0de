package checkout

import (
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// SessionParams describes the checkout session to create. Metadata is
// the correlation channel: the webhook reads hold_id/tier back out of it.
type SessionParams struct {
	CustomerEmail string
	Currency      string
	UnitAmount    int64
	ProductName   string
	Metadata      map[string]string
	SuccessURL    string
	CancelURL     string
}

// Session is the subset of a Stripe checkout session the handlers use.
type Session struct {
	ID              string
	URL             string
	Complete        bool
	Paid            bool
	PaymentIntentID string
	Metadata        map[string]string
}

// SessionCreator abstracts Stripe checkout sessions for testability.
type SessionCreator interface {
	CreateSession(p SessionParams) (*Session, error)
	RetrieveSession(id string) (*Session, error)
}

// StripeClient implements SessionCreator with the Stripe SDK.
type StripeClient struct {
	api *client.API
}

// NewStripeClient builds a client bound to the given secret key.
func NewStripeClient(secretKey string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{api: api}
}

func (s *StripeClient) CreateSession(p SessionParams) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		CustomerEmail:      stripe.String(p.CustomerEmail),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(p.Currency),
					UnitAmount: stripe.Int64(p.UnitAmount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.ProductName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:          stripe.String(p.SuccessURL),
		CancelURL:           stripe.String(p.CancelURL),
		AllowPromotionCodes: stripe.Bool(false),
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return fromStripeSession(sess), nil
}

func (s *StripeClient) RetrieveSession(id string) (*Session, error) {
	sess, err := s.api.CheckoutSessions.Get(id, nil)
	if err != nil {
		return nil, err
	}
	return fromStripeSession(sess), nil
}

func fromStripeSession(sess *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:       sess.ID,
		URL:      sess.URL,
		Complete: sess.Status == stripe.CheckoutSessionStatusComplete,
		Paid:     sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Metadata: sess.Metadata,
	}
	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
	}
	return out
}
