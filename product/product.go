package product

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type classifies a purchasable product the way the platform storefront does.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeConsumable
	TypeNonConsumable
	TypeNonRenewingSubscription
	TypeAutoRenewableSubscription
)

func (t Type) String() string {
	switch t {
	case TypeConsumable:
		return "consumable"
	case TypeNonConsumable:
		return "non_consumable"
	case TypeNonRenewingSubscription:
		return "non_renewing_subscription"
	case TypeAutoRenewableSubscription:
		return "auto_renewable_subscription"
	default:
		return "unknown"
	}
}

// PaymentMode describes how a promotional offer is billed.
type PaymentMode uint8

const (
	PaymentModePayAsYouGo PaymentMode = iota
	PaymentModePayUpFront
	PaymentModeFreeTrial
)

func (m PaymentMode) String() string {
	switch m {
	case PaymentModePayAsYouGo:
		return "pay_as_you_go"
	case PaymentModePayUpFront:
		return "pay_up_front"
	case PaymentModeFreeTrial:
		return "free_trial"
	default:
		return "unknown"
	}
}

// OfferType distinguishes introductory pricing from targeted promotional offers.
type OfferType uint8

const (
	OfferTypeIntroductory OfferType = iota
	OfferTypePromotional
)

// PromotionalOffer is a discounted or free pricing term attachable to an
// auto-renewable subscription purchase. Read-only; owned by the storefront.
type PromotionalOffer struct {
	ID          string
	DisplayName string
	Price       decimal.Decimal
	PaymentMode PaymentMode
	Period      time.Duration
	Type        OfferType
}

// SubscriptionInfo carries the subscription-specific metadata of an
// auto-renewable product.
type SubscriptionInfo struct {
	GroupID            string
	SubscriptionPeriod time.Duration
	PromotionalOffers  []PromotionalOffer
}

// Product is the storefront's metadata for one purchasable item. The catalog
// owns it; callers hold read-only cached copies.
type Product struct {
	ID                string
	Type              Type
	DisplayName       string
	Description       string
	Price             decimal.Decimal
	DisplayPrice      string
	IsFamilyShareable bool

	// Subscription is set only for auto-renewable subscription products.
	Subscription *SubscriptionInfo
}
