package manager

import "fmt"

type stateKind uint8

const (
	stateIdle stateKind = iota
	stateFetchingProducts
	statePurchasing
	stateRestoring
	stateCheckingEntitlement
)

// PurchaseState marks which long-running operation, if any, the manager is
// currently driving. At most one non-idle state holds at a time.
type PurchaseState struct {
	kind      stateKind
	productID string
}

func Idle() PurchaseState {
	return PurchaseState{kind: stateIdle}
}

func FetchingProducts() PurchaseState {
	return PurchaseState{kind: stateFetchingProducts}
}

func Purchasing(productID string) PurchaseState {
	return PurchaseState{kind: statePurchasing, productID: productID}
}

func Restoring() PurchaseState {
	return PurchaseState{kind: stateRestoring}
}

func CheckingEntitlement() PurchaseState {
	return PurchaseState{kind: stateCheckingEntitlement}
}

func (s PurchaseState) IsIdle() bool {
	return s.kind == stateIdle
}

func (s PurchaseState) IsFetchingProducts() bool {
	return s.kind == stateFetchingProducts
}

func (s PurchaseState) IsPurchasing() bool {
	return s.kind == statePurchasing
}

func (s PurchaseState) IsRestoring() bool {
	return s.kind == stateRestoring
}

func (s PurchaseState) IsCheckingEntitlement() bool {
	return s.kind == stateCheckingEntitlement
}

// ProductID returns the product being purchased, or "" outside of a purchase.
func (s PurchaseState) ProductID() string {
	return s.productID
}

func (s PurchaseState) Equal(other PurchaseState) bool {
	return s.kind == other.kind && s.productID == other.productID
}

func (s PurchaseState) String() string {
	switch s.kind {
	case stateFetchingProducts:
		return "fetching_products"
	case statePurchasing:
		return fmt.Sprintf("purchasing(%s)", s.productID)
	case stateRestoring:
		return "restoring"
	case stateCheckingEntitlement:
		return "checking_entitlement"
	default:
		return "idle"
	}
}
