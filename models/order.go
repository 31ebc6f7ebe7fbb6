package models

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderPendingPix OrderStatus = "pending_pix"
	OrderPaid       OrderStatus = "paid"
	OrderFailed     OrderStatus = "failed"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentPix  PaymentMethod = "pix"
	PaymentCard PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentPix || m == PaymentCard
}

// Order is a purchase of a product, tracked through its payment lifecycle.
type Order struct {
	ID                  uint          `json:"id" gorm:"primaryKey"`
	Reference           string        `json:"reference" gorm:"size:36;uniqueIndex;not null"`
	UserID              uint          `json:"user_id" gorm:"index;not null"`
	ProfessionalID      uint          `json:"professional_id" gorm:"index;not null"`
	ProductID           uint          `json:"product_id" gorm:"not null"`
	Product             *Product      `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Status              OrderStatus   `json:"status" gorm:"size:20;index;not null"`
	AmountCents         int64         `json:"amount_cents" gorm:"not null"`
	PaymentMethod       PaymentMethod `json:"payment_method" gorm:"size:10;not null"`
	PixReference        string        `json:"pix_reference,omitempty" gorm:"size:120"`
	PixQRCode           string        `json:"pix_qr_code,omitempty"`
	CardPaymentIntentID string        `json:"card_payment_intent_id,omitempty" gorm:"size:120"`
	PaidAt              *time.Time    `json:"paid_at,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// PaymentReference is the identifier the payment rail knows the order by.
func (o *Order) PaymentReference() string {
	if o.PaymentMethod == PaymentPix {
		return o.PixReference
	}
	return o.CardPaymentIntentID
}

func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderPaid, OrderFailed, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

// TransitionTo moves the order to a new status if the lifecycle allows it.
func (o *Order) TransitionTo(next OrderStatus) error {
	switch o.Status {
	case OrderPending, OrderPendingPix:
		if next != OrderPaid && next != OrderFailed && next != OrderCancelled {
			return fmt.Errorf("invalid transition from %s to %s", o.Status, next)
		}
	case OrderPaid:
		if next != OrderRefunded {
			return fmt.Errorf("invalid transition from paid to %s", next)
		}
	default:
		return fmt.Errorf("no transitions allowed from %s", o.Status)
	}
	o.Status = next
	return nil
}
