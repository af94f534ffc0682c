package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ServiceCategory string

const (
	CategoryDrink     ServiceCategory = "drink"
	CategoryEquipment ServiceCategory = "equipment"
	CategoryOther     ServiceCategory = "other"
)

func (c ServiceCategory) Valid() bool {
	return c == CategoryDrink || c == CategoryEquipment || c == CategoryOther
}

type Service struct {
	ID          uuid.UUID
	Name        string
	Category    ServiceCategory
	Description string
	Price       decimal.Decimal
	Stock       int
	Available   bool
}

type ServiceOrderStatus string

const (
	ServiceOrderPending    ServiceOrderStatus = "pending"
	ServiceOrderProcessing ServiceOrderStatus = "processing"
	ServiceOrderCompleted  ServiceOrderStatus = "completed"
	ServiceOrderCancelled  ServiceOrderStatus = "cancelled"
)

type ServiceOrder struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	BookingID  uuid.NullUUID
	Status     ServiceOrderStatus
	TotalPrice decimal.Decimal
	Notes      string
	Items      []ServiceOrderItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type ServiceOrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ServiceID   uuid.UUID
	ServiceName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

func NewServiceOrderItem(orderID uuid.UUID, svc *Service, quantity int) ServiceOrderItem {
	item := ServiceOrderItem{
		ID:          uuid.New(),
		OrderID:     orderID,
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		Quantity:    quantity,
		UnitPrice:   svc.Price,
	}
	item.Recalculate()
	return item
}

func (i *ServiceOrderItem) Recalculate() {
	i.Subtotal = i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Editable: items can only change while the order is pending.
func (o *ServiceOrder) Editable() bool {
	return o.Status == ServiceOrderPending
}

// RecalculateTotal must be called after every item mutation before the
// order is persisted.
func (o *ServiceOrder) RecalculateTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal)
	}
	o.TotalPrice = total
	return total
}

// AddItem merges quantity into an existing line for the same service.
func (o *ServiceOrder) AddItem(svc *Service, quantity int) ServiceOrderItem {
	for idx := range o.Items {
		if o.Items[idx].ServiceID == svc.ID {
			o.Items[idx].Quantity += quantity
			o.Items[idx].UnitPrice = svc.Price
			o.Items[idx].Recalculate()
			o.RecalculateTotal()
			return o.Items[idx]
		}
	}
	item := NewServiceOrderItem(o.ID, svc, quantity)
	o.Items = append(o.Items, item)
	o.RecalculateTotal()
	return item
}

// RemoveItem drops the line and returns it so stock can be given back.
func (o *ServiceOrder) RemoveItem(itemID uuid.UUID) (ServiceOrderItem, bool) {
	for idx, it := range o.Items {
		if it.ID == itemID {
			o.Items = append(o.Items[:idx], o.Items[idx+1:]...)
			o.RecalculateTotal()
			return it, true
		}
	}
	return ServiceOrderItem{}, false
}
