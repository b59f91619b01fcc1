package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// D parses a decimal literal and fails the test on bad input.
func D(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// Time parses an RFC 3339 timestamp.
func Time(value string) time.Time {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return ts.UTC()
}

// Seller inserts a seller with the given override rate ("0" for none).
func Seller(t *testing.T, conn *gorm.DB, rate string) *models.Seller {
	t.Helper()
	seller := &models.Seller{Name: "seller-" + uuid.NewString()[:8], CommissionRate: D(rate)}
	must(t, conn.Create(seller).Error)
	return seller
}

// DeliveryPartner inserts a delivery partner with the given override rate.
func DeliveryPartner(t *testing.T, conn *gorm.DB, rate string) *models.DeliveryPartner {
	t.Helper()
	partner := &models.DeliveryPartner{Name: "rider-" + uuid.NewString()[:8], CommissionRate: D(rate)}
	must(t, conn.Create(partner).Error)
	return partner
}

// Category inserts a category node.
func Category(t *testing.T, conn *gorm.DB, level enums.CategoryLevel, rate string) *models.Category {
	t.Helper()
	category := &models.Category{Name: string(level), Level: level, CommissionRate: D(rate)}
	must(t, conn.Create(category).Error)
	return category
}

// Product inserts a product owned by sellerID in the given category path.
func Product(t *testing.T, conn *gorm.DB, sellerID uuid.UUID, category, sub, subSub *uuid.UUID) *models.Product {
	t.Helper()
	product := &models.Product{
		SellerID:         sellerID,
		Name:             "product-" + uuid.NewString()[:8],
		Price:            D("100"),
		CategoryID:       category,
		SubCategoryID:    sub,
		SubSubCategoryID: subSub,
	}
	must(t, conn.Create(product).Error)
	return product
}

// Settings writes the app_settings singleton.
func Settings(t *testing.T, conn *gorm.DB, defaultPercent string, distanceBased bool, perKm string) {
	t.Helper()
	must(t, conn.Create(&models.AppSetting{
		DefaultCommissionPercent: D(defaultPercent),
		DeliveryDistanceBased:    distanceBased,
		DeliveryPerKmRate:        D(perKm),
	}).Error)
}

// Item describes one order line for Order.
type Item struct {
	Product *models.Product
	Total   string
	Rate    string
}

// OrderFixture describes an order for Order. Total defaults to
// subtotal + platform fee + delivery charge.
type OrderFixture struct {
	Method         enums.PaymentMethod
	Status         enums.OrderStatus
	PaymentStatus  enums.PaymentStatus
	Partner        *models.DeliveryPartner
	PlatformFee    string
	DeliveryCharge string
	DistanceKm     string
	Total          string
	CreatedAt      time.Time
	Items          []Item
}

// Order inserts an order and its items.
func Order(t *testing.T, conn *gorm.DB, fx OrderFixture) *models.Order {
	t.Helper()
	if fx.Method == "" {
		fx.Method = enums.PaymentMethodOnline
	}
	if fx.Status == "" {
		fx.Status = enums.OrderStatusPending
	}
	if fx.PaymentStatus == "" {
		fx.PaymentStatus = enums.PaymentStatusPending
	}
	subtotal := decimal.Zero
	for _, item := range fx.Items {
		subtotal = subtotal.Add(D(item.Total))
	}
	fee := orZero(fx.PlatformFee)
	charge := orZero(fx.DeliveryCharge)
	total := subtotal.Add(fee).Add(charge)
	if fx.Total != "" {
		total = D(fx.Total)
	}

	order := &models.Order{
		OrderNumber:    fmt.Sprintf("ORD-%s", uuid.NewString()[:8]),
		CustomerID:     uuid.New(),
		PaymentMethod:  fx.Method,
		PaymentStatus:  fx.PaymentStatus,
		Status:         fx.Status,
		Subtotal:       subtotal,
		PlatformFee:    fee,
		DeliveryCharge: charge,
		Total:          total,
		CreatedAt:      fx.CreatedAt,
	}
	if fx.Partner != nil {
		order.DeliveryPartnerID = &fx.Partner.ID
	}
	if fx.DistanceKm != "" {
		km := D(fx.DistanceKm)
		order.DeliveryDistanceKm = &km
	}
	must(t, conn.Omit("Items").Create(order).Error)

	for _, item := range fx.Items {
		row := models.OrderItem{
			OrderID:   order.ID,
			ProductID: item.Product.ID,
			SellerID:  item.Product.SellerID,
			Quantity:  1,
			UnitPrice: D(item.Total),
			Total:     D(item.Total),
		}
		if item.Rate != "" {
			rate := D(item.Rate)
			row.CommissionRate = &rate
		}
		must(t, conn.Create(&row).Error)
		order.Items = append(order.Items, row)
	}
	return order
}

func orZero(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	return D(value)
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
}
