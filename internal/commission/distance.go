package commission

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
)

const earthRadiusKm = 6371.0

// haversineKm returns the great-circle distance in km between two points
// given in degrees.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// deliveryDistance returns the stored distance, else the straight-line
// distance between pickup and drop. ok is false when neither is known.
func deliveryDistance(order *models.Order) (decimal.Decimal, bool) {
	if order.DeliveryDistanceKm != nil && order.DeliveryDistanceKm.IsPositive() {
		return *order.DeliveryDistanceKm, true
	}
	if order.PickupLat == nil || order.PickupLng == nil || order.DropLat == nil || order.DropLng == nil {
		return decimal.Zero, false
	}
	km := haversineKm(*order.PickupLat, *order.PickupLng, *order.DropLat, *order.DropLng)
	if km <= 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(km).Round(2), true
}
