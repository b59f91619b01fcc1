package commission

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/catalog"
	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

// Rate sources, most specific first.
const (
	SourceSubSubCategory = "sub_subcategory"
	SourceSubCategory    = "subcategory"
	SourceCategory       = "category"
	SourceSeller         = "seller"
	SourceSettings       = "settings"
	SourceFallback       = "fallback"
	SourcePartner        = "partner"
	SourceDistance       = "distance"
)

// ProductRate is a resolved seller commission percentage.
type ProductRate struct {
	Percent decimal.Decimal
	Source  string
}

// DeliveryRate is how a delivery partner's cut is priced. PerKm is set when
// Distance is true, Percent always carries the percentage fallback.
type DeliveryRate struct {
	Distance bool
	PerKm    decimal.Decimal
	Percent  decimal.Decimal
	Source   string
}

// RateResolver resolves commission rates. Lookup failures never reach the
// caller: they are logged and the configured fallback is returned.
type RateResolver interface {
	WithTx(tx *gorm.DB) RateResolver
	ProductRate(ctx context.Context, productID uuid.UUID, sellerID *uuid.UUID) ProductRate
	DeliveryRate(ctx context.Context, partnerID *uuid.UUID) DeliveryRate
}

// Lookups groups the read-only collaborators the resolver consults.
type Lookups struct {
	Products   catalog.ProductRepository
	Categories catalog.CategoryRepository
	Sellers    catalog.SellerRepository
	Delivery   catalog.DeliveryRepository
	Settings   catalog.SettingsProvider
}

func (l Lookups) validate() error {
	switch {
	case l.Products == nil:
		return fmt.Errorf("product repository required")
	case l.Categories == nil:
		return fmt.Errorf("category repository required")
	case l.Sellers == nil:
		return fmt.Errorf("seller repository required")
	case l.Delivery == nil:
		return fmt.Errorf("delivery repository required")
	case l.Settings == nil:
		return fmt.Errorf("settings provider required")
	}
	return nil
}

func (l Lookups) withTx(tx *gorm.DB) Lookups {
	return Lookups{
		Products:   l.Products.WithTx(tx),
		Categories: l.Categories.WithTx(tx),
		Sellers:    l.Sellers.WithTx(tx),
		Delivery:   l.Delivery.WithTx(tx),
		Settings:   l.Settings.WithTx(tx),
	}
}

type resolver struct {
	lookups  Lookups
	fallback config.SettlementConfig
	logg     *logger.Logger
}

// NewRateResolver wires a resolver over the catalog lookups.
func NewRateResolver(lookups Lookups, fallback config.SettlementConfig, logg *logger.Logger) (RateResolver, error) {
	if err := lookups.validate(); err != nil {
		return nil, err
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &resolver{lookups: lookups, fallback: fallback, logg: logg}, nil
}

func (r *resolver) WithTx(tx *gorm.DB) RateResolver {
	if tx == nil {
		return r
	}
	return &resolver{lookups: r.lookups.withTx(tx), fallback: r.fallback, logg: r.logg}
}

// ProductRate walks sub-subcategory, subcategory, category, seller override
// and the settings default. A rate of zero counts as unset.
func (r *resolver) ProductRate(ctx context.Context, productID uuid.UUID, sellerID *uuid.UUID) ProductRate {
	rate, err := r.productRate(ctx, productID, sellerID)
	if err != nil {
		logCtx := r.logg.WithField(ctx, "product_id", productID.String())
		r.logg.Error(logCtx, "commission rate lookup failed, using fallback", err)
		return ProductRate{Percent: r.fallback.FallbackCommission(), Source: SourceFallback}
	}
	return rate
}

func (r *resolver) productRate(ctx context.Context, productID uuid.UUID, sellerID *uuid.UUID) (ProductRate, error) {
	product, err := r.lookups.Products.FindByID(ctx, productID)
	if err != nil {
		return ProductRate{}, fmt.Errorf("load product: %w", err)
	}

	chain := []struct {
		id     *uuid.UUID
		source string
	}{
		{product.SubSubCategoryID, SourceSubSubCategory},
		{product.SubCategoryID, SourceSubCategory},
		{product.CategoryID, SourceCategory},
	}
	ids := make([]uuid.UUID, 0, len(chain))
	for _, node := range chain {
		if node.id != nil {
			ids = append(ids, *node.id)
		}
	}
	categories, err := r.lookups.Categories.FindByIDs(ctx, ids)
	if err != nil {
		return ProductRate{}, fmt.Errorf("load categories: %w", err)
	}
	for _, node := range chain {
		if node.id == nil {
			continue
		}
		if category, ok := categories[*node.id]; ok && category.CommissionRate.IsPositive() {
			return ProductRate{Percent: category.CommissionRate, Source: node.source}, nil
		}
	}

	owner := product.SellerID
	if sellerID != nil && *sellerID != uuid.Nil {
		owner = *sellerID
	}
	seller, err := r.lookups.Sellers.FindByID(ctx, owner)
	switch {
	case db.IsNotFound(err):
	case err != nil:
		return ProductRate{}, fmt.Errorf("load seller: %w", err)
	case seller.CommissionRate.IsPositive():
		return ProductRate{Percent: seller.CommissionRate, Source: SourceSeller}, nil
	}

	settings, err := r.lookups.Settings.Settings(ctx)
	if err != nil {
		return ProductRate{}, fmt.Errorf("load settings: %w", err)
	}
	if settings.DefaultCommissionPercent.IsPositive() {
		return ProductRate{Percent: settings.DefaultCommissionPercent, Source: SourceSettings}, nil
	}
	return ProductRate{Percent: r.fallback.FallbackCommission(), Source: SourceFallback}, nil
}

// DeliveryRate prices per kilometer when distance pricing is enabled,
// otherwise uses the partner's override or the fallback percentage.
func (r *resolver) DeliveryRate(ctx context.Context, partnerID *uuid.UUID) DeliveryRate {
	rate := DeliveryRate{Percent: r.fallback.FallbackDelivery(), Source: SourceFallback}

	if partnerID != nil {
		partner, err := r.lookups.Delivery.FindByID(ctx, *partnerID)
		switch {
		case err != nil && !db.IsNotFound(err):
			r.logg.Error(r.logg.WithField(ctx, "partner_id", partnerID.String()), "delivery rate lookup failed, using fallback", err)
		case err == nil && partner.CommissionRate.IsPositive():
			rate.Percent = partner.CommissionRate
			rate.Source = SourcePartner
		}
	}

	settings, err := r.lookups.Settings.Settings(ctx)
	if err != nil {
		r.logg.Error(ctx, "settlement settings lookup failed, pricing delivery by percentage", err)
		return rate
	}
	if settings.DistancePricing() {
		rate.Distance = true
		rate.PerKm = settings.PerKmRate
	}
	return rate
}
