// Package analytics builds cached sales rollups for seller and admin dashboards.
package analytics

import (
	"context"
	"sort"
	"time"

	"promptmarket/internal/domain"
	"promptmarket/internal/infrastructure/cache"
	"promptmarket/internal/pkg/money"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	DefaultTTL     = 30 * time.Minute
	topListings    = 5
	platformKey    = "analytics:platform"
	sellerKeyStart = "analytics:seller:"
)

func SellerKey(sellerID uuid.UUID) string {
	return sellerKeyStart + sellerID.String()
}

type Service struct {
	DB    *gorm.DB
	Cache *cache.Cache
	TTL   time.Duration
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultTTL
}

// Totals are lifetime figures over completed purchases.
type Totals struct {
	Sales         int64       `json:"sales"`
	Gross         money.Cents `json:"gross"`
	Earnings      money.Cents `json:"earnings"`
	PendingPayout money.Cents `json:"pending_payout"`
	Refunded      int64       `json:"refunded"`
}

// Bucket is one period of a sales series. Period is YYYY-MM or YYYY-MM-DD.
type Bucket struct {
	Period   string      `json:"period"`
	Sales    int64       `json:"sales"`
	Gross    money.Cents `json:"gross"`
	Earnings money.Cents `json:"earnings"`
}

type TopListing struct {
	ListingID uuid.UUID   `json:"listing_id"`
	Title     string      `json:"title"`
	Sales     int64       `json:"sales"`
	Gross     money.Cents `json:"gross"`
	RatingAvg float64     `json:"rating_avg"`
}

type RatingSummary struct {
	Average      float64     `json:"average"`
	Count        int64       `json:"count"`
	Distribution map[int]int `json:"distribution"`
}

type SellerDashboard struct {
	SellerID    uuid.UUID     `json:"seller_id"`
	Totals      Totals        `json:"totals"`
	Monthly     []Bucket      `json:"monthly"`
	Daily       []Bucket      `json:"daily"`
	TopListings []TopListing  `json:"top_listings"`
	Ratings     RatingSummary `json:"ratings"`
	GeneratedAt time.Time     `json:"generated_at"`
}

type PlatformSummary struct {
	GrossVolume       money.Cents      `json:"gross_volume"`
	PlatformFees      money.Cents      `json:"platform_fees"`
	SellerEarnings    money.Cents      `json:"seller_earnings"`
	PurchasesByStatus map[string]int64 `json:"purchases_by_status"`
	PendingPayouts    money.Cents      `json:"pending_payouts"`
	Sellers           int64            `json:"sellers"`
	PublishedListings int64            `json:"published_listings"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

// SellerDashboard returns the seller's rollup, served from cache when fresh.
func (s *Service) SellerDashboard(ctx context.Context, sellerID uuid.UUID) (SellerDashboard, error) {
	return cache.Remember(ctx, s.Cache, SellerKey(sellerID), s.ttl(), func(ctx context.Context) (SellerDashboard, error) {
		return s.buildSeller(ctx, sellerID)
	})
}

// PlatformSummary returns marketplace-wide figures for admins.
func (s *Service) PlatformSummary(ctx context.Context) (PlatformSummary, error) {
	return cache.Remember(ctx, s.Cache, platformKey, s.ttl(), s.buildPlatform)
}

// InvalidateSeller drops the seller's dashboard and the platform summary.
func (s *Service) InvalidateSeller(ctx context.Context, sellerID uuid.UUID) {
	if s.Cache == nil || s.Cache.Rdb == nil {
		return
	}
	if err := s.Cache.Delete(ctx, SellerKey(sellerID), platformKey); err != nil {
		log.Warn().Err(err).Str("seller_id", sellerID.String()).Msg("invalidate analytics cache")
	}
}

type saleRow struct {
	ListingID      uuid.UUID
	Price          money.Cents
	SellerEarnings money.Cents
	PurchasedAt    *time.Time
}

func (s *Service) buildSeller(ctx context.Context, sellerID uuid.UUID) (SellerDashboard, error) {
	db := s.DB.WithContext(ctx)
	now := s.now()
	out := SellerDashboard{SellerID: sellerID, GeneratedAt: now}

	if err := db.Model(&domain.Purchase{}).
		Select("COUNT(*) AS sales, COALESCE(SUM(price), 0) AS gross, COALESCE(SUM(seller_earnings), 0) AS earnings").
		Where("seller_id = ? AND status = ?", sellerID, domain.PurchaseCompleted).
		Scan(&out.Totals).Error; err != nil {
		return out, err
	}
	var pending int64
	if err := db.Model(&domain.Purchase{}).
		Select("COALESCE(SUM(seller_earnings), 0)").
		Where("seller_id = ? AND status = ? AND payout_id IS NULL", sellerID, domain.PurchaseCompleted).
		Scan(&pending).Error; err != nil {
		return out, err
	}
	out.Totals.PendingPayout = money.Cents(pending)
	if err := db.Model(&domain.Purchase{}).
		Where("seller_id = ? AND status = ?", sellerID, domain.PurchaseRefunded).
		Count(&out.Totals.Refunded).Error; err != nil {
		return out, err
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -11, 0)
	var rows []saleRow
	if err := db.Model(&domain.Purchase{}).
		Select("listing_id, price, seller_earnings, purchased_at").
		Where("seller_id = ? AND status = ? AND purchased_at >= ?", sellerID, domain.PurchaseCompleted, monthStart).
		Find(&rows).Error; err != nil {
		return out, err
	}
	out.Monthly = monthly(rows, monthStart, 12)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -29)
	out.Daily = daily(rows, dayStart, 30)

	top, err := s.topListings(db, sellerID)
	if err != nil {
		return out, err
	}
	out.TopListings = top

	ratings, err := s.ratings(db, sellerID)
	if err != nil {
		return out, err
	}
	out.Ratings = ratings
	return out, nil
}

func monthly(rows []saleRow, start time.Time, n int) []Bucket {
	buckets := make([]Bucket, n)
	index := make(map[string]int, n)
	for i := 0; i < n; i++ {
		p := start.AddDate(0, i, 0).Format("2006-01")
		buckets[i].Period = p
		index[p] = i
	}
	for _, r := range rows {
		if r.PurchasedAt == nil {
			continue
		}
		if i, ok := index[r.PurchasedAt.UTC().Format("2006-01")]; ok {
			add(&buckets[i], r)
		}
	}
	return buckets
}

func daily(rows []saleRow, start time.Time, n int) []Bucket {
	buckets := make([]Bucket, n)
	index := make(map[string]int, n)
	for i := 0; i < n; i++ {
		p := start.AddDate(0, 0, i).Format("2006-01-02")
		buckets[i].Period = p
		index[p] = i
	}
	for _, r := range rows {
		if r.PurchasedAt == nil {
			continue
		}
		if i, ok := index[r.PurchasedAt.UTC().Format("2006-01-02")]; ok {
			add(&buckets[i], r)
		}
	}
	return buckets
}

func add(b *Bucket, r saleRow) {
	b.Sales++
	b.Gross += r.Price
	b.Earnings += r.SellerEarnings
}

func (s *Service) topListings(db *gorm.DB, sellerID uuid.UUID) ([]TopListing, error) {
	var rows []struct {
		ListingID uuid.UUID
		Sales     int64
		Gross     int64
	}
	if err := db.Model(&domain.Purchase{}).
		Select("listing_id, COUNT(*) AS sales, COALESCE(SUM(price), 0) AS gross").
		Where("seller_id = ? AND status = ?", sellerID, domain.PurchaseCompleted).
		Group("listing_id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Sales != rows[j].Sales {
			return rows[i].Sales > rows[j].Sales
		}
		return rows[i].Gross > rows[j].Gross
	})
	if len(rows) > topListings {
		rows = rows[:topListings]
	}
	if len(rows) == 0 {
		return []TopListing{}, nil
	}
	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.ListingID
	}
	var listings []domain.Listing
	if err := db.Select("id, title, rating_avg").Where("id IN ?", ids).Find(&listings).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]domain.Listing, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
	}
	out := make([]TopListing, len(rows))
	for i, r := range rows {
		l := byID[r.ListingID]
		out[i] = TopListing{ListingID: r.ListingID, Title: l.Title, Sales: r.Sales, Gross: money.Cents(r.Gross), RatingAvg: l.RatingAvg}
	}
	return out, nil
}

func (s *Service) ratings(db *gorm.DB, sellerID uuid.UUID) (RatingSummary, error) {
	out := RatingSummary{Distribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	var rows []struct {
		Rating int
		N      int
	}
	err := db.Model(&domain.Review{}).
		Select(`"Reviews".rating AS rating, COUNT(*) AS n`).
		Joins(`JOIN "Prompts" ON "Prompts".id = "Reviews".listing_id`).
		Where(`"Prompts".seller_id = ? AND "Reviews".is_approved = ?`, sellerID, true).
		Group(`"Reviews".rating`).
		Find(&rows).Error
	if err != nil {
		return out, err
	}
	var sum int64
	for _, r := range rows {
		out.Distribution[r.Rating] = r.N
		out.Count += int64(r.N)
		sum += int64(r.Rating * r.N)
	}
	if out.Count > 0 {
		out.Average = float64(sum*100/out.Count) / 100
	}
	return out, nil
}

func (s *Service) buildPlatform(ctx context.Context) (PlatformSummary, error) {
	db := s.DB.WithContext(ctx)
	out := PlatformSummary{PurchasesByStatus: map[string]int64{}, GeneratedAt: s.now()}

	var totals struct {
		Gross    int64
		Fees     int64
		Earnings int64
	}
	if err := db.Model(&domain.Purchase{}).
		Select("COALESCE(SUM(price), 0) AS gross, COALESCE(SUM(platform_fee), 0) AS fees, COALESCE(SUM(seller_earnings), 0) AS earnings").
		Where("status = ?", domain.PurchaseCompleted).
		Scan(&totals).Error; err != nil {
		return out, err
	}
	out.GrossVolume = money.Cents(totals.Gross)
	out.PlatformFees = money.Cents(totals.Fees)
	out.SellerEarnings = money.Cents(totals.Earnings)

	var statuses []struct {
		Status string
		N      int64
	}
	if err := db.Model(&domain.Purchase{}).Select("status, COUNT(*) AS n").Group("status").Find(&statuses).Error; err != nil {
		return out, err
	}
	for _, st := range statuses {
		out.PurchasesByStatus[st.Status] = st.N
	}

	var pending int64
	if err := db.Model(&domain.Payout{}).Select("COALESCE(SUM(amount), 0)").
		Where("status = ?", domain.PayoutPending).Scan(&pending).Error; err != nil {
		return out, err
	}
	out.PendingPayouts = money.Cents(pending)

	if err := db.Model(&domain.Purchase{}).Distinct("seller_id").
		Where("status = ?", domain.PurchaseCompleted).Count(&out.Sellers).Error; err != nil {
		return out, err
	}
	if err := db.Model(&domain.Listing{}).Where("status = ?", domain.ListingPublished).
		Count(&out.PublishedListings).Error; err != nil {
		return out, err
	}
	return out, nil
}
