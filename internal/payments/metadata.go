package payments

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
)

const (
	metaSessionID    = "session_id"
	metaTenantEmail  = "tenant_email"
	metaAgreementID  = "agreement_id"
	metaApartmentID  = "apartment_id"
	metaBuildingName = "building_name"
	metaApartmentNo  = "apartment_no"
	metaFloorNo      = "floor_no"
	metaBlockName    = "block_name"
	metaMonth        = "month"
	metaRent         = "rent"
	metaOriginalRent = "original_rent"
	metaCouponCode   = "coupon_code"
)

// intentMetadata is everything needed to rebuild a payment record from a
// PaymentIntent when the confirm call never reached the server.
type intentMetadata struct {
	SessionID    string
	TenantEmail  string
	Month        string
	Lease        Lease
	Rent         decimal.Decimal
	OriginalRent decimal.Decimal
	CouponCode   string
}

func metadataFromSession(s *Session) intentMetadata {
	code := ""
	if s.Coupon.Coupon != nil {
		code = s.Coupon.Coupon.Code
	}
	return intentMetadata{
		SessionID:    s.ID,
		TenantEmail:  s.TenantEmail,
		Month:        s.Month,
		Lease:        s.Lease,
		Rent:         s.Amount(),
		OriginalRent: s.Coupon.Base,
		CouponCode:   code,
	}
}

func (m intentMetadata) toMap() map[string]string {
	out := map[string]string{
		metaSessionID:    m.SessionID,
		metaTenantEmail:  m.TenantEmail,
		metaAgreementID:  m.Lease.AgreementID.String(),
		metaApartmentID:  m.Lease.ApartmentID.String(),
		metaBuildingName: m.Lease.BuildingName,
		metaApartmentNo:  m.Lease.ApartmentNo,
		metaFloorNo:      strconv.Itoa(m.Lease.FloorNo),
		metaBlockName:    m.Lease.BlockName,
		metaMonth:        m.Month,
		metaRent:         m.Rent.StringFixed(2),
		metaOriginalRent: m.OriginalRent.StringFixed(2),
	}
	if m.CouponCode != "" {
		out[metaCouponCode] = m.CouponCode
	}
	return out
}

// IsRentIntent reports whether pi was created by the rent flow. Intents made
// elsewhere on the same Stripe account carry no session metadata.
func IsRentIntent(pi *stripe.PaymentIntent) bool {
	return pi != nil && strings.TrimSpace(pi.Metadata[metaSessionID]) != ""
}

func parseIntentMetadata(raw map[string]string) (intentMetadata, error) {
	var m intentMetadata
	var missing []string
	get := func(key string) string {
		v := strings.TrimSpace(raw[key])
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	m.SessionID = get(metaSessionID)
	m.TenantEmail = get(metaTenantEmail)
	m.Month = get(metaMonth)
	agreementID := get(metaAgreementID)
	apartmentID := get(metaApartmentID)
	m.Lease.BuildingName = get(metaBuildingName)
	m.Lease.ApartmentNo = get(metaApartmentNo)
	m.Lease.BlockName = get(metaBlockName)
	floor := get(metaFloorNo)
	rent := get(metaRent)
	original := get(metaOriginalRent)
	m.CouponCode = strings.TrimSpace(raw[metaCouponCode])
	if len(missing) > 0 {
		return m, fmt.Errorf("payment intent metadata missing %s", strings.Join(missing, ", "))
	}

	var err error
	if m.Lease.AgreementID, err = uuid.Parse(agreementID); err != nil {
		return m, fmt.Errorf("invalid %s: %w", metaAgreementID, err)
	}
	if m.Lease.ApartmentID, err = uuid.Parse(apartmentID); err != nil {
		return m, fmt.Errorf("invalid %s: %w", metaApartmentID, err)
	}
	if m.Lease.FloorNo, err = strconv.Atoi(floor); err != nil {
		return m, fmt.Errorf("invalid %s: %w", metaFloorNo, err)
	}
	if m.Rent, err = decimal.NewFromString(rent); err != nil {
		return m, fmt.Errorf("invalid %s: %w", metaRent, err)
	}
	if m.OriginalRent, err = decimal.NewFromString(original); err != nil {
		return m, fmt.Errorf("invalid %s: %w", metaOriginalRent, err)
	}
	m.Lease.Rent = m.OriginalRent
	return m, nil
}
