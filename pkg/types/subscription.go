package types

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusTrial     SubscriptionStatus = "TRIAL"
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPastDue   SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionStatusExpired   SubscriptionStatus = "EXPIRED"
)

// LiveSubscriptionStatuses are the statuses capped at one subscription per user.
var LiveSubscriptionStatuses = []SubscriptionStatus{SubscriptionStatusActive, SubscriptionStatusTrial}

// CurrentSubscriptionStatuses are the statuses that still grant plan benefits.
var CurrentSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusTrial,
	SubscriptionStatusPastDue,
}

func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusExpired
}

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonSubscribe  SubscriptionChangeReason = "subscribe"
	SubscriptionChangeReasonCancel     SubscriptionChangeReason = "cancel"
	SubscriptionChangeReasonReactivate SubscriptionChangeReason = "reactivate"
	SubscriptionChangeReasonChangePlan SubscriptionChangeReason = "change_plan"
	SubscriptionChangeReasonTrialEnded SubscriptionChangeReason = "trial_ended"
	SubscriptionChangeReasonExpired    SubscriptionChangeReason = "expired"
	SubscriptionChangeReasonRenewed    SubscriptionChangeReason = "renewed"
)

type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
)

// BillingInterval is the recurrence unit of a plan.
type BillingInterval string

const (
	BillingIntervalMonthly   BillingInterval = "MONTHLY"
	BillingIntervalQuarterly BillingInterval = "QUARTERLY"
	BillingIntervalYearly    BillingInterval = "YEARLY"
)

func (i BillingInterval) Valid() bool {
	return i.months() > 0
}

func (i BillingInterval) months() int {
	switch i {
	case BillingIntervalMonthly:
		return 1
	case BillingIntervalQuarterly:
		return 3
	case BillingIntervalYearly:
		return 12
	default:
		return 0
	}
}

// AddTo returns t advanced by one interval. Months are added on the calendar and
// the day is clamped to the last day of the target month, so Jan 31 + 1 month
// is Feb 28 (or 29) rather than early March. Unknown intervals return t.
func (i BillingInterval) AddTo(t time.Time) time.Time {
	return AddMonths(t, i.months())
}

// AddMonths adds n calendar months to t, clamping the day of month.
func AddMonths(t time.Time, n int) time.Time {
	if n == 0 {
		return t
	}
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	first := time.Date(y, m+time.Month(n), 1, hh, mm, ss, t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

type PlanType string

const (
	PlanTypeCustomerPremium    PlanType = "CUSTOMER_PREMIUM"
	PlanTypeCustomerPro        PlanType = "CUSTOMER_PRO"
	PlanTypeVendorStarter      PlanType = "VENDOR_STARTER"
	PlanTypeVendorProfessional PlanType = "VENDOR_PROFESSIONAL"
	PlanTypeVendorEnterprise   PlanType = "VENDOR_ENTERPRISE"
)

// PlanTier groups plan types into the customer and vendor catalogs.
type PlanTier string

const (
	PlanTierCustomer PlanTier = "customer"
	PlanTierVendor   PlanTier = "vendor"
)

var planTiers = map[PlanTier][]PlanType{
	PlanTierCustomer: {PlanTypeCustomerPremium, PlanTypeCustomerPro},
	PlanTierVendor:   {PlanTypeVendorStarter, PlanTypeVendorProfessional, PlanTypeVendorEnterprise},
}

// Types returns the plan types of the tier, nil for an unknown tier.
func (t PlanTier) Types() []PlanType {
	return planTiers[t]
}

func (t PlanType) Valid() bool {
	return t.Tier() != ""
}

func (t PlanType) Tier() PlanTier {
	for tier, types := range planTiers {
		for _, pt := range types {
			if pt == t {
				return tier
			}
		}
	}
	return ""
}

// Action is a resource creating operation gated by plan limits.
type Action string

const (
	ActionCreateProduct Action = "createProduct"
	ActionCreateAd      Action = "createAd"
)

// AdStatusActive is the advertisement status counted against max ads.
const AdStatusActive = "ACTIVE"
